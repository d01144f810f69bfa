// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"os"
	"strings"
)

// FromEnv reads a secret from the named environment variable into a
// protected buffer, then unsets the variable so child processes and
// later code cannot read it. Leading and trailing whitespace is
// trimmed. Returns an error if the variable is unset or empty after
// trimming.
//
// The original value remains visible in /proc/self/environ for the
// life of the process; unsetting only narrows in-process exposure.
func FromEnv(name string) (*Buffer, error) {
	if name == "" {
		return nil, fmt.Errorf("secret: environment variable name is empty")
	}

	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, fmt.Errorf("secret: environment variable %s is not set", name)
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("secret: environment variable %s is empty", name)
	}

	buffer, err := NewFromBytes([]byte(trimmed))
	if err != nil {
		return nil, err
	}
	os.Unsetenv(name)
	return buffer, nil
}
