// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import "testing"

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		s         string
		maxLength int
		want      string
	}{
		{"short", 40, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a table is at the door for your party tonight", 20, "a table is at the..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 10, ""},
	}

	for _, test := range tests {
		if got := truncate(test.s, test.maxLength); got != test.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", test.s, test.maxLength, got, test.want)
		}
	}
}
