// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"testing"
)

func TestNewValidSize(t *testing.T) {
	buffer, err := New(64)
	if err != nil {
		t.Fatalf("New(64): %v", err)
	}
	defer buffer.Close()

	if buffer.Len() != 64 {
		t.Errorf("Len() = %d, want 64", buffer.Len())
	}

	// mmap memory arrives zero-initialized.
	for index, value := range buffer.Bytes() {
		if value != 0 {
			t.Fatalf("byte %d = %d, want 0", index, value)
		}
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestNewFromBytesZerosSource(t *testing.T) {
	source := []byte("chat-access-token-value")
	want := string(source)

	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d = %d after copy, want 0", index, value)
		}
	}
}

func TestNewFromBytesEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("NewFromBytes(nil) succeeded, want error")
	}
}

func TestCloseIdempotent(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestReadAfterClosePanics(t *testing.T) {
	buffer, err := New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buffer.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("Bytes() after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	Zero(data)
	for index, value := range data {
		if value != 0 {
			t.Fatalf("byte %d = %d after Zero, want 0", index, value)
		}
	}
}

func TestFromEnv(t *testing.T) {
	const name = "PAVILION_TEST_SECRET"
	os.Setenv(name, "  api-key-value\n")
	defer os.Unsetenv(name)

	buffer, err := FromEnv(name)
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "api-key-value" {
		t.Errorf("String() = %q, want trimmed value", got)
	}
	if _, stillSet := os.LookupEnv(name); stillSet {
		t.Error("FromEnv left the environment variable set")
	}
}

func TestFromEnvMissing(t *testing.T) {
	os.Unsetenv("PAVILION_TEST_ABSENT")
	if _, err := FromEnv("PAVILION_TEST_ABSENT"); err == nil {
		t.Fatal("FromEnv succeeded for an unset variable, want error")
	}
}

func TestFromEnvEmpty(t *testing.T) {
	const name = "PAVILION_TEST_EMPTY"
	os.Setenv(name, "   ")
	defer os.Unsetenv(name)
	if _, err := FromEnv(name); err == nil {
		t.Fatal("FromEnv succeeded for a blank variable, want error")
	}
}
