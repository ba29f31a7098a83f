package main

import "testing"

func TestIsValidMode(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		modeDemo:   true,
		modeReplay: true,
		"enforce":  false,
		"":         false,
		"DEMO":     false,
	}

	for mode, want := range cases {
		if got := isValidMode(mode); got != want {
			t.Fatalf("isValidMode(%q) = %v, want %v", mode, got, want)
		}
	}
}

func TestTrimAll(t *testing.T) {
	t.Parallel()

	a, b := "  foo ", "bar\t"
	trimAll(&a, &b)

	if a != "foo" {
		t.Fatalf("expected trimmed %q, got %q", "foo", a)
	}

	if b != "bar" {
		t.Fatalf("expected trimmed %q, got %q", "bar", b)
	}
}
