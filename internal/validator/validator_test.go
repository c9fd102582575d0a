package validator

import (
	"strings"
	"testing"
)

func TestValidateEmail(t *testing.T) {
	if err := ValidateEmail(NormalizeEmail("  Ann@X.com ")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, email := range []string{"", "ann", "ann@x", "ann @x.com", "@x.com"} {
		if err := ValidateEmail(email); err != ErrInvalidEmail {
			t.Fatalf("expected ErrInvalidEmail for %q, got %v", email, err)
		}
	}
	if got := NormalizeEmail("  Ann@X.COM "); got != "ann@x.com" {
		t.Fatalf("expected ann@x.com, got %q", got)
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"Ann Lee", "Al", "  Bo  "} {
		if err := ValidateName(name); err != nil {
			t.Fatalf("unexpected error for %q: %v", name, err)
		}
	}
	for _, name := range []string{"A", "", "Ann2", strings.Repeat("a", 51), "<b>"} {
		if err := ValidateName(name); err != ErrInvalidName {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("Passw0rd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, password := range []string{"Pa0", "password1", "PASSWORD1", "Password", ""} {
		if err := ValidatePassword(password); err != ErrInvalidPassword {
			t.Fatalf("expected ErrInvalidPassword for %q, got %v", password, err)
		}
	}
}

func TestSanitizeDescription(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "Coffee", want: "Coffee"},
		{input: "  <script>alert(1)</script> ", want: "scriptalert(1)/script"},
		{input: "javascript:void(0)", want: "void(0)"},
		{input: "img onerror=x", want: "img x"},
		{input: "line\nbreak\x00", want: "line break"},
		{input: "   ", want: "Payment"},
		{input: "<>", want: "Payment"},
	}
	for _, tc := range cases {
		if got := SanitizeDescription(tc.input, "Payment"); got != tc.want {
			t.Fatalf("SanitizeDescription(%q): expected %q, got %q", tc.input, tc.want, got)
		}
	}
	long := SanitizeDescription(strings.Repeat("x", 500), "Payment")
	if len(long) != 200 {
		t.Fatalf("expected truncation to 200, got %d", len(long))
	}
}
