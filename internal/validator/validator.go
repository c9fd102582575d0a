package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidPassword = errors.New("invalid password")
)

const maxDescriptionLength = 200

var (
	emailRegex   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nameRegex    = regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`)
	scriptRegex  = regexp.MustCompile(`(?i)javascript:`)
	handlerRegex = regexp.MustCompile(`(?i)on\w+=`)
)

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// ValidateEmail expects an already normalized address.
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateName(name string) error {
	if !nameRegex.MatchString(strings.TrimSpace(name)) {
		return ErrInvalidName
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrInvalidPassword
	}
	return nil
}

// SanitizeDescription strips markup and control characters from free text.
// An empty result falls back to the given default.
func SanitizeDescription(input, fallback string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)
	cleaned = scriptRegex.ReplaceAllString(cleaned, "")
	cleaned = handlerRegex.ReplaceAllString(cleaned, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if runes := []rune(cleaned); len(runes) > maxDescriptionLength {
		cleaned = string(runes[:maxDescriptionLength])
	}
	if cleaned == "" {
		return fallback
	}
	return cleaned
}
