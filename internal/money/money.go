package money

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale = 2

// maxWholeDigits bounds the integer part; anything longer is out of range
// for every configured ceiling.
const maxWholeDigits = 15

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrOutOfRange      = errors.New("amount out of range")
)

// ParseAmount accepts plain decimal notation with at most two fractional
// digits. Exponents, thousands separators and currency symbols are rejected.
func ParseAmount(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	negative := false
	switch trimmed[0] {
	case '-':
		negative = true
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	parts := strings.SplitN(trimmed, ".", 2)
	wholePart := parts[0]
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) {
		return decimal.Zero, ErrInvalidAmount
	}
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
		if fracPart == "" && parts[0] == "" {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	fracPart = strings.TrimRight(fracPart, "0")
	if len(fracPart) > Scale {
		return decimal.Zero, ErrTooManyDecimals
	}
	if !isDigits(fracPart) {
		return decimal.Zero, ErrInvalidAmount
	}
	wholePart = strings.TrimLeft(wholePart, "0")
	if len(wholePart) > maxWholeDigits {
		return decimal.Zero, ErrOutOfRange
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if fracPart == "" {
		fracPart = "0"
	}
	amount, err := decimal.NewFromString(wholePart + "." + fracPart)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}

// ParseJSON accepts an amount sent either as a JSON number or a JSON string.
func ParseJSON(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, ErrInvalidAmount
		}
		text = s
	}
	return ParseAmount(text)
}

// CheckBounds enforces 0 < amount <= max.
func CheckBounds(amount, max decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(max) {
		return ErrOutOfRange
	}
	if !amount.Equal(amount.Round(Scale)) {
		return ErrTooManyDecimals
	}
	return nil
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Scale)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
