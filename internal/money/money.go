package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const Places = 2

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrOutOfRange      = errors.New("amount exceeds the storable range")
)

// Max is the largest value a NUMERIC(15,2) column holds.
var Max = decimal.RequireFromString("9999999999999.99")

var hundred = decimal.NewFromInt(100)

// Parse reads a plain decimal string such as "1250.5" or "-3". Exponent
// notation is rejected so that stored values always look like what was typed.
func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || strings.ContainsAny(trimmed, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !HasCents(value) {
		return decimal.Zero, ErrTooManyDecimals
	}
	return value, nil
}

// ParsePositive is Parse restricted to values greater than zero.
func ParsePositive(input string) (decimal.Decimal, error) {
	value, err := Parse(input)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

// HasCents reports whether value carries at most two fractional digits.
func HasCents(value decimal.Decimal) bool {
	return value.Equal(value.Truncate(Places))
}

func CheckPositive(value decimal.Decimal) error {
	if !HasCents(value) {
		return ErrTooManyDecimals
	}
	if !value.IsPositive() {
		return ErrInvalidAmount
	}
	if !InRange(value) {
		return ErrOutOfRange
	}
	return nil
}

func CheckNonNegative(value decimal.Decimal) error {
	if !HasCents(value) {
		return ErrTooManyDecimals
	}
	if value.IsNegative() {
		return ErrNegativeAmount
	}
	if !InRange(value) {
		return ErrOutOfRange
	}
	return nil
}

// InRange reports whether value fits the money columns.
func InRange(value decimal.Decimal) bool {
	return !value.Abs().GreaterThan(Max)
}

// Round rounds half away from zero to cents.
func Round(value decimal.Decimal) decimal.Decimal {
	return value.Round(Places)
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Places)
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Places)
}

func ToMinor(value decimal.Decimal) int64 {
	return value.Mul(hundred).Round(0).IntPart()
}
