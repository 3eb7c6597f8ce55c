// Package validator checks request payloads with struct tags. Decimal fields
// are validated through their string form so the usual tags apply to money.
package validator

import (
	"errors"
	"reflect"
	"strings"

	"ledgerbank/internal/models"
	"ledgerbank/internal/money"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Error carries every failed field of one payload.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Field+": "+field.Message)
	}
	return strings.Join(parts, "; ")
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})
	_ = v.RegisterValidation("money", moneyRule(true))
	_ = v.RegisterValidation("money_nonneg", moneyRule(false))
	_ = v.RegisterValidation("rate", rateRule)
	_ = v.RegisterValidation("movement_type", func(fl validator.FieldLevel) bool {
		return models.MovementType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return models.Role(fl.Field().String()).Valid()
	})
	return v
}

func decimalValue(field reflect.Value) any {
	switch value := field.Interface().(type) {
	case decimal.Decimal:
		return value.String()
	case decimal.NullDecimal:
		if !value.Valid {
			return nil
		}
		return value.Decimal.String()
	}
	return nil
}

func moneyRule(strictlyPositive bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := money.Parse(fl.Field().String())
		if err != nil || !money.InRange(value) {
			return false
		}
		if strictlyPositive {
			return value.IsPositive()
		}
		return !value.IsNegative()
	}
}

// rateRule accepts a percentage in [0, 999.99], the range of NUMERIC(5,2).
func rateRule(fl validator.FieldLevel) bool {
	value, err := money.Parse(fl.Field().String())
	if err != nil || value.IsNegative() {
		return false
	}
	return value.LessThan(decimal.NewFromInt(1000))
}

// Struct validates payload and returns *Error listing every failed field.
func Struct(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &Error{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: message(fe),
			Type:    fe.Tag(),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gt":
		return "Value must be greater than " + fe.Param()
	case "money":
		return "Must be a positive amount up to 9999999999999.99 with at most two decimals"
	case "money_nonneg":
		return "Must be a non-negative amount up to 9999999999999.99 with at most two decimals"
	case "rate":
		return "Must be a percentage between 0 and 999.99"
	case "movement_type":
		return "Must be one of deposit, withdrawal, transfer"
	case "role":
		return "Must be admin or user"
	default:
		return "Invalid value"
	}
}
