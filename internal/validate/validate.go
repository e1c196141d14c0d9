// Package validate parses user-entered numeric text. The same rules apply on
// the client before any request is made and on the server before any write.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalid matches every validation error via errors.Is.
var ErrInvalid = errors.New("invalid input")

// Error describes why a field was rejected.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalid) hold for any *Error.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Errorf returns a validation error for field.
func Errorf(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Quantity parses a strictly positive decimal.
func Quantity(field, text string) (decimal.Decimal, error) {
	d, err := Decimal(field, text)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, Errorf(field, "must be greater than zero")
	}
	return d, nil
}

// Count parses a decimal that may be zero but not negative.
func Count(field, text string) (decimal.Decimal, error) {
	d, err := Decimal(field, text)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, Errorf(field, "must not be negative")
	}
	return d, nil
}

// Decimal parses any finite decimal number.
func Decimal(field, text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, Errorf(field, "is required")
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, Errorf(field, "%q is not a number", text)
	}
	return d, nil
}

// Required rejects blank text.
func Required(field, text string) error {
	if strings.TrimSpace(text) == "" {
		return Errorf(field, "is required")
	}
	return nil
}
