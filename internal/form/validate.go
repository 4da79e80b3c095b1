package form

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"casaspese/internal/core"
)

var (
	ErrAmountRequired     = errors.New("amount required")
	ErrDescriptionTooLong = fmt.Errorf("description must be at most %d characters", core.MaxDescriptionLength)
	ErrInvalidRatio       = errors.New("invalid ratio")
	ErrFutureDate         = errors.New("date cannot be in the future")
	ErrCategoryRequired   = errors.New("category required")
	ErrPayerRequired      = errors.New("payer required")
)

var hundred = decimal.NewFromInt(100)

// Result is the outcome for one field; a nil Err means the field is valid.
type Result struct {
	Field Field
	Err   error
}

// Validation holds one Result per field, in AllFields order.
type Validation []Result

// Validate checks fields against the form rules. today is the calendar date
// used for the future-date check.
func Validate(f Fields, today core.Date) Validation {
	v := make(Validation, 0, len(allFields))
	for _, name := range allFields {
		v = append(v, Result{Field: name, Err: validateField(f, name, today)})
	}
	return v
}

func validateField(f Fields, name Field, today core.Date) error {
	switch name {
	case FieldAmount:
		if strings.TrimSpace(f.Amount) == "" {
			return ErrAmountRequired
		}
		if _, err := core.ParseDecimalToCents(f.Amount); err != nil {
			return core.ErrInvalidAmount
		}
	case FieldDate:
		if f.Date == "" {
			return nil
		}
		d, err := core.ParseDate(f.Date)
		if err != nil {
			return core.ErrInvalidDate
		}
		if d.After(today.Time) {
			return ErrFutureDate
		}
	case FieldDescription:
		if utf8.RuneCountInString(f.Description) > core.MaxDescriptionLength {
			return ErrDescriptionTooLong
		}
	case FieldCategoryID:
		if f.CategoryID <= 0 {
			return ErrCategoryRequired
		}
	case FieldPaidByUserID:
		if f.PaidByUserID <= 0 {
			return ErrPayerRequired
		}
	case FieldSplitType:
		if !f.SplitType.IsValid() {
			return core.ErrInvalidSplitType
		}
	case FieldSplitRatioUser1, FieldSplitRatioUser2:
		if f.SplitType != core.SplitCustom {
			return nil
		}
		raw := f.SplitRatioUser1
		if name == FieldSplitRatioUser2 {
			raw = f.SplitRatioUser2
		}
		if _, err := parseRatio(raw); err != nil {
			return err
		}
		// The sum is reported once, on the first ratio.
		if name == FieldSplitRatioUser1 {
			r1, _ := parseRatio(f.SplitRatioUser1)
			r2, err := parseRatio(f.SplitRatioUser2)
			if err == nil && !r1.Add(r2).Equal(hundred) {
				return core.ErrRatiosSum
			}
		}
	}
	return nil
}

// Valid reports whether every field passed.
func (v Validation) Valid() bool {
	for _, r := range v {
		if r.Err != nil {
			return false
		}
	}
	return true
}

// Err returns the error for a field, or nil.
func (v Validation) Err(name Field) error {
	for _, r := range v {
		if r.Field == name {
			return r.Err
		}
	}
	return nil
}

// Invalid returns only the failing results.
func (v Validation) Invalid() []Result {
	var out []Result
	for _, r := range v {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// InvalidFields lists the names of failing fields.
func (v Validation) InvalidFields() []string {
	var out []string
	for _, r := range v.Invalid() {
		out = append(out, string(r.Field))
	}
	return out
}

func (v Validation) without(name Field) Validation {
	if v == nil {
		return nil
	}
	out := make(Validation, len(v))
	copy(out, v)
	for i := range out {
		if out[i].Field == name {
			out[i].Err = nil
		}
	}
	return out
}

// ValidationError is returned by Submit when the fields do not validate.
type ValidationError struct {
	Validation Validation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Validation))
	for _, r := range e.Validation.Invalid() {
		parts = append(parts, fmt.Sprintf("%s: %v", r.Field, r.Err))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the per-field errors to errors.Is.
func (e *ValidationError) Unwrap() []error {
	var errs []error
	for _, r := range e.Validation.Invalid() {
		errs = append(errs, r.Err)
	}
	return errs
}
