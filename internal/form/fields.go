// Package form holds the state of the add-expense form: typed field values,
// per-field validation and a single-submission lifecycle.
package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"casaspese/internal/core"
)

// Field names a form input. The values double as wire keys.
type Field string

const (
	FieldAmount          Field = "amount"
	FieldDate            Field = "date"
	FieldDescription     Field = "description"
	FieldCategoryID      Field = "category_id"
	FieldPaidByUserID    Field = "paid_by_user_id"
	FieldSplitType       Field = "split_type"
	FieldSplitRatioUser1 Field = "split_ratio_user1"
	FieldSplitRatioUser2 Field = "split_ratio_user2"
)

var allFields = []Field{
	FieldAmount,
	FieldDate,
	FieldDescription,
	FieldCategoryID,
	FieldPaidByUserID,
	FieldSplitType,
	FieldSplitRatioUser1,
	FieldSplitRatioUser2,
}

// AllFields returns every field in display order.
func AllFields() []Field {
	return append([]Field(nil), allFields...)
}

// Fields is the raw form input. Text inputs stay strings until validation so
// that what the user typed is never lost; ids are zero when unselected.
type Fields struct {
	Amount          string
	Date            string // YYYY-MM-DD, empty means today
	Description     string
	CategoryID      int64
	PaidByUserID    int64
	SplitType       core.SplitType
	SplitRatioUser1 string
	SplitRatioUser2 string
}

// DefaultFields is the state of a freshly opened form.
func DefaultFields() Fields {
	return Fields{SplitType: core.Split5050}
}

func (f *Fields) set(name Field, value string) error {
	switch name {
	case FieldAmount:
		f.Amount = value
	case FieldDate:
		f.Date = strings.TrimSpace(value)
	case FieldDescription:
		f.Description = value
	case FieldCategoryID, FieldPaidByUserID:
		var id int64
		if v := strings.TrimSpace(value); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("%s %q: %w", name, value, ErrInvalidFieldValue)
			}
			id = n
		}
		if name == FieldCategoryID {
			f.CategoryID = id
		} else {
			f.PaidByUserID = id
		}
	case FieldSplitType:
		st := core.SplitType(strings.TrimSpace(value))
		if !st.IsValid() {
			return fmt.Errorf("%s %q: %w", name, value, ErrInvalidFieldValue)
		}
		f.SplitType = st
	case FieldSplitRatioUser1:
		f.SplitRatioUser1 = value
	case FieldSplitRatioUser2:
		f.SplitRatioUser2 = value
	default:
		return fmt.Errorf("%q: %w", name, ErrUnknownField)
	}
	return nil
}

// Get returns the display value of a field.
func (f Fields) Get(name Field) string {
	switch name {
	case FieldAmount:
		return f.Amount
	case FieldDate:
		return f.Date
	case FieldDescription:
		return f.Description
	case FieldCategoryID:
		return idString(f.CategoryID)
	case FieldPaidByUserID:
		return idString(f.PaidByUserID)
	case FieldSplitType:
		return string(f.SplitType)
	case FieldSplitRatioUser1:
		return f.SplitRatioUser1
	case FieldSplitRatioUser2:
		return f.SplitRatioUser2
	}
	return ""
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// Payload converts validated fields into the create payload. Fields that
// fail validation produce the same error Validate reports.
func (f Fields) Payload() (core.CreatePayload, error) {
	cents, err := core.ParseDecimalToCents(f.Amount)
	if err != nil {
		return core.CreatePayload{}, err
	}
	p := core.CreatePayload{
		Amount:       core.Money{Cents: cents},
		CategoryID:   f.CategoryID,
		PaidByUserID: f.PaidByUserID,
		Description:  strings.TrimSpace(f.Description),
		SplitType:    f.SplitType,
	}
	if f.Date != "" {
		d, err := core.ParseDate(f.Date)
		if err != nil {
			return core.CreatePayload{}, err
		}
		p.Date = &d
	}
	if f.SplitType == core.SplitCustom {
		r1, err := parseRatio(f.SplitRatioUser1)
		if err != nil {
			return core.CreatePayload{}, err
		}
		r2, err := parseRatio(f.SplitRatioUser2)
		if err != nil {
			return core.CreatePayload{}, err
		}
		p.SplitRatioUser1 = decimal.NewNullDecimal(r1)
		p.SplitRatioUser2 = decimal.NewNullDecimal(r2)
	}
	return p, nil
}

func parseRatio(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return decimal.Decimal{}, ErrInvalidRatio
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, ErrInvalidRatio
	}
	return d, nil
}
