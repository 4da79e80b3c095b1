package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Split5050   SplitType = "50/50"
	SplitCustom SplitType = "custom"
)

const (
	Optimistic Provenance = "optimistic"
	Committed  Provenance = "committed"
)

// DateLayout is the calendar date format used on the wire and in form input.
const DateLayout = "2006-01-02"

// MaxDescriptionLength is the maximum description length in characters.
const MaxDescriptionLength = 140

type (
	SplitType  string
	Provenance string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ExpenseRecord is one row of the hosted expense collection. Optimistic
	// records carry a negative ID that never collides with server IDs.
	ExpenseRecord struct {
		ID              int64
		Date            Date
		Amount          Money
		Description     string
		CategoryID      int64
		PaidByUserID    int64
		SplitType       SplitType
		SplitRatioUser1 decimal.NullDecimal
		SplitRatioUser2 decimal.NullDecimal
		CategoryName    string
		PaidByName      string
		Provenance      Provenance
	}

	// CreatePayload is the typed body of an expense create call.
	// A nil Date lets the server default to today.
	CreatePayload struct {
		Amount          Money
		CategoryID      int64
		PaidByUserID    int64
		Description     string
		Date            *Date
		SplitType       SplitType
		SplitRatioUser1 decimal.NullDecimal
		SplitRatioUser2 decimal.NullDecimal
	}

	// DirectoryEntry is a category or a household member.
	DirectoryEntry struct {
		ID   int64
		Name string
	}

	BudgetSummary struct {
		Year      int
		Month     int // 1-12
		Total     Money
		Spent     Money
		Remaining Money
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidSplitType = errors.New("invalid split type")
	ErrMissingCategory  = errors.New("missing category")
	ErrMissingPayer     = errors.New("missing payer")
	ErrDescriptionLong  = errors.New("description exceeds 140 characters")
	ErrRatiosSum        = errors.New("ratios must sum 100")
)

var hundred = decimal.NewFromInt(100)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t, dropping the clock and zone.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// SameDay reports whether both dates fall on the same calendar day.
func (d Date) SameDay(o Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := o.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (s SplitType) IsValid() bool {
	return s == Split5050 || s == SplitCustom
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsTemporary reports whether the record holds a client-side optimistic ID.
func (r ExpenseRecord) IsTemporary() bool {
	return r.ID < 0
}

// Validate mirrors the create contract so in-process backends reject what a
// real server would.
func (p CreatePayload) Validate() error {
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if p.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if p.PaidByUserID <= 0 {
		return ErrMissingPayer
	}
	if utf8.RuneCountInString(p.Description) > MaxDescriptionLength {
		return ErrDescriptionLong
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	switch p.SplitType {
	case Split5050:
	case SplitCustom:
		if !p.SplitRatioUser1.Valid || !p.SplitRatioUser2.Valid {
			return ErrRatiosSum
		}
		if !p.SplitRatioUser1.Decimal.Add(p.SplitRatioUser2.Decimal).Equal(hundred) {
			return ErrRatiosSum
		}
	default:
		return ErrInvalidSplitType
	}
	return nil
}
