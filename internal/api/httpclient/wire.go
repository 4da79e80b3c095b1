package httpclient

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"casaspese/internal/core"
)

// createRequest is the body of POST /expenses. Amounts and ratios go out as
// JSON numbers.
type createRequest struct {
	Amount          json.Number  `json:"amount"`
	CategoryID      int64        `json:"category_id"`
	PaidByUserID    int64        `json:"paid_by_user_id"`
	Description     string       `json:"description"`
	Date            string       `json:"date,omitempty"`
	SplitType       string       `json:"split_type"`
	SplitRatioUser1 *json.Number `json:"split_ratio_user1,omitempty"`
	SplitRatioUser2 *json.Number `json:"split_ratio_user2,omitempty"`
}

func newCreateRequest(p core.CreatePayload) createRequest {
	req := createRequest{
		Amount:       json.Number(p.Amount.String()),
		CategoryID:   p.CategoryID,
		PaidByUserID: p.PaidByUserID,
		Description:  p.Description,
		SplitType:    string(p.SplitType),
	}
	if p.Date != nil {
		req.Date = p.Date.String()
	}
	req.SplitRatioUser1 = ratio(p.SplitRatioUser1)
	req.SplitRatioUser2 = ratio(p.SplitRatioUser2)
	return req
}

func ratio(d decimal.NullDecimal) *json.Number {
	if !d.Valid {
		return nil
	}
	n := json.Number(d.Decimal.String())
	return &n
}

// expenseResponse accepts amounts as numbers or quoted strings.
type expenseResponse struct {
	ID              int64               `json:"id"`
	Date            string              `json:"date"`
	Amount          decimal.Decimal     `json:"amount"`
	Description     string              `json:"description"`
	CategoryID      int64               `json:"category_id"`
	PaidByUserID    int64               `json:"paid_by_user_id"`
	SplitType       string              `json:"split_type"`
	SplitRatioUser1 decimal.NullDecimal `json:"split_ratio_user1"`
	SplitRatioUser2 decimal.NullDecimal `json:"split_ratio_user2"`
	CategoryName    string              `json:"category_name"`
	PaidByName      string              `json:"paid_by_name"`
}

func (r expenseResponse) record() (core.ExpenseRecord, error) {
	if r.ID <= 0 {
		return core.ExpenseRecord{}, fmt.Errorf("expense id %d: %w", r.ID, core.ErrMalformedResponse)
	}
	// Some servers answer with a full timestamp.
	raw := r.Date
	if len(raw) > len(core.DateLayout) {
		raw = raw[:len(core.DateLayout)]
	}
	date, err := core.ParseDate(raw)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("expense date %q: %w", r.Date, core.ErrMalformedResponse)
	}
	split := core.SplitType(r.SplitType)
	if split == "" {
		split = core.Split5050
	}
	return core.ExpenseRecord{
		ID:              r.ID,
		Date:            date,
		Amount:          core.MoneyFromDecimal(r.Amount),
		Description:     r.Description,
		CategoryID:      r.CategoryID,
		PaidByUserID:    r.PaidByUserID,
		SplitType:       split,
		SplitRatioUser1: r.SplitRatioUser1,
		SplitRatioUser2: r.SplitRatioUser2,
		CategoryName:    r.CategoryName,
		PaidByName:      r.PaidByName,
		Provenance:      core.Committed,
	}, nil
}

type directoryEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type budgetResponse struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	Spent           decimal.Decimal `json:"spent"`
	RemainingBudget decimal.Decimal `json:"remaining_budget"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
