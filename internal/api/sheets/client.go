// Package sheets stores expenses in a Google spreadsheet. Each year gets its
// own expenses and budget sheets ("2025 Expenses", "2025 Budget"); the
// category and member directories live on undated sheets.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"casaspese/internal/api"
	"casaspese/internal/core"
	"casaspese/internal/log"
)

// Config names the spreadsheet and its sheets. Empty sheet names get
// defaults.
type Config struct {
	SpreadsheetID   string
	ExpensesSheet   string
	CategoriesSheet string
	UsersSheet      string
	BudgetSheet     string
	Credentials     Credentials
}

func (c *Config) defaults() {
	if c.ExpensesSheet == "" {
		c.ExpensesSheet = "Expenses"
	}
	if c.CategoriesSheet == "" {
		c.CategoriesSheet = "Categories"
	}
	if c.UsersSheet == "" {
		c.UsersSheet = "Users"
	}
	if c.BudgetSheet == "" {
		c.BudgetSheet = "Budget"
	}
}

// Expense sheet columns, A to K.
const (
	colID = iota
	colDate
	colDescription
	colAmount
	colCategoryID
	colCategory
	colPayerID
	colPayer
	colSplit
	colRatio1
	colRatio2
	numCols
)

const lastCol = "K"

type Client struct {
	values valuesAPI
	cfg    Config
	now    func() time.Time
	logger *log.Logger

	// mu serialises id assignment and row allocation.
	mu sync.Mutex
}

var (
	_ api.ExpenseCreator = (*Client)(nil)
	_ api.BudgetReader   = (*Client)(nil)
)

// New connects to the Sheets API with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newService(ctx, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&googleValues{svc: svc, spreadsheetID: cfg.SpreadsheetID}, cfg, logger), nil
}

func newClient(values valuesAPI, cfg Config, logger *log.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		values: values,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentSheets),
	}
}

// Create appends the expense as a new row of its year's sheet.
func (c *Client) Create(ctx context.Context, p core.CreatePayload) (core.ExpenseRecord, error) {
	if err := p.Validate(); err != nil {
		return core.ExpenseRecord{}, &core.APIError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	date := core.DateOf(c.now())
	if p.Date != nil {
		date = *p.Date
	}

	g, err := c.directories(ctx)
	if err != nil {
		return core.ExpenseRecord{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sheet := yearPrefixedName(c.cfg.ExpensesSheet, date.Year())
	ids, err := c.values.Get(ctx, fmt.Sprintf("%s!A:A", sheet))
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	nextRow := len(ids) + 1
	var maxID int64
	for _, row := range ids {
		if len(row) == 0 {
			continue
		}
		if id, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprint(row[0])), 10, 64); err == nil && id > maxID {
			maxID = id
		}
	}

	rec := core.ExpenseRecord{
		ID:              maxID + 1,
		Date:            date,
		Amount:          p.Amount,
		Description:     p.Description,
		CategoryID:      p.CategoryID,
		PaidByUserID:    p.PaidByUserID,
		SplitType:       p.SplitType,
		SplitRatioUser1: p.SplitRatioUser1,
		SplitRatioUser2: p.SplitRatioUser2,
		CategoryName:    g.categories[p.CategoryID],
		PaidByName:      g.users[p.PaidByUserID],
		Provenance:      core.Committed,
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, nextRow, lastCol, nextRow)
	if err := c.values.Update(ctx, rng, [][]any{row(rec)}); err != nil {
		return core.ExpenseRecord{}, err
	}
	c.logger.InfoContext(ctx, "expense appended",
		log.FieldExpenseID, rec.ID,
		log.FieldAmountCents, rec.Amount.Cents,
		"range", rng)
	return rec, nil
}

func row(r core.ExpenseRecord) []any {
	out := make([]any, numCols)
	out[colID] = r.ID
	out[colDate] = r.Date.String()
	out[colDescription] = r.Description
	out[colAmount] = r.Amount.String()
	out[colCategoryID] = r.CategoryID
	out[colCategory] = r.CategoryName
	out[colPayerID] = r.PaidByUserID
	out[colPayer] = r.PaidByName
	out[colSplit] = string(r.SplitType)
	out[colRatio1] = ""
	out[colRatio2] = ""
	if r.SplitRatioUser1.Valid {
		out[colRatio1] = r.SplitRatioUser1.Decimal.String()
	}
	if r.SplitRatioUser2.Valid {
		out[colRatio2] = r.SplitRatioUser2.Decimal.String()
	}
	return out
}

type names struct {
	categories map[int64]string
	users      map[int64]string
}

func (c *Client) directories(ctx context.Context) (names, error) {
	cats, err := c.readDirectory(ctx, c.cfg.CategoriesSheet)
	if err != nil {
		return names{}, fmt.Errorf("failed to read categories: %w", err)
	}
	users, err := c.readDirectory(ctx, c.cfg.UsersSheet)
	if err != nil {
		return names{}, fmt.Errorf("failed to read users: %w", err)
	}
	return names{categories: api.Names(cats), users: api.Names(users)}, nil
}

// readDirectory reads id/name pairs from A2:B. Rows without a numeric id are
// skipped; the first occurrence of an id wins.
func (c *Client) readDirectory(ctx context.Context, sheet string) ([]core.DirectoryEntry, error) {
	values, err := c.values.Get(ctx, fmt.Sprintf("%s!A2:B", sheet))
	if err != nil {
		return nil, err
	}
	seen := map[int64]struct{}{}
	var out []core.DirectoryEntry
	for _, r := range values {
		cols := toStrings(r)
		if len(cols) < 2 {
			continue
		}
		id, err := strconv.ParseInt(cols[0], 10, 64)
		if err != nil || id <= 0 || cols[1] == "" || strings.HasPrefix(cols[1], "#") {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, core.DirectoryEntry{ID: id, Name: cols[1]})
	}
	return out, nil
}

// Categories returns the category directory sheet.
func (c *Client) Categories() api.Directory {
	return api.DirectoryFunc(func(ctx context.Context) ([]core.DirectoryEntry, error) {
		return c.readDirectory(ctx, c.cfg.CategoriesSheet)
	})
}

// Users returns the household member sheet.
func (c *Client) Users() api.Directory {
	return api.DirectoryFunc(func(ctx context.Context) ([]core.DirectoryEntry, error) {
		return c.readDirectory(ctx, c.cfg.UsersSheet)
	})
}

// Get reads the month's budget from "<year> Budget" (A: month number,
// B: amount) and sums the month's rows of the expenses sheet.
func (c *Client) Get(ctx context.Context, year, month int) (core.BudgetSummary, error) {
	if month < 1 || month > 12 {
		return core.BudgetSummary{}, fmt.Errorf("invalid month: %d", month)
	}
	budgetRows, err := c.values.Get(ctx, fmt.Sprintf("%s!A2:B13", yearPrefixedName(c.cfg.BudgetSheet, year)))
	if err != nil {
		return core.BudgetSummary{}, err
	}
	var total core.Money
	for _, r := range budgetRows {
		cols := toStrings(r)
		if len(cols) < 2 {
			continue
		}
		if m, err := strconv.Atoi(cols[0]); err == nil && m == month {
			if cents, ok := parseAmount(cols[1]); ok {
				total = core.Money{Cents: cents}
			}
		}
	}

	rows, err := c.values.Get(ctx, fmt.Sprintf("%s!A:%s", yearPrefixedName(c.cfg.ExpensesSheet, year), lastCol))
	if err != nil {
		return core.BudgetSummary{}, err
	}
	var spent int64
	for _, r := range rows {
		cols := toStrings(r)
		if len(cols) <= colAmount {
			continue
		}
		d, err := core.ParseDate(cols[colDate])
		if err != nil || d.Year() != year || int(d.Month()) != month {
			continue
		}
		if cents, ok := parseAmount(cols[colAmount]); ok {
			spent += cents
		}
	}
	return core.BudgetSummary{
		Year:      year,
		Month:     month,
		Total:     total,
		Spent:     core.Money{Cents: spent},
		Remaining: core.Money{Cents: total.Cents - spent},
	}, nil
}

// Backend wires every collaborator to this client.
func (c *Client) Backend() api.Backend {
	return api.Backend{
		Expenses:   c,
		Categories: c.Categories(),
		Users:      c.Users(),
		Budgets:    c,
	}
}
