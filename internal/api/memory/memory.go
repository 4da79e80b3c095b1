// Package memory is an in-process backend for local runs and tests. It
// validates payloads the way the REST API does and can be told to fail or to
// answer slowly.
package memory

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"casaspese/internal/api"
	"casaspese/internal/core"
)

var (
	defaultCategories = []string{"Casa", "Spesa", "Trasporti"}
	defaultUsers      = []string{"Anna", "Luca"}
)

type Store struct {
	mu         sync.Mutex
	categories []core.DirectoryEntry
	users      []core.DirectoryEntry
	items      []core.ExpenseRecord
	nextID     int64
	budget     core.Money
	latency    time.Duration
	failures   []error
	now        func() time.Time
}

// New builds a store whose categories and users get ids 1..n in order.
func New(categories, users []string, monthlyBudget core.Money) *Store {
	return &Store{
		categories: entries(dedupe(categories)),
		users:      entries(dedupe(users)),
		budget:     monthlyBudget,
		now:        time.Now,
	}
}

// NewFromFiles seeds the store from seed_categories.txt and seed_users.txt in
// base, falling back to built-in names when a file is missing or empty.
func NewFromFiles(base string, monthlyBudget core.Money) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	users := readLines(filepath.Join(base, "seed_users.txt"))
	if len(cats) == 0 {
		cats = defaultCategories
	}
	if len(users) == 0 {
		users = defaultUsers
	}
	return New(cats, users, monthlyBudget)
}

// WithClock replaces the time source used for default dates and budgets.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// SetLatency delays every call by d, or until the context is done.
func (s *Store) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// FailNext queues errors returned by the next Create calls, one per call.
func (s *Store) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *Store) wait(ctx context.Context) error {
	s.mu.Lock()
	d := s.latency
	s.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Create(ctx context.Context, p core.CreatePayload) (core.ExpenseRecord, error) {
	if err := s.wait(ctx); err != nil {
		return core.ExpenseRecord{}, err
	}
	if err := p.Validate(); err != nil {
		return core.ExpenseRecord{}, &core.APIError{Status: http.StatusBadRequest, Message: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return core.ExpenseRecord{}, err
	}
	date := core.DateOf(s.now())
	if p.Date != nil {
		date = *p.Date
	}
	s.nextID++
	rec := core.ExpenseRecord{
		ID:              s.nextID,
		Date:            date,
		Amount:          p.Amount,
		Description:     p.Description,
		CategoryID:      p.CategoryID,
		PaidByUserID:    p.PaidByUserID,
		SplitType:       p.SplitType,
		SplitRatioUser1: p.SplitRatioUser1,
		SplitRatioUser2: p.SplitRatioUser2,
		CategoryName:    lookup(s.categories, p.CategoryID),
		PaidByName:      lookup(s.users, p.PaidByUserID),
		Provenance:      core.Committed,
	}
	s.items = append(s.items, rec)
	return rec, nil
}

// Expenses returns everything created so far, oldest first.
func (s *Store) Expenses() []core.ExpenseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExpenseRecord(nil), s.items...)
}

// Get sums the month's expenses against the monthly budget.
func (s *Store) Get(ctx context.Context, year, month int) (core.BudgetSummary, error) {
	if err := s.wait(ctx); err != nil {
		return core.BudgetSummary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var spent int64
	for _, e := range s.items {
		if e.Date.Year() == year && int(e.Date.Month()) == month {
			spent += e.Amount.Cents
		}
	}
	return core.BudgetSummary{
		Year:      year,
		Month:     month,
		Total:     s.budget,
		Spent:     core.Money{Cents: spent},
		Remaining: core.Money{Cents: s.budget.Cents - spent},
	}, nil
}

func (s *Store) Categories() api.Directory {
	return api.DirectoryFunc(func(ctx context.Context) ([]core.DirectoryEntry, error) {
		return s.list(ctx, func() []core.DirectoryEntry { return s.categories })
	})
}

func (s *Store) Users() api.Directory {
	return api.DirectoryFunc(func(ctx context.Context) ([]core.DirectoryEntry, error) {
		return s.list(ctx, func() []core.DirectoryEntry { return s.users })
	})
}

func (s *Store) list(ctx context.Context, pick func() []core.DirectoryEntry) ([]core.DirectoryEntry, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.DirectoryEntry(nil), pick()...), nil
}

// Backend wires every collaborator to this store.
func (s *Store) Backend() api.Backend {
	return api.Backend{
		Expenses:   s,
		Categories: s.Categories(),
		Users:      s.Users(),
		Budgets:    s,
	}
}

func lookup(entries []core.DirectoryEntry, id int64) string {
	for _, e := range entries {
		if e.ID == id {
			return e.Name
		}
	}
	return ""
}

func entries(names []string) []core.DirectoryEntry {
	out := make([]core.DirectoryEntry, len(names))
	for i, n := range names {
		out[i] = core.DirectoryEntry{ID: int64(i + 1), Name: n}
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe keeps the first occurrence of each name, in input order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
