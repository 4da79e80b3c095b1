// Package api declares the collaborators the submission pipeline talks to:
// the expense create endpoint, the category and member directories and the
// monthly budget summary.
package api

import (
	"context"
	"errors"
	"fmt"

	"casaspese/internal/core"
)

// ErrNotConfigured is returned by a Backend that lacks a collaborator.
var ErrNotConfigured = errors.New("collaborator not configured")

// ExpenseCreator persists a new expense and returns the authoritative record.
// Failures carry a *core.APIError; undecodable answers wrap
// core.ErrMalformedResponse.
type ExpenseCreator interface {
	Create(ctx context.Context, p core.CreatePayload) (core.ExpenseRecord, error)
}

// Directory lists id/name pairs.
type Directory interface {
	List(ctx context.Context) ([]core.DirectoryEntry, error)
}

// BudgetReader returns the budget summary of a month (1-12).
type BudgetReader interface {
	Get(ctx context.Context, year, month int) (core.BudgetSummary, error)
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(ctx context.Context) ([]core.DirectoryEntry, error)

func (f DirectoryFunc) List(ctx context.Context) ([]core.DirectoryEntry, error) { return f(ctx) }

// Backend groups the collaborators of one data source.
type Backend struct {
	Expenses   ExpenseCreator
	Categories Directory
	Users      Directory
	Budgets    BudgetReader
}

// Validate reports which collaborators are missing.
func (b Backend) Validate() error {
	var errs []error
	if b.Expenses == nil {
		errs = append(errs, fmt.Errorf("expenses: %w", ErrNotConfigured))
	}
	if b.Categories == nil {
		errs = append(errs, fmt.Errorf("categories: %w", ErrNotConfigured))
	}
	if b.Users == nil {
		errs = append(errs, fmt.Errorf("users: %w", ErrNotConfigured))
	}
	if b.Budgets == nil {
		errs = append(errs, fmt.Errorf("budgets: %w", ErrNotConfigured))
	}
	return errors.Join(errs...)
}

// Names indexes entries by id.
func Names(entries []core.DirectoryEntry) map[int64]string {
	out := make(map[int64]string, len(entries))
	for _, e := range entries {
		out[e.ID] = e.Name
	}
	return out
}
