package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casaspese/internal/core"
)

func TestCachedDirectory(t *testing.T) {
	var calls atomic.Int32
	inner := DirectoryFunc(func(context.Context) ([]core.DirectoryEntry, error) {
		calls.Add(1)
		return []core.DirectoryEntry{{ID: 1, Name: "Spesa"}}, nil
	})
	d := NewCachedDirectory("categories", inner, time.Hour)

	first, err := d.List(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Spesa", second[0].Name, "callers get their own copy")
	assert.EqualValues(t, 1, calls.Load())

	d.Invalidate()
	_, err = d.List(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCachedDirectory_WrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	d := NewCachedDirectory("users", DirectoryFunc(func(context.Context) ([]core.DirectoryEntry, error) {
		return nil, boom
	}), time.Hour)

	_, err := d.List(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "list users")
}

func TestBackendValidate(t *testing.T) {
	err := Backend{Categories: DirectoryFunc(nil)}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expenses")
	assert.NotContains(t, err.Error(), "categories")
	assert.ErrorContains(t, err, "budgets")
}

func TestNames(t *testing.T) {
	names := Names([]core.DirectoryEntry{{ID: 1, Name: "Anna"}, {ID: 2, Name: "Luca"}})
	assert.Equal(t, map[int64]string{1: "Anna", 2: "Luca"}, names)
}

func TestBackendValidate_IsNotConfigured(t *testing.T) {
	assert.ErrorIs(t, Backend{}.Validate(), ErrNotConfigured)
}
