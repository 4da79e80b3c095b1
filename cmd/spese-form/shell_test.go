package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casaspese/internal/analytics"
	"casaspese/internal/api/memory"
	"casaspese/internal/core"
	"casaspese/internal/expenselist"
	"casaspese/internal/submission"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	sh     *shell
	out    *syncBuffer
	mem    *memory.Store
	events *analytics.Recorder
}

func newHarness(t *testing.T, withMemory bool) *harness {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 9, 10, 9, 0, 0, 0, time.UTC) }
	mem := memory.New([]string{"Casa", "Spesa"}, []string{"Anna", "Luca"}, core.Money{Cents: 100000}).WithClock(now)
	out := &syncBuffer{}
	events := &analytics.Recorder{}
	store := expenselist.NewStore(nil)
	host := submission.NewStoreHost(store, func() { fmt.Fprintln(out, "form closed") })
	coord := submission.New(mem.Backend(), host, submission.Options{Now: now, Sink: events})
	t.Cleanup(coord.Shutdown)

	sh := &shell{coord: coord, store: store, out: out}
	if withMemory {
		sh.memory = mem
	}
	return &harness{sh: sh, out: out, mem: mem, events: events}
}

func (h *harness) run(t *testing.T, script ...string) string {
	t.Helper()
	in := strings.NewReader(strings.Join(script, "\n") + "\n")
	require.NoError(t, h.sh.run(context.Background(), in))
	return h.out.String()
}

var fill = []string{
	"set amount 12,50",
	"set category_id 2",
	"set paid_by_user_id 1",
	"set date 2025-09-08",
	"set description Pane e latte",
}

func TestShell_SubmitAndList(t *testing.T) {
	h := newHarness(t, true)

	script := append([]string{"open"}, fill...)
	script = append(script, "submit", "list", "quit")
	out := h.run(t, script...)

	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "form closed")
	assert.Contains(t, out, "Pane e latte")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "Spesa")
	assert.Len(t, h.mem.Expenses(), 1)
	require.NoError(t, analytics.ValidateLifecycle(h.events.Events()))
}

func TestShell_ValidationErrors(t *testing.T) {
	h := newHarness(t, true)

	out := h.run(t, "open", "submit", "fields")

	assert.Contains(t, out, "amount: amount required")
	assert.Contains(t, out, "category_id: category required")
	assert.Empty(t, h.mem.Expenses())
}

func TestShell_FailureThenRetry(t *testing.T) {
	h := newHarness(t, true)

	script := append([]string{"open"}, fill...)
	script = append(script, "fail 503", "submit", "list", "retry")
	out := h.run(t, script...)

	assert.Contains(t, out, "next create fails with 503")
	assert.Contains(t, out, "could not save (server)")
	assert.Contains(t, out, "type retry to try again")
	assert.Contains(t, out, "no expenses")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), ">"))
	assert.Len(t, h.mem.Expenses(), 1)
	require.NoError(t, analytics.ValidateLifecycle(h.events.Events()))
}

func TestShell_DiscardPrompt(t *testing.T) {
	h := newHarness(t, true)

	out := h.run(t, "open", "set amount 5", "close", "keep", "close", "discard")

	assert.Equal(t, 2, strings.Count(out, "unsaved changes: discard or keep?"))
	assert.Contains(t, out, "form closed")
	assert.False(t, h.sh.coord.IsOpen())
}

func TestShell_Misc(t *testing.T) {
	h := newHarness(t, false)

	out := h.run(t, "frobnicate", "fail 500", "categories", "budget", "set", "close", "open", "users")

	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "failure injection needs the memory backend")
	assert.Contains(t, out, "nothing loaded, open the form first")
	assert.Contains(t, out, "no budget information yet")
	assert.Contains(t, out, "usage: set <field> <value>")
	assert.Contains(t, out, "form is not open")
	assert.Contains(t, out, "Luca")
}

func TestShell_StopsOnCancel(t *testing.T) {
	h := newHarness(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns data; run must still return.
	r, w := io.Pipe()
	defer w.Close()
	done := make(chan error, 1)
	go func() { done <- h.sh.run(ctx, r) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestShell_ListMarksUnsavedRows(t *testing.T) {
	h := newHarness(t, true)
	h.sh.store.Update(func(prev []core.ExpenseRecord) []core.ExpenseRecord {
		return expenselist.Insert(prev, core.ExpenseRecord{
			ID:         -5,
			Date:       core.NewDate(2025, 9, 9),
			Amount:     core.Money{Cents: 300},
			Provenance: core.Optimistic,
		})
	})
	h.sh.store.Update(func(prev []core.ExpenseRecord) []core.ExpenseRecord {
		return expenselist.Insert(prev, core.ExpenseRecord{ID: 8, Date: core.NewDate(2025, 9, 1), Amount: core.Money{Cents: 700}})
	})

	out := h.run(t, "list")

	var unsaved, saved string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "2025-09-09"):
			unsaved = line
		case strings.Contains(line, "2025-09-01"):
			saved = line
		}
	}
	assert.Contains(t, unsaved, "-5")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(unsaved), "saving"), unsaved)
	require.NotEmpty(t, saved)
	assert.NotContains(t, saved, "saving")
}
