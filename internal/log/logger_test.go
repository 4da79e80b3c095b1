package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Component: ComponentApp, Handler: slog.NewTextHandler(&buf, nil)})

	l.WithComponent(ComponentBudget).Info("lookup done", FieldYear, 2025)

	out := buf.String()
	if !strings.Contains(out, "component=budget") {
		t.Fatalf("expected component=budget in %q", out)
	}
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("component logged more than once: %q", out)
	}
	if !strings.Contains(out, "year=2025") {
		t.Fatalf("expected year attr in %q", out)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithOperation(OpSubmit).
		WithError(errors.New("boom")).
		WithExpense(-1, 1250, 3, 1).
		WithError(nil)

	if f[FieldOperation] != OpSubmit {
		t.Fatalf("operation = %v", f[FieldOperation])
	}
	if f[FieldError] != "boom" {
		t.Fatalf("error = %v", f[FieldError])
	}
	if f[FieldTempID] != int64(-1) {
		t.Fatalf("temp id = %v", f[FieldTempID])
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Fatalf("ToSlice len = %d, want %d", got, 2*len(f))
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard().WithComponent(ComponentWorker)
	ctx := NewContext(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Fatalf("FromContext returned a different logger")
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Fatalf("fallback component = %q", got)
	}
}
