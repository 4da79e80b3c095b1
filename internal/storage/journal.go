// Package storage keeps a durable journal of analytics events in SQLite.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"casaspese/internal/analytics"
	"casaspese/internal/log"
)

const writeTimeout = 2 * time.Second

// Journal stores events keyed by (instance, seq). Replays of the same key
// are ignored, so redelivered broker messages are harmless.
type Journal struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var _ analytics.Sink = (*Journal)(nil)

func NewJournal(dbPath string, logger *log.Logger) (*Journal, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Journal{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Append records e and reports whether it was new.
func (j *Journal) Append(ctx context.Context, e analytics.Event) (bool, error) {
	payload := []byte("{}")
	if len(e.Payload) > 0 {
		var err error
		if payload, err = json.Marshal(e.Payload); err != nil {
			return false, fmt.Errorf("marshal payload: %w", err)
		}
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO analytics_events
			(instance_id, seq, name, payload, occurred_at, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.InstanceID, e.Seq, string(e.Name), string(payload),
		e.At.UTC().Format(time.RFC3339Nano), j.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ListByInstance returns the trail of one form instance in seq order.
func (j *Journal) ListByInstance(ctx context.Context, instanceID string) ([]analytics.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT instance_id, seq, name, payload, occurred_at
		   FROM analytics_events
		  WHERE instance_id = ?
		  ORDER BY seq`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []analytics.Event
	for rows.Next() {
		var (
			e       analytics.Event
			name    string
			payload string
			at      string
		)
		if err := rows.Scan(&e.InstanceID, &e.Seq, &name, &payload, &at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Name = analytics.Name(name)
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse occurred_at %q: %w", at, err)
		}
		if e.Payload, err = decodePayload(payload); err != nil {
			return nil, fmt.Errorf("decode payload of %s/%d: %w", e.InstanceID, e.Seq, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByName returns how many events of each name have been journaled.
func (j *Journal) CountByName(ctx context.Context) (map[analytics.Name]int64, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT name, COUNT(*) FROM analytics_events GROUP BY name`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[analytics.Name]int64)
	for rows.Next() {
		var (
			name string
			n    int64
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[analytics.Name(name)] = n
	}
	return counts, rows.Err()
}

// Write journals e synchronously, logging failures.
func (j *Journal) Write(e analytics.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := j.Append(ctx, e); err != nil {
		j.logger.Error("failed to journal analytics event",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldInstanceID, e.InstanceID,
			log.FieldSeq, e.Seq)
	}
}

func decodePayload(s string) (analytics.Payload, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var p analytics.Payload
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}
