package backend

import (
	"context"
	"time"

	"casaspese/internal/analytics"
	"casaspese/internal/api"
	"casaspese/internal/api/memory"
	"casaspese/internal/core"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend api.Backend
	// Memory is set for the memory backend so hosts can inject failures.
	Memory  *memory.Store
	Cleanup CleanupFunc
}

// SinkResult is the fan-out of every configured analytics sink.
type SinkResult struct {
	Sink    analytics.Sink
	Names   []string
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateSinks(ctx context.Context, config SinkConfig) (*SinkResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// HTTP specific
	APIBaseURL string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory backend specific
	DataDirectory string
	MonthlyBudget core.Money

	// Zero disables directory caching.
	DirectoryCacheTTL time.Duration
}

// SinkConfig selects and configures analytics sinks.
type SinkConfig struct {
	Sinks []string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	BufferSize   int

	DBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	HTTPBackend   BackendType = "http"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, HTTPBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
