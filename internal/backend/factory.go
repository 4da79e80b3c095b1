package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"casaspese/internal/amqp"
	"casaspese/internal/analytics"
	"casaspese/internal/api"
	"casaspese/internal/api/httpclient"
	"casaspese/internal/api/memory"
	"casaspese/internal/api/sheets"
	"casaspese/internal/cache"
	"casaspese/internal/config"
	"casaspese/internal/log"
	"casaspese/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case MemoryBackend:
		result = f.createMemoryBackend(config)
	case HTTPBackend:
		result, err = f.createHTTPBackend(config)
	case SheetsBackend:
		result, err = f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := result.Backend.Validate(); err != nil {
		return nil, fmt.Errorf("%s backend: %w", config.Type, err)
	}

	if config.DirectoryCacheTTL > 0 {
		f.cacheDirectories(result, config.DirectoryCacheTTL)
	}
	return result, nil
}

// cacheDirectories wraps both directories and cleans them in the background.
func (f *DefaultFactory) cacheDirectories(result *BackendResult, ttl time.Duration) {
	categories := api.NewCachedDirectory("categories", result.Backend.Categories, ttl)
	users := api.NewCachedDirectory("users", result.Backend.Users, ttl)
	result.Backend.Categories = categories
	result.Backend.Users = users

	manager := cache.NewManager(f.logger)
	manager.Register(categories.Cleaner())
	manager.Register(users.Cleaner())
	manager.StartCleanup(ttl)

	inner := result.Cleanup
	result.Cleanup = func() error {
		manager.Stop()
		if inner != nil {
			return inner()
		}
		return nil
	}
	f.logger.Info("Directory cache enabled", "ttl", ttl.String())
}

func (f *DefaultFactory) createMemoryBackend(config Config) *BackendResult {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data" // Default directory
	}

	store := memory.NewFromFiles(dataDir, config.MonthlyBudget)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend: store.Backend(),
		Memory:  store,
	}
}

func (f *DefaultFactory) createHTTPBackend(config Config) (*BackendResult, error) {
	client, err := httpclient.New(config.APIBaseURL, httpclient.WithLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	f.logger.Info("Initialized http backend", "base_url", config.APIBaseURL)

	return &BackendResult{Backend: client.Backend()}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		ExpensesSheet: config.GoogleSheetName,
		Credentials: sheets.Credentials{
			JSON: config.GoogleServiceAccountJSON,
			File: config.GoogleServiceAccountFile,
		},
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)

	return &BackendResult{Backend: client.Backend()}, nil
}

// CreateSinks implements Factory.CreateSinks. An unreachable broker is not
// fatal: the amqp sink is skipped with a warning.
func (f *DefaultFactory) CreateSinks(ctx context.Context, cfg SinkConfig) (*SinkResult, error) {
	var (
		sinks    []analytics.Sink
		names    []string
		cleanups []CleanupFunc
	)
	closeAll := func() error {
		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i]())
		}
		return errors.Join(errs...)
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, analytics.NewLogSink(f.logger))

		case config.SinkAMQP:
			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
			if err != nil {
				f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without amqp sink",
					log.FieldError, err.Error())
				continue
			}
			publisher := amqp.NewPublisher(client, cfg.BufferSize, f.logger)
			sinks = append(sinks, publisher)
			cleanups = append(cleanups, func() error {
				err := publisher.CloseWithDeadline()
				return errors.Join(err, client.Close())
			})
			f.logger.InfoContext(ctx, "Initialized AMQP analytics sink",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)

		case config.SinkSQLite:
			journal, err := storage.NewJournal(cfg.DBPath, f.logger)
			if err != nil {
				closeAll()
				return nil, fmt.Errorf("failed to initialize analytics journal: %w", err)
			}
			sinks = append(sinks, journal)
			cleanups = append(cleanups, journal.Close)
			f.logger.InfoContext(ctx, "Initialized SQLite analytics sink", "db_path", cfg.DBPath)

		default:
			closeAll()
			return nil, fmt.Errorf("unsupported analytics sink: %s", name)
		}
		names = append(names, name)
	}

	sink := analytics.Discard
	if len(sinks) > 0 {
		sink = analytics.Multi(sinks...)
	}
	return &SinkResult{Sink: sink, Names: names, Cleanup: closeAll}, nil
}
