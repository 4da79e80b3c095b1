// Command spese-form is a line-oriented host for the add-expense form. It
// keeps an expense list in memory and drives the submission coordinator
// against the configured backend.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"casaspese/internal/backend"
	"casaspese/internal/cli"
	"casaspese/internal/core"
	"casaspese/internal/expenselist"
	"casaspese/internal/log"
	"casaspese/internal/submission"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	setupCtx, cancelSetup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelSetup()

	result, err := factory.CreateBackend(setupCtx, backendConfig)
	if err != nil {
		logger.Error("Failed to create backend",
			log.FieldError, err.Error(),
			log.FieldBackend, backendConfig.Type.String())
		os.Exit(1)
	}

	sinks, err := factory.CreateSinks(setupCtx, backend.SinksFromAppConfig(cfg))
	if err != nil {
		logger.Error("Failed to create analytics sinks", log.FieldError, err.Error())
		os.Exit(1)
	}

	// Seed the list with what the memory backend already holds.
	store := expenselist.NewStore(nil)
	if result.Memory != nil {
		store = expenselist.NewStore(result.Memory.Expenses())
	}

	host := submission.NewStoreHost(store, func() {
		fmt.Fprintln(os.Stdout, "form closed")
	})
	coord := submission.New(result.Backend, host, submission.Options{
		CreateTimeout: cfg.CreateTimeout,
		BudgetTimeout: cfg.BudgetLookupTimeout,
		Logger:        logger,
		Sink:          sinks.Sink,
		OnBudget:      printBudget,
	})

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	logger.Info("Starting spese-form",
		log.FieldBackend, backendConfig.Type.String(),
		"analytics_sinks", sinks.Names)
	fmt.Fprintln(os.Stdout, "type help for commands")

	sh := &shell{coord: coord, store: store, memory: result.Memory, out: os.Stdout}
	if err := sh.run(ctx, os.Stdin); err != nil {
		logger.Error("Input error", log.FieldError, err.Error())
	}

	coord.Shutdown()
	if err := sinks.Cleanup(); err != nil {
		logger.Warn("Analytics sink cleanup failed", log.FieldError, err.Error())
	}
	if result.Cleanup != nil {
		if err := result.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
		}
	}
	if ctx.Err() != nil {
		<-done
	}
	logger.Info("spese-form stopped")
}

func printBudget(remaining core.Money) {
	fmt.Fprintf(os.Stdout, "budget left this month: %s\n", remaining)
}
