// Command analytics-worker consumes form analytics events from RabbitMQ,
// journals them in SQLite and reports trails that break the lifecycle.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"casaspese/internal/amqp"
	"casaspese/internal/cli"
	"casaspese/internal/log"
	"casaspese/internal/worker"
)

const statsInterval = time.Minute

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting analytics-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	journal := cli.InitJournal(logger, cfg.AnalyticsDBPath)
	defer journal.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	w := worker.NewJournalWorker(journal, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, amqpClient)
	})
	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s := w.Stats()
				logger.Info("Journal stats",
					"processed", s.Processed,
					"duplicates", s.Duplicates,
					"checked", s.Checked,
					"violations", s.Violations)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Analytics worker failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if ctx.Err() != nil {
		<-done
	}
	logger.Info("analytics-worker stopped")
}
