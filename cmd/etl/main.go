package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/shooting-data-etl/internal/adapter/dataset"
	httpadapter "github.com/couchcryptid/shooting-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/shooting-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/shooting-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/shooting-data-etl/internal/census"
	"github.com/couchcryptid/shooting-data-etl/internal/config"
	"github.com/couchcryptid/shooting-data-etl/internal/observability"
	"github.com/couchcryptid/shooting-data-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	table, err := census.BuildTable(census.DefaultSnapshots(), cfg.CensusMaxYear)
	if err != nil {
		logger.Error("failed to build census table", "error", err)
		os.Exit(1)
	}

	// Choose the dataset source: a local file when DATASET_PATH is set,
	// otherwise the NYC Open Data export endpoint.
	var extractor pipeline.Extractor
	var source string
	if cfg.DatasetPath != "" {
		extractor = dataset.NewFileSource(cfg.DatasetPath, logger)
		source = cfg.DatasetPath
		logger.Info("reading dataset from file", "path", cfg.DatasetPath)
	} else {
		extractor = dataset.NewHTTPSource(cfg.DatasetURL, cfg.DownloadTimeout, logger)
		source = cfg.DatasetURL
		logger.Info("downloading dataset", "url", cfg.DatasetURL, "timeout", cfg.DownloadTimeout)
	}

	// Kafka publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	store, err := sqlite.New(cfg.StatsDBPath, logger)
	if err != nil {
		logger.Error("failed to open stats database", "error", err)
		os.Exit(1)
	}

	p := pipeline.New(extractor, publisher, store, table, source, cfg.RefreshInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the ETL pipeline. A one-shot run (no refresh interval) shuts the
	// process down once it finishes; in refresh mode Run only returns on a
	// failed first run or on signal.
	pipelineErr := make(chan error, 1)
	go func() {
		err := p.Run(ctx)
		if err != nil {
			logger.Error("pipeline error", "error", err)
		}
		pipelineErr <- err
		stop()
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("stats database close error", "error", err)
	}

	logger.Info("shutdown complete")

	if err := <-pipelineErr; err != nil {
		os.Exit(1)
	}
}
