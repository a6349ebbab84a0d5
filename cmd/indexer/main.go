package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tables"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/fsutil"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	force := flag.Bool("force", false, "rescan the corpus even when persisted tables exist")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"corpus", cfg.Corpus.Dir,
		"backend", cfg.Storage.Backend,
		"force", *force,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := tables.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open table store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer closer.Close()

	corpusFS, corpusDir, err := fsutil.OSDir(cfg.Corpus.Dir)
	if err != nil {
		slog.Error("failed to open corpus", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}

	opts := []indexer.Option{indexer.WithExtension(cfg.Corpus.Extension)}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, indexer.WithNotifier(indexer.NewEventNotifier(producer, cfg.Corpus.Dir)))
		slog.Info("index events enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	engine, err := indexer.NewEngine(corpusFS, corpusDir, store, opts...)
	if err != nil {
		slog.Error("invalid corpus directory", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}

	if _, err := engine.BuildIndex(ctx, !*force); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}

	status := engine.Status()
	slog.Info("index ready",
		"source", status.Source,
		"documents", status.Documents,
		"terms", status.Terms,
		"skipped", len(status.SkippedFiles),
		"duration", status.Duration,
	)
}
