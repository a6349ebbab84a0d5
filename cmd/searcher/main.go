package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tables"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/fsutil"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search100/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus", cfg.Corpus.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

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
	engine, err := indexer.NewEngine(corpusFS, corpusDir, store,
		indexer.WithExtension(cfg.Corpus.Extension),
		indexer.WithMetrics(m),
	)
	if err != nil {
		slog.Error("invalid corpus directory", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}

	var (
		queryCache  *cache.QueryCache
		redisClient *pkgredis.Client
	)
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	exec := executor.New(engine, executor.WithMetrics(m), executor.WithLimit(cfg.Search.MaxResults))
	svc := service.New(engine, exec, queryCache)
	if _, err := svc.Rebuild(ctx, false); err != nil {
		slog.Error("initial index build failed", "error", err)
		os.Exit(1)
	}

	if cfg.Kafka.Enabled {
		kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, consumer.HandleMessage(svc))
		reloads := consumer.New(kafkaConsumer)
		go func() {
			if err := reloads.Start(ctx); err != nil {
				slog.Error("reload consumer stopped", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index", health.IndexCheck(func() (bool, string) {
		status := svc.Status()
		return status.Source != indexer.SourceNone, fmt.Sprintf("%d documents from %s", status.Documents, status.Source)
	}))
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient, health.StatusDegraded))
	}

	queryStats := analytics.NewAggregator()

	mux := http.NewServeMux()
	handler.New(svc, queryStats, cfg.Search.DefaultLimit, cfg.Search.MaxResults).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", queryStats.Handler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler(reg))

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
