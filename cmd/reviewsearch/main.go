package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewsearch/internal/app"
	"github.com/kailas-cloud/reviewsearch/internal/config"
	logpkg "github.com/kailas-cloud/reviewsearch/internal/logger"
	"github.com/kailas-cloud/reviewsearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/reviewsearch/internal/transport/chi"
	healthuc "github.com/kailas-cloud/reviewsearch/internal/usecase/health"
	"github.com/kailas-cloud/reviewsearch/internal/usecase/retrieval"
	"github.com/kailas-cloud/reviewsearch/internal/version"
)

const healthCheckTimeout = 2 * time.Second

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, zap.String("service", "reviewsearch"))
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting reviewsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("redis_addrs", cfg.Database.Addrs),
		zap.String("metadata_driver", cfg.Metadata.Driver),
	)

	ctx := context.Background()

	store, err := app.ConnectStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer store.Close()
	logger.Info("Connected to Redis")

	meta, err := app.OpenMetadata(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer func() { _ = meta.Close() }()

	catalog, err := app.OpenCatalog(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open product catalog", zap.Error(err))
	}
	defer func() { _ = catalog.Close() }()

	params, err := app.ServingIndexParams(cfg, logger)
	if err != nil {
		logger.Fatal("Index parameters", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterHTTPMetrics()

	queryEmbedder, provider, err := app.QueryEmbedder(cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to build query embedder", zap.Error(err))
	}
	logger.Info("Query embedder created",
		zap.String("model", provider.Model()),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	searchSvc := retrieval.New(
		app.Lexical(store, cfg),
		app.VectorIndex(store, params, cfg),
		meta,
		catalog,
		queryEmbedder,
		time.Duration(cfg.Search.TimeoutMs)*time.Millisecond,
	)

	healthSvc := healthuc.New(healthCheckTimeout,
		healthuc.Component{Name: "redis", Pinger: store},
		healthuc.Component{Name: "metadata", Pinger: meta},
		healthuc.Component{Name: "catalog", Pinger: catalog},
		healthuc.Component{Name: "embedding", Pinger: healthuc.Embedding(provider)},
	)

	server := chiTransport.NewServer(searchSvc, healthSvc, app.Limits(cfg, params), logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
