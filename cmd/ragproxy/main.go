package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/crolopez/enterprise-rag-system/internal/app"
	"github.com/crolopez/enterprise-rag-system/internal/config"
	"github.com/crolopez/enterprise-rag-system/internal/db"
	dbRedis "github.com/crolopez/enterprise-rag-system/internal/db/redis"
	logpkg "github.com/crolopez/enterprise-rag-system/internal/logger"
	"github.com/crolopez/enterprise-rag-system/internal/metrics"
	chiTransport "github.com/crolopez/enterprise-rag-system/internal/transport/chi"
	"github.com/crolopez/enterprise-rag-system/internal/transport/ollama"
	"github.com/crolopez/enterprise-rag-system/internal/transport/qdrant"
	healthuc "github.com/crolopez/enterprise-rag-system/internal/usecase/health"
	proxyuc "github.com/crolopez/enterprise-rag-system/internal/usecase/proxy"
	retrievaluc "github.com/crolopez/enterprise-rag-system/internal/usecase/retrieval"
	"github.com/crolopez/enterprise-rag-system/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting inference proxy",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("built", version.Date),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend_url", cfg.Backend.URL),
		zap.String("qdrant_url", cfg.Qdrant.URL),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterProxyMetrics()

	ctx := context.Background()

	// Optional embedding cache
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to embedding cache", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Query embedder chain — composition root
	queryEmbedder, embedderHealth := app.BuildEmbedder(cfg, cfg.Embedding.QueryInstruction, store, logger)

	// Retrieval degrades gracefully, so a cold embedding service only warns.
	checkCtx, cancelCheck := context.WithTimeout(ctx, 5*time.Second)
	if err := embedderHealth.HealthCheck(checkCtx); err != nil {
		logger.Warn("Embedding service not reachable at startup", zap.Error(err))
	}
	cancelCheck()

	searcher := qdrant.NewClient(&qdrant.Config{
		URL:     cfg.Qdrant.URL,
		Timeout: time.Duration(cfg.Qdrant.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	var gate retrievaluc.Gate
	if cfg.Retrieval.Gate.Enabled {
		gate = retrievaluc.NewKeywordGate(cfg.Retrieval.Gate.Keywords)
		logger.Info("Keyword gate enabled", zap.Int("keywords", len(cfg.Retrieval.Gate.Keywords)))
	}

	retrievalSvc := retrievaluc.New(queryEmbedder, searcher, gate, retrievaluc.Config{
		Collection:     cfg.Retrieval.Collection,
		Limit:          cfg.Retrieval.Limit,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
	}, logger)

	backend := ollama.NewClient(&ollama.Config{
		URL:                cfg.Backend.URL,
		GenerateTimeout:    time.Duration(cfg.Backend.GenerateTimeoutSec) * time.Second,
		PassthroughTimeout: time.Duration(cfg.Backend.PassthroughTimeoutSec) * time.Second,
		HealthTimeout:      time.Duration(cfg.Backend.HealthTimeoutSec) * time.Second,
		Logger:             logger,
	})

	proxySvc := proxyuc.New(retrievalSvc, backend, logger)
	healthSvc := healthuc.New(backend)

	server := chiTransport.NewServer(proxySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
