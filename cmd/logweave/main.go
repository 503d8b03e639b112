package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/logweave/internal/codec"
	"github.com/kailas-cloud/logweave/internal/config"
	dbRedis "github.com/kailas-cloud/logweave/internal/db/redis"
	"github.com/kailas-cloud/logweave/internal/index"
	"github.com/kailas-cloud/logweave/internal/keystore"
	logpkg "github.com/kailas-cloud/logweave/internal/logger"
	"github.com/kailas-cloud/logweave/internal/metrics"
	"github.com/kailas-cloud/logweave/internal/store/postgres"
	chiTransport "github.com/kailas-cloud/logweave/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/logweave/internal/transport/openai"
	"github.com/kailas-cloud/logweave/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/logweave/internal/usecase/ingest"
	logsearchuc "github.com/kailas-cloud/logweave/internal/usecase/logsearch"
	vectorsearchuc "github.com/kailas-cloud/logweave/internal/usecase/vectorsearch"
	"github.com/kailas-cloud/logweave/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting logweave API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("vector_addrs", cfg.VectorDB.Addrs),
	)

	// Durable log store
	pgCfg := postgres.DefaultConfig(cfg.Database.DSN)
	if cfg.Database.MaxOpenConns > 0 {
		pgCfg.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		pgCfg.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	logStore, err := postgres.New(pgCfg, logger)
	if err != nil {
		logger.Fatal("Failed to open log store", zap.Error(err))
	}
	defer logStore.Close()
	logger.Info("Connected to log store")

	// Similarity index
	vecStore, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.VectorDB.Addrs,
		Password: cfg.VectorDB.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer vecStore.Close()

	ctx := context.Background()
	if err := vecStore.WaitForReady(ctx, time.Duration(cfg.VectorDB.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()

	embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   "openai",
		Logger:     logger,
	})
	logger.Info("Embedder created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	// Client verification keys
	keys := keystore.NewMemory()
	if err := seedKeys(keys, cfg.Keys, logger); err != nil {
		logger.Fatal("Failed to load client keys", zap.Error(err))
	}

	// Repositories
	indexer := index.NewIndexer(vecStore, embedder, index.Config{
		Collection:      cfg.VectorDB.Collection,
		Dimensions:      cfg.Embedding.Dimensions,
		BatchSize:       cfg.Embedding.BatchSize,
		HNSWM:           cfg.VectorDB.HNSWM,
		HNSWEFConstruct: cfg.VectorDB.HNSWEFConstruct,
	}, logger)
	searcher := index.NewSearcher(vecStore, cfg.VectorDB.Collection, logger)

	// Use case services
	transportCodec := codec.New(keys, logger)
	rejectUnattributed := cfg.Ingest.Unattributed == config.UnattributedReject
	ingestSvc := ingestuc.New(transportCodec, logStore, indexer, rejectUnattributed, logger)
	logsSvc := logsearchuc.New(logStore, logger)
	vectorsSvc := vectorsearchuc.New(searcher, embedder, logger)
	healthSvc := health.New(logStore, vecStore, embedder)

	server := chiTransport.NewServer(ingestSvc, logsSvc, vectorsSvc, healthSvc, logger)

	r := server.Router(
		jsonRecoverer(logger),
		chiMiddleware.RequestID,
		wideEventMiddleware(logger),
		chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys),
		metrics.Middleware(),
	)

	// Retention loop
	retentionCtx, stopRetention := context.WithCancel(ctx)
	defer stopRetention()
	if cfg.Retention.MaxAgeDays > 0 {
		go retentionLoop(retentionCtx, logsSvc, cfg.Retention, logger)
	}

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
	stopRetention()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// seedKeys loads configured client verification keys and, outside prod,
// derives deterministic demo key pairs from seeds.
func seedKeys(keys *keystore.Memory, cfg config.KeysConfig, logger *zap.Logger) error {
	for _, ck := range cfg.Clients {
		raw, err := base64.StdEncoding.DecodeString(ck.PublicKey)
		if err != nil {
			return fmt.Errorf("client %s: decode public key: %w", ck.ID, err)
		}
		pub, err := keystore.ParsePublicKey(raw)
		if err != nil {
			return fmt.Errorf("client %s: %w", ck.ID, err)
		}
		keys.Register(ck.ID, pub)
	}

	for _, seed := range cfg.DemoSeeds {
		pub, priv := keystore.DeriveKeyPair(seed)
		keys.RegisterPair(seed, pub, priv)
		logger.Warn("Registered demo key pair", zap.String("client_id", seed))
	}

	logger.Info("Client keys loaded",
		zap.Int("clients", len(cfg.Clients)),
		zap.Int("demo_seeds", len(cfg.DemoSeeds)),
	)
	return nil
}

// retentionLoop periodically deletes entries older than the configured age.
func retentionLoop(ctx context.Context, logs *logsearchuc.Service, cfg config.RetentionConfig, logger *zap.Logger) {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	maxAge := time.Duration(cfg.MaxAgeDays) * 24 * time.Hour

	logger.Info("Retention loop started",
		zap.Int("max_age_days", cfg.MaxAgeDays),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := logs.Sweep(ctx, maxAge); err != nil {
				logger.Error("Retention sweep failed", zap.Error(err))
			}
		}
	}
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
						"detail": "internal error",
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

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
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
