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

	"go.uber.org/zap"

	"github.com/kailas-cloud/docflat/internal/config"
	"github.com/kailas-cloud/docflat/internal/db"
	dbMongo "github.com/kailas-cloud/docflat/internal/db/mongo"
	dbRedis "github.com/kailas-cloud/docflat/internal/db/redis"
	"github.com/kailas-cloud/docflat/internal/domain"
	logpkg "github.com/kailas-cloud/docflat/internal/logger"
	"github.com/kailas-cloud/docflat/internal/metrics"
	"github.com/kailas-cloud/docflat/internal/repository/embcache"
	rowrepo "github.com/kailas-cloud/docflat/internal/repository/row"
	staterepo "github.com/kailas-cloud/docflat/internal/repository/state"
	chiTransport "github.com/kailas-cloud/docflat/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/docflat/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/docflat/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docflat/internal/usecase/health"
	"github.com/kailas-cloud/docflat/internal/usecase/importer"
	"github.com/kailas-cloud/docflat/internal/usecase/scheduler"
	"github.com/kailas-cloud/docflat/internal/version"
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

	logger.Info("Starting docflat",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("mongo_database", cfg.Mongo.Database),
		zap.Strings("mongo_hosts", cfg.Mongo.Hosts()),
		zap.Strings("sink_addrs", cfg.Sink.Addrs),
		zap.Int("entities", len(cfg.Entities)),
	)

	ctx := context.Background()

	// Document store
	mongoCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Mongo.ConnectTimeoutSec)*time.Second)
	mongoClient, err := dbMongo.Open(mongoCtx, dbMongo.Config{
		Database:       cfg.Mongo.Database,
		Hosts:          cfg.Mongo.Hosts(),
		Ports:          cfg.Mongo.Ports(),
		Username:       cfg.Mongo.Username,
		Password:       cfg.Mongo.Password,
		ReadPreference: cfg.Mongo.ReadPreference,
		ConnectTimeout: time.Duration(cfg.Mongo.ConnectTimeoutSec) * time.Second,
		BatchSize:      cfg.Mongo.BatchSize,
	})
	cancel()
	if err != nil {
		logger.Fatal("Failed to connect to mongo", zap.Error(err))
	}
	logger.Info("Connected to mongo")

	// Search sink
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Sink.Addrs,
		Username: cfg.Sink.Username,
		Password: cfg.Sink.Password,
		DB:       cfg.Sink.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create sink store", zap.Error(err))
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Sink.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Sink not ready", zap.Error(err))
	}
	logger.Info("Connected to sink")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterImportMetrics()
	metrics.RegisterEmbeddingMetrics()

	entities, err := entitiesFromConfig(cfg.Entities)
	if err != nil {
		logger.Fatal("Invalid entities", zap.Error(err))
	}
	flatten, _ := cfg.Mongo.Flatten() // validated by config.Load

	storage := db.StorageJSON
	if cfg.Sink.Storage == "hash" {
		storage = db.StorageHash
	}
	distance, _ := db.ParseDistance(cfg.Embedding.Distance) // validated by config.Load
	rows := rowrepo.New(store, cfg.Sink.KeyPrefix, storage, cfg.Sink.CreateIndex).WithVectorDistance(distance)
	state := staterepo.New(store, cfg.Sink.KeyPrefix)

	importSvc, err := importer.New(mongoSource{client: mongoClient}, rows, state, entities, logger)
	if err != nil {
		logger.Fatal("Failed to create import service", zap.Error(err))
	}
	importSvc.WithFlatten(flatten).WithWriteBatch(cfg.Sink.WriteBatchSize)

	// Pass nil interface (not typed nil pointer!) when embedding is off.
	var embChecker healthuc.EmbeddingChecker
	if cfg.Embedding.Enabled() {
		embedder, provider := buildEmbedder(cfg.Embedding, cfg.Sink.KeyPrefix, store)
		importSvc.WithEmbedder(embedder, cfg.Embedding.ContentField, cfg.Embedding.Dimensions)
		embChecker = provider
		logger.Info("Embedder created",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
			zap.String("content_field", cfg.Embedding.ContentField),
		)
	}

	if err := importSvc.PrepareIndexes(ctx); err != nil {
		logger.Fatal("Failed to prepare indexes", zap.Error(err))
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.DeltaCron != "" {
		sched, err = scheduler.New(ctx, cfg.Schedule.DeltaCron, importSvc, importSvc.Entities(), logger)
		if err != nil {
			logger.Fatal("Failed to create scheduler", zap.Error(err))
		}
		sched.Start()
		logger.Info("Delta import scheduled", zap.String("cron", cfg.Schedule.DeltaCron))
	}

	healthSvc := healthuc.New(mongoClient, store, embChecker)

	server := chiTransport.NewServer(importSvc, rows, healthSvc, logger)
	handler := chiTransport.NewRouter(server, chiTransport.AuthOptions{
		APIKeys:      cfg.Auth.APIKeys,
		PublicStatus: cfg.Auth.PublicStatus,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
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

	if sched != nil {
		sched.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", zap.Error(err))
	}
	if err := importSvc.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error waiting for imports", zap.Error(err))
	}
	if err := mongoClient.Close(shutdownCtx); err != nil {
		logger.Error("Error closing mongo", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// mongoSource adapts the mongo client to importer.Source.
type mongoSource struct {
	client *dbMongo.Client
}

func (s mongoSource) Find(ctx context.Context, collection, query string) (importer.Cursor, error) {
	cur, err := s.client.Find(ctx, collection, query)
	if err != nil {
		return nil, err //nolint:wrapcheck // already a domain fatal error
	}
	return cur, nil
}

func entitiesFromConfig(in []config.EntityConfig) ([]importer.Entity, error) {
	out := make([]importer.Entity, 0, len(in))
	for _, e := range in {
		rules, err := e.Rules()
		if err != nil {
			return nil, err //nolint:wrapcheck // carries the entity name
		}
		out = append(out, importer.Entity{
			Name:       e.Name,
			Collection: e.Collection,
			Query:      e.Query,
			DeltaQuery: e.DeltaImportQuery,
			PK:         e.PK,
			OnError:    importer.OnError(e.OnError),
			Rules:      rules,
		})
	}
	return out, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Document.
// The bare provider is returned for health checks.
func buildEmbedder(
	cfg config.EmbeddingConfig, keyPrefix string, store *dbRedis.Store,
) (domain.Embedder, domain.HealthChecker) {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
	})

	var embedder domain.Embedder = base
	if cfg.Cache {
		embedder = embcache.New(base, store, keyPrefix, cfg.Model, cfg.CacheTTL, metrics.EmbeddingCacheTotal)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, cfg.MaxInputBytes)

	// Document text handling is outermost, so the cache key includes the instruction.
	return domain.NewDocumentEmbedder(embedder, cfg.DocumentInstruction), base
}
