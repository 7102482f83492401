package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/secondhand-assistant/internal/api"
	"github.com/shubhsaxena/secondhand-assistant/internal/assistant"
	"github.com/shubhsaxena/secondhand-assistant/internal/cache"
	"github.com/shubhsaxena/secondhand-assistant/internal/clickhouse"
	"github.com/shubhsaxena/secondhand-assistant/internal/config"
	"github.com/shubhsaxena/secondhand-assistant/internal/elasticsearch"
	"github.com/shubhsaxena/secondhand-assistant/internal/firestore"
	"github.com/shubhsaxena/secondhand-assistant/internal/indexing"
	"github.com/shubhsaxena/secondhand-assistant/internal/kafka"
	"github.com/shubhsaxena/secondhand-assistant/internal/observability"
	"github.com/shubhsaxena/secondhand-assistant/internal/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting assistant service",
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("product_source", cfg.Assistant.ProductSource),
	)

	// Initialize tracing
	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := api.NewHealthHandler(logger)

	// Postgres is the system of record for suggestions and history.
	if cfg.Postgres.MigrateOnStart {
		if err := postgres.Migrate(cfg.Postgres.DSN, logger); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("initializing postgres: %w", err)
	}
	defer pool.Close()
	productStore := postgres.NewProductStore(pool, cfg.Postgres, cfg.Search, logger)
	suggestionStore := postgres.NewSuggestionStore(pool, logger)
	healthHandler.Register("postgres", productStore, true)
	logger.Info("postgres initialized")

	var lookup assistant.ProductLookup = productStore

	var esClient *elasticsearch.Client
	if cfg.Elasticsearch.Enabled {
		esClient, err = elasticsearch.NewClient(cfg.Elasticsearch, cfg.Search, logger)
		if err != nil {
			return fmt.Errorf("initializing elasticsearch: %w", err)
		}
		if err := esClient.EnsureIndex(ctx); err != nil {
			logger.Warn("listings index creation failed", zap.Error(err))
		}
		required := cfg.Assistant.ProductSource == config.ProductSourceElasticsearch
		healthHandler.RegisterES(esClient, required)
		if required {
			lookup = esClient
		}
		logger.Info("elasticsearch client initialized")
	}

	var cachedLookup *cache.CachedLookup
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis initialization failed, lookups will not be cached", zap.Error(err))
		} else {
			defer redisCache.Close()
			cachedLookup = cache.NewCachedLookup(lookup, redisCache, logger)
			lookup = cachedLookup
			healthHandler.Register("redis", redisCache, false)
			logger.Info("redis cache initialized")
		}
	}

	var chClient *clickhouse.Client
	if cfg.ClickHouse.Enabled {
		chClient, err = clickhouse.NewClient(cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
			chClient = nil
		} else {
			defer chClient.Close()
			if err := chClient.EnsureTables(ctx); err != nil {
				logger.Warn("clickhouse table creation failed", zap.Error(err))
			}
			healthHandler.Register("clickhouse", chClient, false)
			logger.Info("clickhouse client initialized")
		}
	}

	var fsClient *firestore.Client
	if cfg.Firestore.Enabled {
		fsClient, err = firestore.NewClient(ctx, cfg.Firestore, logger)
		if err != nil {
			logger.Warn("firestore initialization failed, seller hydration will be unavailable", zap.Error(err))
			fsClient = nil
		} else {
			defer fsClient.Close()
			healthHandler.Register("firestore", fsClient, false)
			logger.Info("firestore client initialized")
		}
	}

	// Initialize slow query detector
	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}
	slowQueryDetector := observability.NewSlowQueryDetector(
		cfg.Search.SlowQuery.WarningThreshold,
		cfg.Search.SlowQuery.CriticalThreshold,
		logger,
		analyticsWriter,
	)

	opts := []assistant.Option{assistant.WithSlowQueryDetector(slowQueryDetector)}
	if chClient != nil {
		opts = append(opts, assistant.WithAnalytics(chClient))
	}
	if fsClient != nil {
		opts = append(opts, assistant.WithSellerHydrator(fsClient))
	}

	// Kafka carries suggestion events out and listing changes in.
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		opts = append(opts, assistant.WithPublisher(producer))
		healthHandler.Register("kafka", producer, false)

		streamProcessor := newStreamProcessor(esClient, chClient, cachedLookup, cfg.Elasticsearch, logger)
		defer streamProcessor.Stop()

		consumer := kafka.NewConsumer(cfg.Kafka, streamProcessor.HandleEvent, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Warn("kafka consumer start failed, listing sync will be unavailable", zap.Error(err))
		} else {
			defer consumer.Stop()
			healthHandler.Register("kafka_consumer", consumer, false)
		}
	}

	engine := assistant.New(lookup, suggestionStore, cfg.Assistant, logger, opts...)

	// Initialize HTTP server
	var reporter api.IntentReporter
	if chClient != nil {
		reporter = chClient
	}
	handler := api.NewHandler(engine, reporter, logger)
	router := api.NewRouter(handler, healthHandler, cfg.Server.MaxConcurrent, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	// Graceful shutdown
	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	// Cancel background operations
	cancel()

	// Shutdown tracing
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// newStreamProcessor passes only the configured backends so absent ones
// reach the processor as nil interfaces.
func newStreamProcessor(
	es *elasticsearch.Client,
	ch *clickhouse.Client,
	cl *cache.CachedLookup,
	esCfg config.ElasticsearchConfig,
	logger *zap.Logger,
) *indexing.StreamProcessor {
	var (
		indexer   indexing.BulkIndexer
		changelog indexing.ChangelogWriter
		inv       indexing.CacheInvalidator
	)
	if es != nil {
		indexer = es
	}
	if ch != nil {
		changelog = ch
	}
	if cl != nil {
		inv = cl
	}
	return indexing.NewStreamProcessor(indexer, changelog, inv, esCfg, logger)
}
