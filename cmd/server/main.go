// Package main runs the series store server: lookup catalog and series
// registry on PostgreSQL, observation facts on ClickHouse, the filter/query
// engine over both, and the dependency graph / calculation ledger endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fin-series-store/internal/api"
	"fin-series-store/internal/cache"
	"fin-series-store/internal/catalog"
	"fin-series-store/internal/config"
	"fin-series-store/internal/graph"
	"fin-series-store/internal/health"
	"fin-series-store/internal/observability"
	"fin-series-store/internal/query"
	"fin-series-store/internal/storage"
	chstore "fin-series-store/internal/storage/clickhouse"
	"fin-series-store/internal/storage/memory"
	"fin-series-store/internal/storage/migrations"
	pgstore "fin-series-store/internal/storage/postgres"
)

// allStores holds all storage implementations.
type allStores struct {
	lookupStore      storage.LookupStore
	seriesStore      storage.SeriesStore
	dependencyStore  storage.DependencyStore
	calculationStore storage.CalculationStore
	observationStore storage.ObservationStore

	pgPinger health.Pinger
	chPinger health.Pinger
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	cfgPath := flag.String("config", "", "Path to YAML config file")
	httpAddr := flag.String("http-addr", "", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address (empty disables the metadata cache)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	snapshotRefresh := flag.Duration("snapshot-refresh", 0, "Dimension snapshot refresh interval")

	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Default()
	if *cfgPath != "" {
		cfg, err = config.LoadFromFile(*cfgPath)
		if err != nil {
			logger.Fatal("load config", zap.Error(err))
		}
	}
	cfg.ApplyEnv()

	// Flags override file and environment.
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Clickhouse.DSN = *clickhouseDSN
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *useMemory {
		cfg.UseMemory = true
	}
	if *snapshotRefresh > 0 {
		cfg.Query.SnapshotRefresh = *snapshotRefresh
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	// Optional metadata cache.
	var metadataCache query.MetadataCache
	var redisPinger health.Pinger
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// The cache is an optimization; starting without it is fine.
			logger.Warn("redis unavailable, starting without metadata cache", zap.Error(err))
		} else {
			defer client.Close()
			c := cache.New(client, cfg.Redis.TTL, metrics, logger)
			metadataCache = c
			redisPinger = c
		}
	}

	// Dimension value snapshots: seed from the catalog, then refresh on an
	// interval so new lookup entries become filterable without a restart.
	snapshots := query.NewSnapshotHolder(stores.lookupStore)
	if _, err := snapshots.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot refresh failed, using compiled-in defaults", zap.Error(err))
	}
	go refreshSnapshots(ctx, snapshots, cfg.Query.SnapshotRefresh, logger)

	engine := query.NewEngine(query.Options{
		Series:       stores.seriesStore,
		Observations: stores.observationStore,
		Snapshots:    snapshots,
		Cache:        metadataCache,
		Metrics:      metrics,
		Logger:       logger,
	})

	server := api.NewServer(api.Options{
		Catalog:   catalog.NewService(stores.lookupStore, stores.seriesStore, logger),
		Graph:     graph.NewService(stores.dependencyStore, stores.calculationStore, metrics, logger),
		Engine:    engine,
		Snapshots: snapshots,
		Health:    health.NewChecker(stores.pgPinger, stores.chPinger, redisPinger),
		Metrics:   metrics,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	cancel()

	logger.Info("shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*allStores, func(), error) {
	if cfg.UseMemory {
		lookups := memory.NewLookupStore()
		series := memory.NewSeriesStore(lookups)
		stores := &allStores{
			lookupStore:      lookups,
			seriesStore:      series,
			dependencyStore:  memory.NewDependencyStore(series),
			calculationStore: memory.NewCalculationStore(series),
			observationStore: memory.NewObservationStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL: lookup catalog, series registry, graph, ledger.
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse: observation facts.
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	logger.Info("stores ready",
		zap.String("postgres", "connected"),
		zap.String("clickhouse", "connected"))

	stores := &allStores{
		lookupStore:      pgstore.NewLookupStore(pool),
		seriesStore:      pgstore.NewSeriesStore(pool),
		dependencyStore:  pgstore.NewDependencyStore(pool),
		calculationStore: pgstore.NewCalculationStore(pool),
		observationStore: chstore.NewObservationStore(chConn),
		pgPinger:         pool,
		chPinger:         chConn,
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// refreshSnapshots rebuilds dimension snapshots on a fixed interval. A failed
// refresh keeps the previous snapshot; readers are never left without one.
func refreshSnapshots(ctx context.Context, snapshots *query.SnapshotHolder, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := snapshots.Refresh(ctx); err != nil {
				logger.Warn("snapshot refresh failed", zap.Error(err))
			}
		}
	}
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
