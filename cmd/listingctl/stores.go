package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"token-listing-lab/internal/config"
	"token-listing-lab/internal/storage"
	chstore "token-listing-lab/internal/storage/clickhouse"
	"token-listing-lab/internal/storage/memory"
	"token-listing-lab/internal/storage/migrations"
	pgstore "token-listing-lab/internal/storage/postgres"
)

// backend is an opened storage configuration.
type backend struct {
	storage.Stores
	closers []func()
}

// Close releases every connection.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// Enabled reports whether anything is persisted.
func (b *backend) Enabled() bool {
	return b.Analyses != nil || b.Allocations != nil || b.HourlyPrices != nil
}

// openStores connects the configured backend. PostgreSQL holds analyses and
// raw allocations, ClickHouse holds analyses and hourly prices; a DSN given
// for the other database fills in the store the primary lacks. With migrate
// set, schema migrations run first.
func openStores(ctx context.Context, cfg config.StorageConfig, migrate bool, log logrus.FieldLogger) (*backend, error) {
	b := &backend{}

	switch cfg.Backend {
	case config.BackendNone, "":
		return b, nil
	case config.BackendMemory:
		b.Analyses = memory.NewAnalysisStore()
		b.Allocations = memory.NewRawAllocationStore()
		b.HourlyPrices = memory.NewHourlyPriceStore()
		return b, nil
	}

	var pool *pgstore.Pool
	if cfg.PostgresDSN != "" {
		p, err := openPostgres(ctx, cfg.PostgresDSN, migrate)
		if err != nil {
			return nil, err
		}
		pool = p
		b.closers = append(b.closers, pool.Close)
	}

	var conn *chstore.Conn
	if cfg.ClickHouseDSN != "" {
		c, err := openClickHouse(ctx, cfg.ClickHouseDSN, migrate)
		if err != nil {
			b.Close()
			return nil, err
		}
		conn = c
		b.closers = append(b.closers, func() { _ = conn.Close() })
	}

	if pool != nil {
		b.Allocations = pgstore.NewRawAllocationStore(pool)
	}
	if conn != nil {
		b.HourlyPrices = chstore.NewHourlyPriceStore(conn)
	}

	switch cfg.Backend {
	case config.BackendPostgres:
		b.Analyses = pgstore.NewAnalysisStore(pool)
	case config.BackendClickHouse:
		b.Analyses = chstore.NewAnalysisStore(conn)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	log.WithFields(logrus.Fields{
		"backend":       cfg.Backend,
		"postgres":      pool != nil,
		"clickhouse":    conn != nil,
		"hourly_prices": b.HourlyPrices != nil,
		"allocations":   b.Allocations != nil,
	}).Info("storage opened")
	return b, nil
}

func openPostgres(ctx context.Context, dsn string, migrate bool) (*pgstore.Pool, error) {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}
	return pool, nil
}

func openClickHouse(ctx context.Context, dsn string, migrate bool) (*chstore.Conn, error) {
	if !migrate {
		return chstore.NewConn(ctx, dsn)
	}
	conn, err := chstore.NewConnCreatingDatabase(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return conn, nil
}
