package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"smabt/internal/backtest"
)

const priceCacheSchema = `CREATE TABLE IF NOT EXISTS price_cache (
	symbol     TEXT             NOT NULL,
	start_date DATE             NOT NULL,
	end_date   DATE             NOT NULL,
	ts         TIMESTAMPTZ      NOT NULL,
	close      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (symbol, start_date, end_date, ts)
)`

// PostgresCache keeps price fetches in a shared table so several processes
// can reuse one download.
type PostgresCache struct {
	db *sql.DB
}

func OpenPostgresCache(ctx context.Context, dsn string) (*PostgresCache, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	cache := &PostgresCache{db: db}
	if err := cache.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return cache, nil
}

func (c *PostgresCache) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, priceCacheSchema); err != nil {
		return fmt.Errorf("create price_cache: %w", err)
	}
	return nil
}

func (c *PostgresCache) Get(ctx context.Context, key Key) (backtest.PriceSeries, bool, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT ts, close FROM price_cache
		 WHERE symbol = $1 AND start_date = $2 AND end_date = $3
		 ORDER BY ts`,
		key.Symbol, key.Start, key.End,
	)
	if err != nil {
		return nil, false, fmt.Errorf("query price_cache: %w", err)
	}
	defer rows.Close()

	var series backtest.PriceSeries
	for rows.Next() {
		var p backtest.PricePoint
		if err := rows.Scan(&p.Time, &p.Close); err != nil {
			return nil, false, fmt.Errorf("scan price_cache: %w", err)
		}
		p.Time = p.Time.UTC()
		series = append(series, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate price_cache: %w", err)
	}
	return series, len(series) > 0, nil
}

// Put replaces any rows stored under key in one transaction.
func (c *PostgresCache) Put(ctx context.Context, key Key, series backtest.PriceSeries) (err error) {
	if len(series) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM price_cache WHERE symbol = $1 AND start_date = $2 AND end_date = $3`,
		key.Symbol, key.Start, key.End,
	); err != nil {
		return fmt.Errorf("clear price_cache: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("price_cache", "symbol", "start_date", "end_date", "ts", "close"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for _, p := range series {
		if _, err = stmt.ExecContext(ctx, key.Symbol, key.Start, key.End, p.Time, p.Close); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy row: %w", err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Info("price cache stored", "key", key.String(), "rows", len(series))
	return nil
}

func (c *PostgresCache) Invalidate(ctx context.Context, key Key) error {
	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM price_cache WHERE symbol = $1 AND start_date = $2 AND end_date = $3`,
		key.Symbol, key.Start, key.End,
	); err != nil {
		return fmt.Errorf("invalidate price_cache: %w", err)
	}
	return nil
}

func (c *PostgresCache) Close() error {
	return c.db.Close()
}
