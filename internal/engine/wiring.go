package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"smabt/internal/config"
	"smabt/internal/journal"
	"smabt/internal/md"
	"smabt/internal/publish"
	"smabt/internal/state"
)

// FromConfig wires an Engine with its source, cache, run log and publisher.
// The returned close func releases all of them.
func FromConfig(ctx context.Context, cfg config.Config, processID string) (*Engine, func() error, error) {
	source, closeSource, err := BuildSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{closeSource}
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	var opts []Option
	if cfg.JournalPath != "" {
		j, err := journal.NewLogger(cfg.JournalPath, processID)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, j.Close)
		opts = append(opts, WithJournal(j))
	}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := publish.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, k.Close)
		opts = append(opts, WithPublisher(k))
		slog.Info("publishing runs to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	return New(source, cfg.Source, opts...), closeAll, nil
}

// BuildSource assembles the configured price source behind its cache. The
// returned close func persists or releases the cache and is never nil.
func BuildSource(ctx context.Context, cfg config.Config) (md.Source, func() error, error) {
	var source md.Source
	switch cfg.Source {
	case "alpaca":
		source = md.NewAlpacaSource(cfg.APIKey.Reveal(), cfg.APISecret.Reveal(), cfg.Feed, cfg.RateLimit, cfg.FetchTimeout)
	case "csv":
		source = md.NewCSVSource(cfg.DataDir)
	default:
		return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
	}

	noop := func() error { return nil }
	switch cfg.Cache {
	case "none":
		return source, noop, nil
	case "memory":
		cache := state.NewMemoryCache()
		if cfg.CachePath == "" {
			return md.NewCachedSource(source, cache), noop, nil
		}
		if err := cache.Load(cfg.CachePath); err == nil {
			slog.Info("price cache loaded", "path", cfg.CachePath, "entries", cache.Len())
		} else if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("price cache load failed", "path", cfg.CachePath, "error", err)
		}
		closeFn := func() error {
			return cache.Save(cfg.CachePath)
		}
		return md.NewCachedSource(source, cache), closeFn, nil
	case "postgres":
		cache, err := state.OpenPostgresCache(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres cache: %w", err)
		}
		return md.NewCachedSource(source, cache), cache.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache %q", cfg.Cache)
	}
}
