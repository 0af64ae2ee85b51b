package md

import (
	"context"
	"log/slog"
	"time"

	"smabt/internal/backtest"
	"smabt/internal/state"
)

// CachedSource serves repeated fetches for the same (symbol, start, end)
// from a caller-owned cache. Invalidation is left to the cache owner.
type CachedSource struct {
	source Source
	cache  state.Cache
}

func NewCachedSource(source Source, cache state.Cache) *CachedSource {
	return &CachedSource{source: source, cache: cache}
}

func (s *CachedSource) Fetch(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceSeries, error) {
	key := state.NewKey(symbol, start, end)
	series, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("price cache read failed", "key", key.String(), "error", err)
	} else if ok {
		slog.Debug("price cache hit", "key", key.String(), "rows", len(series))
		return series, nil
	}

	series, err = s.source.Fetch(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, key, series); err != nil {
		slog.Warn("price cache write failed", "key", key.String(), "error", err)
	}
	return series, nil
}
