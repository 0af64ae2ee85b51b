package md

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"smabt/internal/backtest"
)

// ErrEmptyResult means the source had no observations for the symbol and
// range. It is not a failure; callers should skip the backtest.
var ErrEmptyResult = errors.New("no price data returned")

type Source interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceSeries, error)
}

// Clean drops rows without a usable close, orders by time and keeps the last
// row for a repeated timestamp.
func Clean(points []backtest.PricePoint) backtest.PriceSeries {
	out := make(backtest.PriceSeries, 0, len(points))
	for _, p := range points {
		if p.Time.IsZero() || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Time.Equal(p.Time) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
