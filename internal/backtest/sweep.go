package backtest

import (
	"runtime"

	"github.com/samber/lo"
	"github.com/samber/lo/parallel"
)

// MaxSweepPairs bounds the number of window pairs one sweep may run.
const MaxSweepPairs = 10_000

// SweepRange is an inclusive grid of window lengths.
type SweepRange struct {
	ShortMin  int `json:"short_min"`
	ShortMax  int `json:"short_max"`
	ShortStep int `json:"short_step"`
	LongMin   int `json:"long_min"`
	LongMax   int `json:"long_max"`
	LongStep  int `json:"long_step"`
}

func (r SweepRange) validate() error {
	if r.ShortStep <= 0 || r.LongStep <= 0 {
		return invalidf("sweep steps must be > 0")
	}
	if r.ShortMin <= 0 || r.LongMin <= 0 {
		return invalidf("sweep minimum windows must be > 0")
	}
	if r.ShortMax < r.ShortMin || r.LongMax < r.LongMin {
		return invalidf("sweep maximum must be >= minimum")
	}
	if n := r.pairCount(); n > MaxSweepPairs {
		return invalidf("sweep has %d window pairs, limit is %d", n, MaxSweepPairs)
	}
	return nil
}

// pairCount counts pairs with short < long without building them. Every
// short it visits adds at least one pair, so it stops after at most
// MaxSweepPairs+1 iterations. Call only on a valid range.
func (r SweepRange) pairCount() int {
	shorts := (r.ShortMax-r.ShortMin)/r.ShortStep + 1
	longs := (r.LongMax-r.LongMin)/r.LongStep + 1
	lastLong := r.LongMin + (longs-1)*r.LongStep
	total := 0
	for i := 0; i < shorts; i++ {
		short := r.ShortMin + i*r.ShortStep
		if short >= lastLong {
			break
		}
		// longs strictly above short
		first := 0
		if short >= r.LongMin {
			first = (short-r.LongMin)/r.LongStep + 1
		}
		total += longs - first
		if total > MaxSweepPairs {
			return total
		}
	}
	return total
}

// Params lists every pair in the grid with short < long, ordered by short
// then long.
func (r SweepRange) Params() []Params {
	shorts := lo.RangeWithSteps(r.ShortMin, r.ShortMax+1, r.ShortStep)
	longs := lo.RangeWithSteps(r.LongMin, r.LongMax+1, r.LongStep)
	return lo.FlatMap(shorts, func(short int, _ int) []Params {
		return lo.FilterMap(longs, func(long int, _ int) (Params, bool) {
			return Params{ShortWindow: short, LongWindow: long}, short < long
		})
	})
}

type SweepResult struct {
	Params  Params  `json:"params"`
	Metrics Metrics `json:"metrics"`
}

type sweepOutcome struct {
	result SweepResult
	err    error
}

// Sweep backtests every grid pair on at most GOMAXPROCS goroutines. Each run
// owns its output, so the only shared value is the read-only price series.
func Sweep(prices PriceSeries, r SweepRange) ([]SweepResult, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	params := r.Params()
	if len(params) == 0 {
		return nil, invalidf("sweep range has no pair with short < long")
	}

	workers := runtime.GOMAXPROCS(0)
	chunkSize := (len(params) + workers - 1) / workers
	chunks := parallel.Map(lo.Chunk(params, chunkSize), func(chunk []Params, _ int) []sweepOutcome {
		return lo.Map(chunk, func(p Params, _ int) sweepOutcome {
			res, err := Run(prices, p)
			if err != nil {
				return sweepOutcome{err: err}
			}
			return sweepOutcome{result: SweepResult{Params: p, Metrics: res.Metrics}}
		})
	})
	outcomes := lo.Flatten(chunks)

	if failed, ok := lo.Find(outcomes, func(o sweepOutcome) bool { return o.err != nil }); ok {
		return nil, failed.err
	}
	return lo.Map(outcomes, func(o sweepOutcome, _ int) SweepResult {
		return o.result
	}), nil
}

// BestBySharpe picks the result with the highest available Sharpe ratio.
func BestBySharpe(results []SweepResult) (SweepResult, bool) {
	ranked := lo.Filter(results, func(r SweepResult, _ int) bool {
		return r.Metrics.Sharpe.Valid
	})
	if len(ranked) == 0 {
		return SweepResult{}, false
	}
	return lo.MaxBy(ranked, func(a, b SweepResult) bool {
		return a.Metrics.Sharpe.Value > b.Metrics.Sharpe.Value
	}), true
}
