package backtest

import (
	"math"
)

// ComputeSignals derives the crossover table for prices. The position held
// over interval i is the signal observed at i-1, so no row uses its own close
// to decide its exposure.
func ComputeSignals(prices PriceSeries, shortWindow, longWindow int) (SignalSeries, error) {
	if err := validate(prices, shortWindow, longWindow); err != nil {
		return SignalSeries{}, err
	}

	// A window longer than the series never fills; len+1 slots behave the
	// same without allocating the full window.
	short := newRollingMean(min(shortWindow, len(prices)+1))
	long := newRollingMean(min(longWindow, len(prices)+1))
	records := make([]Record, len(prices))
	equity := 1.0

	for i, p := range prices {
		short.Add(p.Close)
		long.Add(p.Close)

		rec := Record{
			Time:     p.Time,
			Close:    p.Close,
			ShortAvg: short.Mean(),
			LongAvg:  long.Mean(),
		}
		rec.Signal = crossover(rec.ShortAvg, rec.LongAvg)
		if i > 0 {
			rec.Position = records[i-1].Signal
			rec.PeriodReturn = p.Close/prices[i-1].Close - 1
		}
		rec.StrategyReturn = float64(rec.Position) * rec.PeriodReturn
		equity *= 1 + rec.StrategyReturn
		rec.Equity = equity
		records[i] = rec
	}

	return SignalSeries{
		ShortWindow: shortWindow,
		LongWindow:  longWindow,
		Records:     records,
	}, nil
}

// crossover treats an undefined average as flat.
func crossover(shortAvg, longAvg Optional) int {
	if !shortAvg.Valid || !longAvg.Valid {
		return 0
	}
	if shortAvg.Value > longAvg.Value {
		return 1
	}
	return 0
}

func validate(prices PriceSeries, shortWindow, longWindow int) error {
	if len(prices) == 0 {
		return invalidf("price series is empty")
	}
	if shortWindow <= 0 {
		return invalidf("short window must be > 0, got %d", shortWindow)
	}
	if longWindow <= 0 {
		return invalidf("long window must be > 0, got %d", longWindow)
	}
	for i, p := range prices {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return invalidf("price at index %d is not finite", i)
		}
		if p.Close <= 0 {
			return invalidf("price at index %d must be > 0, got %v", i, p.Close)
		}
		if i > 0 && !p.Time.After(prices[i-1].Time) {
			return invalidf("price at index %d is not after index %d", i, i-1)
		}
	}
	return nil
}

type Result struct {
	Params  Params       `json:"params"`
	Signals SignalSeries `json:"signals"`
	Metrics Metrics      `json:"metrics"`
}

// Run computes signals and metrics in one call.
func Run(prices PriceSeries, params Params) (Result, error) {
	signals, err := ComputeSignals(prices, params.ShortWindow, params.LongWindow)
	if err != nil {
		return Result{}, err
	}
	metrics, err := ComputeMetrics(signals)
	if err != nil {
		return Result{}, err
	}
	return Result{Params: params, Signals: signals, Metrics: metrics}, nil
}

// Tail returns the last n records, or all of them when n exceeds the length.
func (r Result) Tail(n int) []Record {
	records := r.Signals.Records
	if n <= 0 {
		return nil
	}
	if n > len(records) {
		n = len(records)
	}
	return records[len(records)-n:]
}

// Exposure is the fraction of periods spent long.
func (r Result) Exposure() float64 {
	n := r.Signals.Len()
	if n == 0 {
		return 0
	}
	long := 0
	for _, rec := range r.Signals.Records {
		long += rec.Position
	}
	return float64(long) / float64(n)
}

// Entries counts flat-to-long transitions of the position.
func (r Result) Entries() int {
	entries := 0
	prev := 0
	for _, rec := range r.Signals.Records {
		if rec.Position == 1 && prev == 0 {
			entries++
		}
		prev = rec.Position
	}
	return entries
}
