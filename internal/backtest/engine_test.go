package backtest

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

func series(closes ...float64) PriceSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make(PriceSeries, len(closes))
	for i, c := range closes {
		out[i] = PricePoint{Time: start.AddDate(0, 0, i), Close: c}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestComputeSignalsCrossoverExample(t *testing.T) {
	prices := series(100, 102, 101, 105, 110, 108, 112, 115, 111, 120)

	signals, err := ComputeSignals(prices, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signals.Len() != len(prices) {
		t.Fatalf("expected %d records, got %d", len(prices), signals.Len())
	}

	if signals.Records[0].ShortAvg.Valid {
		t.Fatalf("expected short average undefined at index 0")
	}
	if !signals.Records[1].ShortAvg.Valid || signals.Records[1].ShortAvg.Value != 101 {
		t.Fatalf("expected short average 101 at index 1, got %+v", signals.Records[1].ShortAvg)
	}
	if signals.Records[1].LongAvg.Valid {
		t.Fatalf("expected long average undefined at index 1")
	}
	if !signals.Records[2].LongAvg.Valid || signals.Records[2].LongAvg.Value != 101 {
		t.Fatalf("expected long average 101 at index 2, got %+v", signals.Records[2].LongAvg)
	}

	wantPositions := []int{0, 0, 0, 1, 1, 1, 1, 0, 1, 1}
	if got := signals.Positions(); !reflect.DeepEqual(got, wantPositions) {
		t.Fatalf("expected positions %v, got %v", wantPositions, got)
	}

	wantEquity := (112.0 / 101.0) * (120.0 / 115.0)
	if got := signals.Records[9].Equity; !almostEqual(got, wantEquity) {
		t.Fatalf("expected final equity %.12f, got %.12f", wantEquity, got)
	}
}

func TestComputeSignalsNoLookAhead(t *testing.T) {
	prices := series(10, 11, 12, 11, 10, 9, 10, 12, 14, 13, 12, 15)
	signals, err := ComputeSignals(prices, 2, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signals.Records[0].Position != 0 {
		t.Fatalf("expected flat position at index 0")
	}
	for i := 1; i < signals.Len(); i++ {
		if signals.Records[i].Position != signals.Records[i-1].Signal {
			t.Fatalf("position[%d]=%d does not match signal[%d]=%d", i, signals.Records[i].Position, i-1, signals.Records[i-1].Signal)
		}
	}
}

func TestComputeSignalsEquityIdentity(t *testing.T) {
	prices := series(50, 52, 55, 53, 58, 60, 57, 61, 63, 59)
	signals, err := ComputeSignals(prices, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if signals.Records[0].StrategyReturn != 0 || signals.Records[0].Equity != 1 {
		t.Fatalf("expected equity 1 at index 0, got %+v", signals.Records[0])
	}
	for i := 1; i < signals.Len(); i++ {
		rec := signals.Records[i]
		if want := signals.Records[i-1].Equity * (1 + rec.StrategyReturn); rec.Equity != want {
			t.Fatalf("equity identity broken at %d: want %v got %v", i, want, rec.Equity)
		}
		if rec.Position == 0 && rec.StrategyReturn != 0 {
			t.Fatalf("flat position at %d has strategy return %v", i, rec.StrategyReturn)
		}
	}
}

func TestComputeSignalsWindowMeans(t *testing.T) {
	prices := series(3.1, 4.7, 2.2, 8.9, 5.5, 6.4, 7.3, 1.8)
	const w = 3
	signals, err := ComputeSignals(prices, w, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, rec := range signals.Records {
		if i < w-1 {
			if rec.ShortAvg.Valid {
				t.Fatalf("expected undefined short average at %d", i)
			}
			continue
		}
		sum := 0.0
		for _, p := range prices[i-w+1 : i+1] {
			sum += p.Close
		}
		if want := sum / w; rec.ShortAvg.Value != want {
			t.Fatalf("short average at %d: want %v got %v", i, want, rec.ShortAvg.Value)
		}
	}
}

func TestComputeSignalsDeterministic(t *testing.T) {
	prices := series(100, 99.5, 101.25, 103.75, 102, 104.5, 106, 105.25)
	first, err := ComputeSignals(prices, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ComputeSignals(prices, 2, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output across runs")
	}
}

func TestComputeSignalsInvalidInput(t *testing.T) {
	cases := map[string]struct {
		prices PriceSeries
		short  int
		long   int
	}{
		"empty":         {prices: nil, short: 2, long: 3},
		"zero short":    {prices: series(1, 2, 3), short: 0, long: 3},
		"negative long": {prices: series(1, 2, 3), short: 2, long: -1},
		"nan price":     {prices: series(1, math.NaN(), 3), short: 2, long: 3},
		"inf price":     {prices: series(1, math.Inf(1), 3), short: 2, long: 3},
		"zero price":    {prices: series(1, 0, 3), short: 2, long: 3},
		"negative":      {prices: series(1, -2, 3), short: 2, long: 3},
		"unordered":     {prices: PriceSeries{series(1, 2)[1], series(1, 2)[0]}, short: 1, long: 1},
		"duplicate":     {prices: PriceSeries{series(1)[0], series(2)[0]}, short: 1, long: 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ComputeSignals(tc.prices, tc.short, tc.long)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestComputeSignalsInvertedWindowsRuns(t *testing.T) {
	prices := series(1, 2, 3, 4, 5, 6)
	signals, err := ComputeSignals(prices, 4, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// on a rising series the 4-bar "short" average always trails the 2-bar
	// "long" average
	for _, rec := range signals.Records {
		if rec.Signal != 0 {
			t.Fatalf("expected inverted windows to stay flat on a rising series, got %+v", rec)
		}
	}
}

func TestResultTailExposureEntries(t *testing.T) {
	prices := series(100, 102, 101, 105, 110, 108, 112, 115, 111, 120)
	res, err := Run(prices, Params{ShortWindow: 2, LongWindow: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tail := res.Tail(3)
	if len(tail) != 3 || tail[2].Close != 120 {
		t.Fatalf("unexpected tail: %+v", tail)
	}
	if got := res.Tail(50); len(got) != len(prices) {
		t.Fatalf("expected tail capped at %d, got %d", len(prices), len(got))
	}
	if got := res.Tail(0); got != nil {
		t.Fatalf("expected nil tail for n=0")
	}
	if got := res.Exposure(); !almostEqual(got, 0.6) {
		t.Fatalf("expected exposure 0.6, got %v", got)
	}
	if got := res.Entries(); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}
}

func TestComputeSignalsWindowLongerThanSeries(t *testing.T) {
	signals, err := ComputeSignals(series(1, 2, 3), 2, 1<<40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, rec := range signals.Records {
		if rec.LongAvg.Valid || rec.Signal != 0 {
			t.Fatalf("record %d: expected undefined long average and flat signal, got %+v", i, rec)
		}
	}
}
