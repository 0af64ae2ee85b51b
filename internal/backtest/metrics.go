package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ComputeMetrics summarizes a signal table. CAGR needs more than one year of
// periods and Sharpe needs non-zero volatility; otherwise they are not
// available.
func ComputeMetrics(signals SignalSeries) (Metrics, error) {
	n := signals.Len()
	if n == 0 {
		return Metrics{}, invalidf("signal series is empty")
	}

	final := signals.Records[n-1].Equity
	m := Metrics{
		TotalReturn: final - 1,
		MaxDrawdown: maxDrawdown(signals.Equity()),
		Periods:     n,
	}

	if n > TradingDaysPerYear {
		m.CAGR = Some(math.Pow(final, float64(TradingDaysPerYear)/float64(n)) - 1)
	}

	// sample standard deviation is undefined below two observations
	if n >= 2 {
		mean, std := stat.MeanStdDev(signals.StrategyReturns(), nil)
		m.AnnualizedVol = std * math.Sqrt(TradingDaysPerYear)
		if m.AnnualizedVol > 0 {
			m.Sharpe = Some(mean * TradingDaysPerYear / m.AnnualizedVol)
		}
	}

	if !m.finite() {
		return Metrics{}, invalidf("metrics are not finite; the price series overflows float64")
	}
	return m, nil
}

func (m Metrics) finite() bool {
	values := []float64{m.TotalReturn, m.AnnualizedVol, m.MaxDrawdown}
	if v, ok := m.CAGR.Get(); ok {
		values = append(values, v)
	}
	if v, ok := m.Sharpe.Get(); ok {
		values = append(values, v)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// maxDrawdown measures each point against the peak seen so far.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if dd := e/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}
