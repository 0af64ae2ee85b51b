package backtest

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
)

// TradingDaysPerYear annualizes daily returns and volatility.
const TradingDaysPerYear = 252

type PricePoint struct {
	Time  time.Time `json:"time"`
	Close float64   `json:"close"`
}

// PriceSeries is ordered by ascending Time with no duplicate timestamps.
type PriceSeries []PricePoint

func (s PriceSeries) Closes() []float64 {
	return lo.Map(s, func(p PricePoint, _ int) float64 {
		return p.Close
	})
}

// Optional is a float that may be "not available". The zero value is not
// available, which keeps it distinct from a computed 0.
type Optional struct {
	Value float64
	Valid bool
}

func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

func None() Optional {
	return Optional{}
}

func (o Optional) Get() (float64, bool) {
	return o.Value, o.Valid
}

func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Record is one row of the signal table, aligned with the input price at the
// same index.
type Record struct {
	Time           time.Time `json:"time"`
	Close          float64   `json:"close"`
	ShortAvg       Optional  `json:"short_avg"`
	LongAvg        Optional  `json:"long_avg"`
	Signal         int       `json:"signal"`
	Position       int       `json:"position"`
	PeriodReturn   float64   `json:"period_return"`
	StrategyReturn float64   `json:"strategy_return"`
	Equity         float64   `json:"equity"`
}

type SignalSeries struct {
	ShortWindow int      `json:"short_window"`
	LongWindow  int      `json:"long_window"`
	Records     []Record `json:"records"`
}

func (s SignalSeries) Len() int {
	return len(s.Records)
}

func (s SignalSeries) Closes() []float64 {
	return lo.Map(s.Records, func(r Record, _ int) float64 {
		return r.Close
	})
}

func (s SignalSeries) Positions() []int {
	return lo.Map(s.Records, func(r Record, _ int) int {
		return r.Position
	})
}

func (s SignalSeries) StrategyReturns() []float64 {
	return lo.Map(s.Records, func(r Record, _ int) float64 {
		return r.StrategyReturn
	})
}

func (s SignalSeries) Equity() []float64 {
	return lo.Map(s.Records, func(r Record, _ int) float64 {
		return r.Equity
	})
}

type Metrics struct {
	TotalReturn   float64  `json:"total_return"`
	CAGR          Optional `json:"cagr"`
	AnnualizedVol float64  `json:"annualized_vol"`
	Sharpe        Optional `json:"sharpe"`
	MaxDrawdown   float64  `json:"max_drawdown"`
	Periods       int      `json:"periods"`
}

type Params struct {
	ShortWindow int `json:"short_window"`
	LongWindow  int `json:"long_window"`
}
