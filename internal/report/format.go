package report

import (
	"github.com/shopspring/decimal"

	"smabt/internal/backtest"
)

// Placeholder is shown for a metric that is not available.
const Placeholder = "—"

// NotAvailable is the wording used in plain-text summaries.
const NotAvailable = "not available"

var hundred = decimal.NewFromInt(100)

// FormatPercent renders a fraction as a percentage with two decimals.
func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).Mul(hundred).StringFixed(2) + "%"
}

// FormatRatio renders a ratio with two decimals.
func FormatRatio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func formatOptional(o backtest.Optional, format func(float64) string, missing string) string {
	if v, ok := o.Get(); ok {
		return format(v)
	}
	return missing
}

type MetricsView struct {
	TotalReturn   string `json:"total_return"`
	CAGR          string `json:"cagr"`
	AnnualizedVol string `json:"annualized_vol"`
	Sharpe        string `json:"sharpe"`
	MaxDrawdown   string `json:"max_drawdown"`
}

func NewMetricsView(m backtest.Metrics) MetricsView {
	return MetricsView{
		TotalReturn:   FormatPercent(m.TotalReturn),
		CAGR:          formatOptional(m.CAGR, FormatPercent, Placeholder),
		AnnualizedVol: FormatPercent(m.AnnualizedVol),
		Sharpe:        formatOptional(m.Sharpe, FormatRatio, Placeholder),
		MaxDrawdown:   FormatPercent(m.MaxDrawdown),
	}
}
