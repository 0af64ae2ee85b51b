package report

import (
	"fmt"
	"strings"
	"time"

	"smabt/internal/backtest"
)

type SummaryInput struct {
	Symbol  string
	Start   time.Time
	End     time.Time
	Params  backtest.Params
	Metrics backtest.Metrics
}

// Summary builds the plain-text digest handed to the advisory provider.
func Summary(in SummaryInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", in.Symbol)
	fmt.Fprintf(&b, "Period: %s to %s\n", in.Start.Format(time.DateOnly), in.End.Format(time.DateOnly))
	fmt.Fprintf(&b, "Short SMA: %d, Long SMA: %d\n", in.Params.ShortWindow, in.Params.LongWindow)
	fmt.Fprintf(&b, "Total return: %s, CAGR: %s\n",
		FormatPercent(in.Metrics.TotalReturn),
		formatOptional(in.Metrics.CAGR, FormatPercent, NotAvailable),
	)
	fmt.Fprintf(&b, "Sharpe: %s, Max DD: %s\n",
		formatOptional(in.Metrics.Sharpe, FormatRatio, NotAvailable),
		FormatPercent(in.Metrics.MaxDrawdown),
	)
	b.WriteString("Please assess overfitting risk, regime sensitivity, and suggest robustness checks.")
	return b.String()
}
