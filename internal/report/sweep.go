package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"smabt/internal/backtest"
)

// RenderSweep writes one row per window pair, marking the best Sharpe.
func RenderSweep(w io.Writer, symbol string, results []backtest.SweepResult, best *backtest.SweepResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		mark := ""
		if best != nil && r.Params == best.Params {
			mark = "*"
		}
		view := NewMetricsView(r.Metrics)
		rows = append(rows, []string{
			mark,
			strconv.Itoa(r.Params.ShortWindow),
			strconv.Itoa(r.Params.LongWindow),
			view.TotalReturn,
			view.CAGR,
			view.Sharpe,
			view.MaxDrawdown,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "short", "long", "total", "cagr", "sharpe", "max_dd").
		Rows(rows...)

	_, err := fmt.Fprintf(w, "%s\n%s\n",
		titleStyle.Render(fmt.Sprintf("SMA window sweep: %s, %d pairs", symbol, len(results))),
		t.String(),
	)
	return err
}
