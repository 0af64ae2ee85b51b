package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"smabt/internal/backtest"
)

type Input struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Result backtest.Result
	// Tail is the number of trailing rows shown in the sample table.
	Tail int
	// StopLossPct and TakeProfitPct are fractions, echoed only; the backtest
	// never applies them.
	StopLossPct   float64
	TakeProfitPct float64
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Faint(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const sparkWidth = 60

// Render writes the text report for one backtest.
func Render(w io.Writer, in Input) error {
	res := in.Result
	view := NewMetricsView(res.Metrics)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("SMA crossover backtest: %s", in.Symbol)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s to %s, short SMA %d, long SMA %d, %d periods\n\n",
		labelStyle.Render("period"),
		in.Start.Format(time.DateOnly), in.End.Format(time.DateOnly),
		res.Params.ShortWindow, res.Params.LongWindow, res.Metrics.Periods,
	)

	panels := []string{
		panel("Total return", view.TotalReturn),
		panel("CAGR", view.CAGR),
		panel("Sharpe (naive)", view.Sharpe),
		panel("Max DD", view.MaxDrawdown),
		panel("Ann. vol", view.AnnualizedVol),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Price"))
	b.WriteString("\n" + Sparkline(res.Signals.Closes(), sparkWidth) + "\n")
	b.WriteString(titleStyle.Render("Strategy equity curve"))
	b.WriteString("\n" + Sparkline(res.Signals.Equity(), sparkWidth) + "\n")
	b.WriteString(titleStyle.Render("Signals (1=long, 0=flat)"))
	b.WriteString("\n" + positionStrip(res.Signals.Positions(), sparkWidth) + "\n")
	fmt.Fprintf(&b, "exposure %s, entries %d\n", FormatPercent(res.Exposure()), res.Entries())
	if in.StopLossPct > 0 || in.TakeProfitPct > 0 {
		fmt.Fprintf(&b, "%s stop-loss %s, take-profit %s (not applied)\n",
			labelStyle.Render("note"), FormatPercent(in.StopLossPct), FormatPercent(in.TakeProfitPct))
	}

	if tail := res.Tail(in.Tail); len(tail) > 0 {
		b.WriteString("\n" + titleStyle.Render("Sample of results") + "\n")
		b.WriteString(TailTable(tail))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func panel(label, value string) string {
	return panelStyle.Render(labelStyle.Render(label) + "\n" + titleStyle.Render(value))
}

// TailTable renders records as a bordered table.
func TailTable(records []backtest.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow(r))
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(recordHeader...).
		Rows(rows...).
		String()
}

var recordHeader = []string{"date", "close", "sma_s", "sma_l", "signal", "position", "ret", "strat_ret", "equity"}

func recordRow(r backtest.Record) []string {
	return []string{
		r.Time.Format(time.DateOnly),
		formatFloat(r.Close),
		formatOptional(r.ShortAvg, formatFloat, ""),
		formatOptional(r.LongAvg, formatFloat, ""),
		strconv.Itoa(r.Signal),
		strconv.Itoa(r.Position),
		formatFloat(r.PeriodReturn),
		formatFloat(r.StrategyReturn),
		formatFloat(r.Equity),
	}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// Sparkline samples values down to width points and maps them onto block
// characters scaled between the sampled minimum and maximum.
func Sparkline(values []float64, width int) string {
	sampled := sample(values, width)
	if len(sampled) == 0 {
		return ""
	}
	lo, hi := sampled[0], sampled[0]
	for _, v := range sampled {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	out := make([]rune, len(sampled))
	for i, v := range sampled {
		idx := 0
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkTicks)-1)))
		}
		out[i] = sparkTicks[idx]
	}
	return string(out)
}

func positionStrip(positions []int, width int) string {
	values := make([]float64, len(positions))
	for i, p := range positions {
		values[i] = float64(p)
	}
	sampled := sample(values, width)
	out := make([]rune, len(sampled))
	for i, v := range sampled {
		out[i] = '_'
		if v >= 0.5 {
			out[i] = '█'
		}
	}
	return string(out)
}

func sample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		return values
	}
	if width == 1 {
		return values[len(values)-1:]
	}
	out := make([]float64, width)
	step := float64(len(values)-1) / float64(width-1)
	for i := range out {
		out[i] = values[int(math.Round(float64(i)*step))]
	}
	return out
}
