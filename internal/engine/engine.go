package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"smabt/internal/backtest"
	"smabt/internal/journal"
	"smabt/internal/md"
	"smabt/internal/metrics"
	"smabt/internal/publish"
)

type Request struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Params backtest.Params
}

// Outcome is a finished run. Result is only meaningful when Run returned a
// nil error.
type Outcome struct {
	RunID  string
	Result backtest.Result
	Entry  journal.Entry
}

type SweepOutcome struct {
	RunID   string
	Results []backtest.SweepResult
	Best    *backtest.SweepResult
}

// Engine fetches prices, runs backtests and records each run.
type Engine struct {
	source     md.Source
	sourceName string
	journal    *journal.Logger
	publisher  publish.Publisher
	newRunID   func() string
}

type Option func(*Engine)

func WithJournal(j *journal.Logger) Option {
	return func(e *Engine) { e.journal = j }
}

func WithPublisher(p publish.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func New(source md.Source, sourceName string, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		sourceName: sourceName,
		publisher:  publish.Nop{},
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fetch loads the price series for a request and records its duration.
func (e *Engine) Fetch(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceSeries, error) {
	began := time.Now()
	prices, err := e.source.Fetch(ctx, symbol, start, end)
	metrics.PriceFetchDuration.WithLabelValues(e.sourceName).Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, err
	}
	slog.Debug("prices fetched", "symbol", symbol, "rows", len(prices), "source", e.sourceName)
	return prices, nil
}

// Run backtests one parameter pair. md.ErrEmptyResult and
// backtest.ErrInvalidInput come back wrapped so callers can tell them apart.
func (e *Engine) Run(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{RunID: e.newRunID()}
	entry := e.newEntry(out.RunID, req.Symbol, req.Start, req.End, req.Params)

	prices, err := e.Fetch(ctx, req.Symbol, req.Start, req.End)
	if err != nil {
		out.Entry = e.record(ctx, entry, err)
		return out, err
	}

	result, err := backtest.Run(prices, req.Params)
	if err != nil {
		out.Entry = e.record(ctx, entry, err)
		return out, err
	}

	m := result.Metrics
	entry.Metrics = &m
	entry.Exposure = result.Exposure()
	entry.Entries = result.Entries()
	out.Result = result
	out.Entry = e.record(ctx, entry, nil)
	slog.Info("backtest complete",
		"run_id", out.RunID,
		"symbol", req.Symbol,
		"short", req.Params.ShortWindow,
		"long", req.Params.LongWindow,
		"periods", m.Periods,
		"total_return", m.TotalReturn,
	)
	return out, nil
}

// Sweep backtests every pair in r against one fetch of the series.
func (e *Engine) Sweep(ctx context.Context, symbol string, start, end time.Time, r backtest.SweepRange) (SweepOutcome, error) {
	out := SweepOutcome{RunID: e.newRunID()}
	entry := e.newEntry(out.RunID, symbol, start, end, backtest.Params{})

	prices, err := e.Fetch(ctx, symbol, start, end)
	if err != nil {
		e.record(ctx, entry, err)
		return out, err
	}
	results, err := backtest.Sweep(prices, r)
	if err != nil {
		e.record(ctx, entry, err)
		return out, err
	}
	out.Results = results
	if best, ok := backtest.BestBySharpe(results); ok {
		out.Best = &best
		m := best.Metrics
		entry.ShortWindow = best.Params.ShortWindow
		entry.LongWindow = best.Params.LongWindow
		entry.Metrics = &m
	}
	e.record(ctx, entry, nil)
	slog.Info("sweep complete", "run_id", out.RunID, "symbol", symbol, "pairs", len(results))
	return out, nil
}

func (e *Engine) newEntry(runID, symbol string, start, end time.Time, p backtest.Params) journal.Entry {
	return journal.Entry{
		RunID:       runID,
		Timestamp:   time.Now().UTC(),
		Symbol:      symbol,
		Start:       start.Format(time.DateOnly),
		End:         end.Format(time.DateOnly),
		ShortWindow: p.ShortWindow,
		LongWindow:  p.LongWindow,
	}
}

// record counts, journals and publishes a run. Journal and publish failures
// are logged; they never fail the run.
func (e *Engine) record(ctx context.Context, entry journal.Entry, runErr error) journal.Entry {
	entry.Result = resultFor(runErr)
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	metrics.BacktestRunsTotal.WithLabelValues(entry.Result).Inc()

	if e.journal != nil {
		if err := e.journal.Append(entry); err != nil {
			slog.Warn("journal append failed", "run_id", entry.RunID, "error", err)
		}
	}
	if err := e.publisher.Publish(ctx, entry); err != nil {
		slog.Warn("publish failed", "run_id", entry.RunID, "error", err)
	}
	return entry
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return journal.ResultOK
	case errors.Is(err, md.ErrEmptyResult):
		return journal.ResultEmpty
	case errors.Is(err, backtest.ErrInvalidInput):
		return journal.ResultInvalid
	default:
		return journal.ResultError
	}
}
