package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"smabt/internal/advisor"
	"smabt/internal/backtest"
	"smabt/internal/config"
	"smabt/internal/engine"
	"smabt/internal/md"
	"smabt/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	config.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, os.Stdout))
}

func run(ctx context.Context, cfg config.Config, out io.Writer) int {
	eng, closeEngine, err := engine.FromConfig(ctx, cfg, uuid.NewString())
	if err != nil {
		log.Printf("engine setup error: %v", err)
		return 1
	}
	defer func() {
		if err := closeEngine(); err != nil {
			log.Printf("failed to close engine resources: %v", err)
		}
	}()

	if cfg.Sweep != nil {
		return runSweep(ctx, cfg, eng, out)
	}

	if cfg.LongWindow <= cfg.ShortWindow {
		slog.Warn("long window is not longer than short window; running the crossover as given",
			"short", cfg.ShortWindow, "long", cfg.LongWindow)
	}

	params := backtest.Params{ShortWindow: cfg.ShortWindow, LongWindow: cfg.LongWindow}
	outcome, err := eng.Run(ctx, engine.Request{Symbol: cfg.Symbol, Start: cfg.Start, End: cfg.End, Params: params})
	switch {
	case errors.Is(err, md.ErrEmptyResult):
		printNoData(out, cfg)
		return 0
	case errors.Is(err, backtest.ErrInvalidInput):
		fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
		return 2
	case err != nil:
		fmt.Fprintf(os.Stderr, "backtest failed: %v\n", err)
		return 1
	}

	if err := report.Render(out, report.Input{
		Symbol:        cfg.Symbol,
		Start:         cfg.Start,
		End:           cfg.End,
		Result:        outcome.Result,
		Tail:          cfg.Tail,
		StopLossPct:   cfg.StopLossPct,
		TakeProfitPct: cfg.TakeProfitPct,
	}); err != nil {
		log.Printf("render report: %v", err)
		return 1
	}

	if cfg.CSVOut != "" {
		if err := writeCSV(cfg.CSVOut, outcome.Result); err != nil {
			log.Printf("write csv: %v", err)
			return 1
		}
		slog.Info("signal table written", "path", cfg.CSVOut, "rows", outcome.Result.Signals.Len())
	}

	if cfg.Explain {
		explain(ctx, cfg, outcome.Result, out)
	}
	return 0
}

func runSweep(ctx context.Context, cfg config.Config, eng *engine.Engine, out io.Writer) int {
	outcome, err := eng.Sweep(ctx, cfg.Symbol, cfg.Start, cfg.End, *cfg.Sweep)
	switch {
	case errors.Is(err, md.ErrEmptyResult):
		printNoData(out, cfg)
		return 0
	case errors.Is(err, backtest.ErrInvalidInput):
		fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
		return 2
	case err != nil:
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		return 1
	}
	if err := report.RenderSweep(out, cfg.Symbol, outcome.Results, outcome.Best); err != nil {
		log.Printf("render sweep: %v", err)
		return 1
	}
	return 0
}

// explain prints the advisory summary and reply. Failures are reported and
// never change the exit status.
func explain(ctx context.Context, cfg config.Config, result backtest.Result, out io.Writer) {
	summary := report.Summary(report.SummaryInput{
		Symbol:  cfg.Symbol,
		Start:   cfg.Start,
		End:     cfg.End,
		Params:  result.Params,
		Metrics: result.Metrics,
	})
	fmt.Fprintf(out, "\nAdvisory summary:\n%s\n", summary)

	adv, err := advisor.FromConfig(cfg)
	if errors.Is(err, advisor.ErrDisabled) {
		fmt.Fprintln(out, "\nAdvisory disabled; set -advisor to ollama or openai.")
		return
	}
	if err != nil {
		fmt.Fprintf(out, "\nAdvisory unavailable: %v\n", err)
		return
	}
	reply, err := adv.Explain(ctx, summary)
	if err != nil {
		fmt.Fprintf(out, "\nAdvisory failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "\nAdvisory:\n%s\n", reply)
}

func printNoData(out io.Writer, cfg config.Config) {
	fmt.Fprintf(out, "No price data for %s between %s and %s. Check the ticker or dates.\n",
		cfg.Symbol, cfg.Start.Format(time.DateOnly), cfg.End.Format(time.DateOnly))
}

func writeCSV(path string, result backtest.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(file, result.Signals.Records); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
