package md

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"smabt/internal/backtest"
)

type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaSource loads split and dividend adjusted daily bars from the Alpaca
// market data API.
type AlpacaSource struct {
	client  barsClient
	feed    marketdata.Feed
	limiter *rate.Limiter
	timeout time.Duration
}

func NewAlpacaSource(apiKey, apiSecret, feed string, perSecond float64, timeout time.Duration) *AlpacaSource {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return newAlpacaSource(client, feed, perSecond, timeout)
}

func newAlpacaSource(client barsClient, feed string, perSecond float64, timeout time.Duration) *AlpacaSource {
	if perSecond <= 0 {
		perSecond = 3
	}
	return &AlpacaSource{
		client:  client,
		feed:    parseFeed(feed),
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		timeout: timeout,
	}
}

type barsResult struct {
	bars []marketdata.Bar
	err  error
}

func (s *AlpacaSource) Fetch(ctx context.Context, symbol string, start, end time.Time) (backtest.PriceSeries, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	// the SDK call takes no context, so the deadline is enforced here
	done := make(chan barsResult, 1)
	go func() {
		bars, err := s.client.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Adjustment: marketdata.All,
			Start:      start,
			End:        end,
			Feed:       s.feed,
		})
		done <- barsResult{bars: bars, err: err}
	}()

	var res barsResult
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get bars %s: %w", symbol, ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		slog.Error("fetch bars failed", "symbol", symbol, "error", res.err)
		return nil, fmt.Errorf("get bars %s: %w", symbol, res.err)
	}

	points := make([]backtest.PricePoint, 0, len(res.bars))
	for _, bar := range res.bars {
		if !inRange(bar.Timestamp, start, end) {
			continue
		}
		points = append(points, backtest.PricePoint{Time: bar.Timestamp.UTC(), Close: bar.Close})
	}
	series := Clean(points)
	slog.Info("bars fetched", "symbol", symbol, "received", len(res.bars), "kept", len(series))
	if len(series) == 0 {
		return nil, fmt.Errorf("%s %s..%s: %w", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly), ErrEmptyResult)
	}
	return series, nil
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "iex":
		return marketdata.IEX
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
