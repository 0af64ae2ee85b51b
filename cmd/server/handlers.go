package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smabt/internal/advisor"
	"smabt/internal/backtest"
	"smabt/internal/config"
	"smabt/internal/engine"
	"smabt/internal/md"
	"smabt/internal/report"
)

type backtestRequest struct {
	Symbol      string `json:"symbol"`
	Start       string `json:"start"`
	End         string `json:"end"`
	ShortWindow *int   `json:"shortWindow"`
	LongWindow  *int   `json:"longWindow"`
	Tail        *int   `json:"tail"`
}

type backtestResponse struct {
	RunID    string             `json:"run_id"`
	Symbol   string             `json:"symbol"`
	Start    string             `json:"start"`
	End      string             `json:"end"`
	Params   backtest.Params    `json:"params"`
	Metrics  report.MetricsView `json:"metrics"`
	Raw      backtest.Metrics   `json:"raw_metrics"`
	Exposure float64            `json:"exposure"`
	Entries  int                `json:"entries"`
	Tail     []backtest.Record  `json:"tail"`
}

type explainRequest struct {
	backtestRequest
	Summary string `json:"summary"`
}

type sweepRequest struct {
	Symbol string `json:"symbol"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Sweep  string `json:"sweep"`
}

// advisorErr is why a configured provider could not be built. It is nil
// when advisory is disabled.
type server struct {
	engine     *engine.Engine
	advisor    advisor.Advisor
	advisorErr error
	defaults   config.Config
}

func newRouter(s *server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/backtest", s.handleBacktest)
	r.POST("/v1/sweep", s.handleSweep)
	r.POST("/v1/explain", s.handleExplain)
	return r
}

func (s *server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"advisor": s.advisor != nil,
	})
}

func (s *server) handleBacktest(c *gin.Context) {
	var body backtestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, tail, err := s.resolve(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.engine.Run(c.Request.Context(), req)
	if err != nil {
		writeRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, backtestResponse{
		RunID:    out.RunID,
		Symbol:   req.Symbol,
		Start:    req.Start.Format(time.DateOnly),
		End:      req.End.Format(time.DateOnly),
		Params:   req.Params,
		Metrics:  report.NewMetricsView(out.Result.Metrics),
		Raw:      out.Result.Metrics,
		Exposure: out.Result.Exposure(),
		Entries:  out.Result.Entries(),
		Tail:     out.Result.Tail(tail),
	})
}

func (s *server) handleSweep(c *gin.Context) {
	var body sweepRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, _, err := s.resolve(backtestRequest{Symbol: body.Symbol, Start: body.Start, End: body.End})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := config.ParseSweep(body.Sweep)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.engine.Sweep(c.Request.Context(), req.Symbol, req.Start, req.End, r)
	if err != nil {
		writeRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"run_id":  out.RunID,
		"results": out.Results,
		"best":    out.Best,
	})
}

func (s *server) handleExplain(c *gin.Context) {
	if s.advisor == nil {
		if s.advisorErr != nil {
			err := s.advisorErr
			if !errors.Is(err, advisor.ErrAdvisoryFailure) {
				err = fmt.Errorf("%w: %w", advisor.ErrAdvisoryFailure, err)
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": advisor.ErrDisabled.Error()})
		return
	}
	var body explainRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary := strings.TrimSpace(body.Summary)
	if summary == "" {
		req, _, err := s.resolve(body.backtestRequest)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := s.engine.Run(c.Request.Context(), req)
		if err != nil {
			writeRunError(c, err)
			return
		}
		summary = report.Summary(report.SummaryInput{
			Symbol:  req.Symbol,
			Start:   req.Start,
			End:     req.End,
			Params:  req.Params,
			Metrics: out.Result.Metrics,
		})
	}

	reply, err := s.advisor.Explain(c.Request.Context(), summary)
	if err != nil {
		if errors.Is(err, advisor.ErrAdvisoryFailure) || errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "summary": summary})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "explanation": reply})
}

// resolve fills omitted request fields from the server defaults.
func (s *server) resolve(body backtestRequest) (engine.Request, int, error) {
	d := s.defaults
	req := engine.Request{
		Symbol: strings.ToUpper(strings.TrimSpace(body.Symbol)),
		Start:  d.Start,
		End:    d.End,
		Params: backtest.Params{ShortWindow: d.ShortWindow, LongWindow: d.LongWindow},
	}
	if req.Symbol == "" {
		req.Symbol = d.Symbol
	}
	if req.Symbol == "" {
		return req, 0, fmt.Errorf("symbol is required")
	}
	var err error
	if body.Start != "" {
		if req.Start, err = time.Parse(time.DateOnly, body.Start); err != nil {
			return req, 0, fmt.Errorf("invalid start: %w", err)
		}
	}
	if body.End != "" {
		if req.End, err = time.Parse(time.DateOnly, body.End); err != nil {
			return req, 0, fmt.Errorf("invalid end: %w", err)
		}
	}
	if !req.End.After(req.Start) {
		return req, 0, fmt.Errorf("end must be after start")
	}
	if body.ShortWindow != nil {
		req.Params.ShortWindow = *body.ShortWindow
	}
	if body.LongWindow != nil {
		req.Params.LongWindow = *body.LongWindow
	}
	tail := d.Tail
	if body.Tail != nil {
		tail = *body.Tail
	}
	return req, tail, nil
}

func writeRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, backtest.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, md.ErrEmptyResult):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
