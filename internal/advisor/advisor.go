package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smabt/internal/credential"
	"smabt/internal/llm"
	"smabt/internal/llm/ollama"
	"smabt/internal/llm/openai"
	"smabt/internal/llm/prompts"
	"smabt/internal/metrics"
)

// ErrAdvisoryFailure covers every way an advisory request can fail. Callers
// report it and carry on; it never invalidates a finished backtest.
var ErrAdvisoryFailure = errors.New("advisory failure")

// ErrDisabled is returned by NewProvider when no provider is configured.
var ErrDisabled = errors.New("advisory disabled")

type Advisor interface {
	Explain(ctx context.Context, summary string) (string, error)
}

type Options struct {
	SystemPrompt  string
	ExplainPrompt string
	Context       string
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
}

// LLM asks a language model to comment on a backtest summary. One request per
// call, no retries.
type LLM struct {
	client *llm.Client
	opts   Options
}

func NewLLM(provider llm.Provider, opts Options) *LLM {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = prompts.DefaultSystemPrompt()
	}
	if opts.ExplainPrompt == "" {
		opts.ExplainPrompt = prompts.DefaultExplainPrompt()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &LLM{client: llm.New(provider), opts: opts}
}

func (a *LLM) Explain(ctx context.Context, summary string) (string, error) {
	reply, err := a.explain(ctx, summary)
	if err != nil {
		metrics.AdvisoryRequestsTotal.WithLabelValues(metrics.StatusError).Inc()
		slog.Warn("advisory request failed", "error", err)
		return "", err
	}
	metrics.AdvisoryRequestsTotal.WithLabelValues(metrics.StatusOK).Inc()
	return reply, nil
}

func (a *LLM) explain(ctx context.Context, summary string) (string, error) {
	prompt, err := prompts.RenderExplainPrompt(a.opts.ExplainPrompt, prompts.ExplainData{
		Summary: summary,
		Context: a.opts.Context,
	})
	if err != nil {
		return "", fmt.Errorf("%w: render prompt: %w", ErrAdvisoryFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	opts := []llm.CompletionOption{llm.WithSystemPrompt(a.opts.SystemPrompt)}
	if a.opts.Temperature != 0 {
		opts = append(opts, llm.WithTemperature(a.opts.Temperature))
	}
	if a.opts.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(a.opts.MaxTokens))
	}

	resp, err := a.client.Complete(ctx, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAdvisoryFailure, err)
	}
	reply := strings.TrimSpace(resp.Message.Content)
	if reply == "" {
		return "", fmt.Errorf("%w: empty reply", ErrAdvisoryFailure)
	}
	return reply, nil
}

// NewProvider builds the named provider. "none" or "" yields ErrDisabled. A
// provider that needs a credential fails here when none is set, before any
// request goes out.
func NewProvider(name, baseURL, model string, key credential.Secret) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return nil, ErrDisabled
	case "ollama":
		if model == "" {
			return nil, fmt.Errorf("%w: ollama requires a model", ErrAdvisoryFailure)
		}
		return ollama.New(baseURL, model), nil
	case "openai":
		if key.IsZero() {
			return nil, fmt.Errorf("%w: %w", ErrAdvisoryFailure, llm.ErrMissingCredential)
		}
		if model == "" {
			return nil, fmt.Errorf("%w: openai requires a model", ErrAdvisoryFailure)
		}
		return openai.New(baseURL, model, key), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrAdvisoryFailure, name)
	}
}
