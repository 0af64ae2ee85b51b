package llm

import (
	"context"
	"fmt"
)

type Client struct {
	provider Provider
}

func New(provider Provider) *Client {
	return &Client{provider: provider}
}

type CompletionOption func(*CompletionRequest)

func WithSystemPrompt(prompt string) CompletionOption {
	return func(req *CompletionRequest) {
		req.SystemPrompt = prompt
	}
}

func WithTemperature(temp float64) CompletionOption {
	return func(req *CompletionRequest) {
		req.Temperature = temp
	}
}

func WithMaxTokens(n int) CompletionOption {
	return func(req *CompletionRequest) {
		req.MaxTokens = n
	}
}

// Complete sends a single user prompt and returns the provider's reply.
func (c *Client) Complete(ctx context.Context, prompt string, opts ...CompletionOption) (*CompletionResponse, error) {
	req := CompletionRequest{
		Messages: []Message{
			{Role: RoleUser, Content: prompt},
		},
	}
	for _, opt := range opts {
		opt(&req)
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("provider returned no response")
	}
	return resp, nil
}
