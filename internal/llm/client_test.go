package llm

import (
	"context"
	"errors"
	"testing"
)

type mockProvider struct {
	responses []*CompletionResponse
	err       error
	callCount int
	lastReq   CompletionRequest
}

func (m *mockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	if m.callCount >= len(m.responses) {
		return &CompletionResponse{
			Message: Message{
				Role:    RoleAssistant,
				Content: "default response",
			},
		}, nil
	}
	resp := m.responses[m.callCount]
	m.callCount++
	return resp, nil
}

func TestClientComplete(t *testing.T) {
	mock := &mockProvider{
		responses: []*CompletionResponse{
			{
				Message: Message{
					Role:    RoleAssistant,
					Content: "Hello!",
				},
			},
		},
	}

	client := New(mock)
	resp, err := client.Complete(context.Background(), "Hi there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Message.Content != "Hello!" {
		t.Errorf("expected 'Hello!', got %s", resp.Message.Content)
	}
	if len(mock.lastReq.Messages) != 1 || mock.lastReq.Messages[0].Role != RoleUser {
		t.Errorf("expected a single user message, got %+v", mock.lastReq.Messages)
	}
}

func TestClientWithOptions(t *testing.T) {
	mock := &mockProvider{}

	client := New(mock)
	_, err := client.Complete(context.Background(), "Who are you?",
		WithSystemPrompt("You are a careful analyst"),
		WithTemperature(0.2),
		WithMaxTokens(256),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.lastReq.SystemPrompt != "You are a careful analyst" {
		t.Errorf("expected system prompt to be forwarded, got %q", mock.lastReq.SystemPrompt)
	}
	if mock.lastReq.Temperature != 0.2 || mock.lastReq.MaxTokens != 256 {
		t.Errorf("unexpected request options %+v", mock.lastReq)
	}
}

func TestClientProviderError(t *testing.T) {
	boom := errors.New("boom")
	client := New(&mockProvider{err: boom})
	if _, err := client.Complete(context.Background(), "Test"); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
