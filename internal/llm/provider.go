package llm

import (
	"context"
	"errors"
)

// ErrMissingCredential is returned by providers that need an API key when
// none was configured.
var ErrMissingCredential = errors.New("missing provider credential")

type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
