package advisor

import (
	"smabt/internal/config"
	"smabt/internal/llm/prompts"
)

// FromConfig builds the configured advisor. It returns ErrDisabled when the
// provider is "none".
func FromConfig(cfg config.Config) (Advisor, error) {
	provider, err := NewProvider(cfg.Advisor, cfg.LLMBaseURL, cfg.LLMModel, cfg.LLMAPIKey)
	if err != nil {
		return nil, err
	}
	return NewLLM(provider, Options{
		SystemPrompt:  prompts.LoadTemplate(cfg.SystemPromptPath, prompts.DefaultSystemPrompt()),
		ExplainPrompt: prompts.LoadTemplate(cfg.ExplainPromptPath, prompts.DefaultExplainPrompt()),
		Context:       cfg.PromptContext,
		Timeout:       cfg.AdvisoryTimeout,
	}), nil
}
