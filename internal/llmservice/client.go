package llmservice

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// NewLLM creates the completion backend selected by llm_backend.
func NewLLM(cfg *config.Config, usage *UsageRecorder) (llms.Model, error) {
	llmConfig := cfg.LLM
	log.Debug().
		Str("backend", string(llmConfig.Backend)).
		Str("base_url", llmConfig.BaseURL).
		Str("model", llmConfig.Model).
		Msg("Creating LLM")

	httpClient := NewHTTPClient(cfg.RequestTimeout)
	switch llmConfig.Backend {
	case config.BackendHosted:
		key := cfg.Credential(llmConfig)
		if key == "" {
			return nil, models.Errorf(models.KindAuth, "create llm", "hosted llm requires api_credential")
		}
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, ClassifyError("create llm", err)
		}
		if usage != nil {
			llm.CallbacksHandler = usage
		}
		return llm, nil
	case config.BackendLocal:
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
			ollama.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, ClassifyError("create llm", err)
		}
		if usage != nil {
			llm.CallbacksHandler = usage
		}
		return llm, nil
	default:
		return nil, models.Errorf(models.KindInvalidInput, "create llm", "unknown llm backend %q", llmConfig.Backend)
	}
}

// UsageRecorder is a callbacks.Handler keeping the token usage of the last generation.
type UsageRecorder struct {
	callbacks.SimpleHandler

	mu   sync.Mutex
	last *models.TokenUsage
}

func NewUsageRecorder() *UsageRecorder {
	return &UsageRecorder{}
}

func (u *UsageRecorder) HandleLLMGenerateContentEnd(_ context.Context, res *llms.ContentResponse) {
	usage, ok := usageFromResponse(res)
	if !ok {
		return
	}
	u.mu.Lock()
	u.last = &usage
	u.mu.Unlock()
	log.Info().
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Msg("LLM usage")
}

// Take returns the usage recorded since the previous call, nil if none was reported.
func (u *UsageRecorder) Take() *models.TokenUsage {
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	last := u.last
	u.last = nil
	return last
}

func usageFromResponse(res *llms.ContentResponse) (models.TokenUsage, bool) {
	var usage models.TokenUsage
	if res == nil || len(res.Choices) == 0 {
		return usage, false
	}
	info := res.Choices[0].GenerationInfo
	if info == nil {
		return usage, false
	}
	// openai reports *Tokens, ollama reports *TokenCount
	usage.PromptTokens = intFrom(info, "PromptTokens", "PromptTokenCount")
	usage.CompletionTokens = intFrom(info, "CompletionTokens", "CompletionTokenCount")
	usage.TotalTokens = intFrom(info, "TotalTokens", "TotalTokenCount")
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return usage, usage.TotalTokens > 0
}

func intFrom(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
