// Package vlm asks a vision-capable language model to name the food in an image.
package vlm

import (
	"context"
	"regexp"
	"strings"

	"nutrilens-server-go/internal/domain/food"
	"nutrilens-server-go/internal/platform/config"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	"nutrilens-server-go/internal/platform/logging"
)

// Request is one multimodal prompt.
type Request struct {
	Prompt string
	Image  food.ImageBlob
}

// Provider sends a Request to a model and returns its text reply.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Default endpoints for OpenAI-compatible aliases.
var defaultBaseURLs = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

// NewProvider builds the provider named by cfg.Type.
func NewProvider(cfg config.VLMConfig, logger *logging.Logger) (Provider, error) {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	switch t := strings.ToLower(cfg.Type); t {
	case "openai", "groq", "openrouter":
		if cfg.APIKey == "" {
			return nil, platformerrors.New(platformerrors.KindConfig, "vlm.new_provider", t+" api key is required")
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultBaseURLs[t]
		}
		return newOpenAIProvider(t, cfg, logger), nil
	case "ollama":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
		return newOllamaProvider(cfg, logger), nil
	default:
		return nil, platformerrors.New(platformerrors.KindConfig, "vlm.new_provider", "unsupported VLM type: "+cfg.Type)
	}
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinking removes reasoning blocks some models prepend to their answer.
// An unterminated block swallows the rest of the reply.
func stripThinking(reply string) string {
	reply = thinkBlock.ReplaceAllString(reply, "")
	if i := strings.Index(reply, "<think>"); i >= 0 {
		reply = reply[:i]
	}
	return strings.TrimSpace(reply)
}
