package vlm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"nutrilens-server-go/internal/platform/config"
	"nutrilens-server-go/internal/platform/logging"
)

// openAIProvider talks to any OpenAI-compatible chat completions endpoint.
type openAIProvider struct {
	name   string
	config config.VLMConfig
	client *openai.Client
	logger *logging.Logger
}

func newOpenAIProvider(name string, cfg config.VLMConfig, logger *logging.Logger) *openAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &openAIProvider{
		name:   name,
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}
}

func (p *openAIProvider) Name() string { return p.name }

func (p *openAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	visionMessage := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: req.Image.DataURL(),
				},
			},
		},
	}

	p.logger.DebugTag("VLM", "invoke vision API: type=%s model=%s image_bytes=%d", p.name, p.config.ModelName, len(req.Image.Data))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.config.ModelName,
		Messages:    []openai.ChatCompletionMessage{visionMessage},
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion returned no choices", p.name)
	}

	return stripThinking(resp.Choices[0].Message.Content), nil
}
