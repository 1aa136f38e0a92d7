package vlm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"nutrilens-server-go/internal/platform/config"
	"nutrilens-server-go/internal/platform/logging"
)

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// ollamaProvider streams /api/chat and concatenates the NDJSON chunks.
type ollamaProvider struct {
	config     config.VLMConfig
	httpClient *http.Client
	logger     *logging.Logger
}

func newOllamaProvider(cfg config.VLMConfig, logger *logging.Logger) *ollamaProvider {
	return &ollamaProvider{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (p *ollamaProvider) Name() string { return "ollama" }

func (p *ollamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	options := map[string]interface{}{}
	if p.config.Temperature > 0 {
		options["temperature"] = p.config.Temperature
	}
	if p.config.TopP > 0 {
		options["top_p"] = p.config.TopP
	}
	if p.config.MaxTokens > 0 {
		options["num_predict"] = p.config.MaxTokens
	}

	body, err := sonic.Marshal(ollamaRequest{
		Model: p.config.ModelName,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []string{req.Image.Base64()}, // raw base64, no data URL prefix
		}},
		Stream:  true,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("encode ollama request: %w", err)
	}

	url := strings.TrimSuffix(p.config.BaseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.DebugTag("VLM", "invoke ollama: url=%s model=%s image_bytes=%d", url, p.config.ModelName, len(req.Image.Data))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var reply strings.Builder
	decoder := sonic.ConfigDefault.NewDecoder(resp.Body)
	for {
		var chunk ollamaResponse
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("decode ollama stream: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		reply.WriteString(chunk.Message.Content)
		if chunk.Done {
			break
		}
	}

	return stripThinking(reply.String()), nil
}
