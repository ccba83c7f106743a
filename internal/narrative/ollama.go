package narrative

import (
	"context"
	"strings"
	"time"

	httpclient "interview-evaluator/internal/common/http"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama2"
)

// OllamaProvider calls a local Ollama server's chat endpoint.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *httpclient.Client
}

func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultOllamaModel
	}
	return &OllamaProvider{
		baseURL: baseURL,
		model:   model,
		client:  httpclient.NewClient(timeout),
	}
}

func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options"`
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (string, error) {
	chat := ollamaChatRequest{Model: p.model}
	if req.SystemPrompt != "" {
		chat.Messages = append(chat.Messages, ollamaMessage{Role: "system", Content: req.SystemPrompt})
	}
	chat.Messages = append(chat.Messages, ollamaMessage{Role: "user", Content: req.Prompt})
	chat.Options.Temperature = req.Temperature
	chat.Options.NumPredict = req.MaxTokens

	var resp struct {
		Message ollamaMessage `json:"message"`
	}
	if err := p.client.PostJSON(ctx, p.baseURL+"/api/chat", nil, chat, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
