package narrative

import (
	"context"
	"errors"
	"strings"
	"time"

	httpclient "interview-evaluator/internal/common/http"
)

// GatewayProvider calls an internal GenAI HTTP gateway:
// POST {base}/api/ai/generate -> {"text": "..."}.
type GatewayProvider struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
}

func NewGatewayProvider(baseURL, apiKey string, timeout time.Duration) (*GatewayProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base url is required")
	}
	return &GatewayProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httpclient.NewClient(timeout),
	}, nil
}

func (p *GatewayProvider) Name() string { return "gateway" }

func (p *GatewayProvider) Generate(ctx context.Context, req Request) (string, error) {
	body := map[string]interface{}{
		"prompt":        req.Prompt,
		"system_prompt": req.SystemPrompt,
		"max_tokens":    req.MaxTokens,
		"temperature":   req.Temperature,
	}

	var headers map[string]string
	if p.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + p.apiKey}
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := p.client.PostJSON(ctx, p.baseURL+"/api/ai/generate", headers, body, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}
