package narrative

import (
	"context"
	"fmt"

	"interview-evaluator/internal/common/config"
	"interview-evaluator/internal/common/logger"
)

// FromConfig builds a Generator with providers in cfg.Providers order.
// Providers missing credentials are skipped with a warning; an unknown
// provider name is an error.
func FromConfig(ctx context.Context, cfg config.NarrativeConfig, log logger.Logger) (*Generator, error) {
	timeout := config.GetDuration(cfg.ProviderTimeout)
	providers := make([]Provider, 0, len(cfg.Providers))

	for _, name := range cfg.Providers {
		switch name {
		case "gemini":
			p, err := NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, "")
			if err != nil {
				log.Warn("skipping narrative provider", map[string]interface{}{"provider": name, "reason": err.Error()})
				continue
			}
			providers = append(providers, p)
		case "gateway":
			p, err := NewGatewayProvider(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, timeout)
			if err != nil {
				log.Warn("skipping narrative provider", map[string]interface{}{"provider": name, "reason": err.Error()})
				continue
			}
			providers = append(providers, p)
		case "ollama":
			providers = append(providers, NewOllamaProvider(cfg.Ollama.BaseURL, cfg.Ollama.Model, timeout))
		default:
			return nil, fmt.Errorf("unknown narrative provider %q", name)
		}
	}

	return NewGenerator(timeout, log, providers...), nil
}
