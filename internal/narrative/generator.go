// Package narrative produces short free-text assessments through an ordered
// chain of text-generation providers.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/common/metrics"
)

var (
	ErrNoProviders        = errors.New("NARRATIVE_NO_PROVIDERS")
	ErrProvidersExhausted = errors.New("NARRATIVE_PROVIDERS_EXHAUSTED")
	ErrEmptyResponse      = errors.New("NARRATIVE_EMPTY_RESPONSE")
)

// Request is a single completion request.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Provider is one text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Generator tries providers in priority order and returns the first
// non-empty answer. Each attempt runs under its own timeout.
type Generator struct {
	providers []Provider
	timeout   time.Duration
	logger    logger.Logger
}

func NewGenerator(timeout time.Duration, log logger.Logger, providers ...Provider) *Generator {
	return &Generator{
		providers: providers,
		timeout:   timeout,
		logger:    log.WithFields(map[string]interface{}{"component": "narrative"}),
	}
}

// Providers returns the configured provider names in order.
func (g *Generator) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for _, p := range g.providers {
		names = append(names, p.Name())
	}
	return names
}

// Generate returns ErrProvidersExhausted wrapping the last provider error
// when no provider produced text.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	if len(g.providers) == 0 {
		return "", ErrNoProviders
	}

	var lastErr error
	for _, p := range g.providers {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		text, err := g.try(ctx, p, req)
		if err == nil {
			metrics.NarrativeCalls.WithLabelValues(p.Name(), "success").Inc()
			return text, nil
		}

		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.NarrativeCalls.WithLabelValues(p.Name(), status).Inc()
		g.logger.Warn("narrative provider failed", map[string]interface{}{
			"provider": p.Name(),
			"status":   status,
			"error":    err.Error(),
		})
		lastErr = err
	}

	return "", fmt.Errorf("%w: %v", ErrProvidersExhausted, lastErr)
}

func (g *Generator) try(ctx context.Context, p Provider, req Request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	text, err := p.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
