package base

import (
	"context"
	"strings"
	"time"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/common/metrics"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/narrative"
)

// Narrator generates free-text insights. *narrative.Generator satisfies it.
type Narrator interface {
	Generate(ctx context.Context, req narrative.Request) (string, error)
}

// Insight asks n for a narrative within budget and falls back to the
// deterministic text when n is nil, fails or returns nothing.
func Insight(ctx context.Context, n Narrator, kind models.WorkerKind, budget time.Duration, req narrative.Request, fallback func() string, log logger.Logger) string {
	if n == nil {
		metrics.NarrativeFallbacks.WithLabelValues(kind.String()).Inc()
		return fallback()
	}

	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	text, err := n.Generate(ctx, req)
	if err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
	}

	fields := map[string]interface{}{"workerKind": kind.String()}
	if err != nil {
		fields["error"] = err.Error()
	}
	log.Warn("narrative generation failed, using rule-based insight", fields)
	metrics.NarrativeFallbacks.WithLabelValues(kind.String()).Inc()
	return fallback()
}

// FlagLines renders flags as a bulleted list for prompts.
func FlagLines(flags []models.Flag) string {
	if len(flags) == 0 {
		return "- None"
	}
	lines := make([]string, 0, len(flags))
	for _, f := range flags {
		lines = append(lines, "- "+f.Message)
	}
	return strings.Join(lines, "\n")
}
