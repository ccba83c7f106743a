package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/narrative"
	"interview-evaluator/internal/workers/base"
)

const systemPrompt = "You are an expert technical interviewer evaluating how a candidate reasons through a problem."

var ErrTelemetryRead = errors.New("REASONING_TELEMETRY_READ_FAILED")

// TelemetryReader provides both streams the reasoning score is built from.
type TelemetryReader interface {
	ListCodingEvents(ctx context.Context, sessionID string) ([]models.CodingEvent, error)
	ListSpeechSegments(ctx context.Context, sessionID string) ([]models.SpeechSegment, error)
}

type Handler struct {
	config   *Config
	reader   TelemetryReader
	narrator base.Narrator
	logger   logger.Logger
}

func NewHandler(config *Config, reader TelemetryReader, narrator base.Narrator, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		reader:   reader,
		narrator: narrator,
		logger: log.WithFields(map[string]interface{}{
			"workerKind": models.KindReasoning.String(),
		}),
	}
}

func (h *Handler) Name() models.WorkerKind { return models.KindReasoning }

// Process scores the session even when both streams are empty; the base
// scores then stand on their own.
func (h *Handler) Process(ctx context.Context, in base.Input) (*models.WorkerOutput, error) {
	events, err := h.reader.ListCodingEvents(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: coding events: %v", ErrTelemetryRead, err)
	}
	segments, err := h.reader.ListSpeechSegments(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: speech segments: %v", ErrTelemetryRead, err)
	}

	metrics := Analyze(events, segments)
	flags := extractFlags(metrics)
	insight := base.Insight(ctx, h.narrator, models.KindReasoning, h.config.NarrativeBudget, h.buildRequest(metrics, flags), func() string {
		return fallbackInsight(metrics)
	}, h.logger)

	return &models.WorkerOutput{
		Score:    models.Float(base.WeightedScore(metrics.scores(), weights)),
		Findings: base.ToFindings(metrics),
		Flags:    flags,
		Insight:  &insight,
	}, nil
}

// Analyze derives reasoning scores from the coding and speech streams.
func Analyze(events []models.CodingEvent, segments []models.SpeechSegment) Metrics {
	m := Metrics{SpeechSegments: len(segments)}

	for _, e := range events {
		if e.Snapshot() != "" {
			m.CodeIterations++
		}
		if e.IsExecute() {
			m.ExecutionAttempts++
			if e.Succeeded() {
				m.SuccessfulExecutions++
			}
		}
	}
	for _, s := range segments {
		m.TotalWords += base.CountWords(s.Transcript)
	}

	m.LogicalApproach = base.Clamp(logicalApproach(m))
	m.ProblemDecomposition = base.Clamp(problemDecomposition(m))
	m.ExplanationQuality = base.Clamp(explanationQuality(m))
	m.Adaptability = base.Clamp(adaptability(m))
	return m
}

func logicalApproach(m Metrics) float64 {
	score := 50.0
	if m.CodeIterations > 0 {
		score += 10
	}
	if m.CodeIterations >= 3 {
		score += 10
	}
	if m.ExecutionAttempts > 0 && float64(m.SuccessfulExecutions)/float64(m.ExecutionAttempts) >= 0.5 {
		score += 15
	}
	if m.ExecutionAttempts > 15 {
		score -= 15
	}
	return score
}

func problemDecomposition(m Metrics) float64 {
	score := 50.0
	if m.CodeIterations >= 2 {
		score += 15
	}
	if m.CodeIterations >= 5 {
		score += 10
	}
	if m.ExecutionAttempts > 0 && m.ExecutionAttempts <= 10 {
		score += 10
	}
	return score
}

func explanationQuality(m Metrics) float64 {
	score := 50.0
	if m.TotalWords > 100 {
		score += 10
	}
	if m.TotalWords > 300 {
		score += 10
	}
	if m.TotalWords > 500 {
		score += 15
	}
	if m.SpeechSegments > 0 && float64(m.TotalWords)/float64(m.SpeechSegments) > 20 {
		score += 10
	}
	return score
}

func adaptability(m Metrics) float64 {
	score := 50.0
	if m.ExecutionAttempts >= 2 && m.SuccessfulExecutions > 0 {
		score += 15
	}
	if m.CodeIterations >= 3 {
		score += 10
	}
	if m.TotalWords > 200 {
		score += 10
	}
	return score
}

func extractFlags(m Metrics) []models.Flag {
	flags := []models.Flag{}
	if m.ExecutionAttempts > 15 {
		flags = append(flags, models.Flag{
			Type:     "excessive_trial_and_error",
			Severity: models.SeverityMedium,
			Message:  "High number of execution attempts - may indicate trial-and-error approach",
		})
	}
	if m.TotalWords < 200 {
		flags = append(flags, models.Flag{
			Type:     "limited_explanation",
			Severity: models.SeverityMedium,
			Message:  "Limited verbal explanation of approach",
		})
	}
	if m.LogicalApproach < 50 {
		flags = append(flags, models.Flag{
			Type:     "weak_logical_approach",
			Severity: models.SeverityHigh,
			Message:  "Weak logical problem-solving approach detected",
		})
	}
	return flags
}

func (h *Handler) buildRequest(m Metrics, flags []models.Flag) narrative.Request {
	prompt := fmt.Sprintf(`Analyze how this candidate reasoned through the interview problem:

Metrics:
- Code iterations: %d
- Execution attempts: %d (%d successful)
- Words spoken: %d across %d segments
- Logical approach score: %.1f/100
- Problem decomposition score: %.1f/100
- Explanation quality score: %.1f/100
- Adaptability score: %.1f/100

Flags: %d issues detected
%s

Provide a 2-3 sentence assessment of their problem-solving reasoning.`,
		m.CodeIterations, m.ExecutionAttempts, m.SuccessfulExecutions,
		m.TotalWords, m.SpeechSegments,
		m.LogicalApproach, m.ProblemDecomposition, m.ExplanationQuality, m.Adaptability,
		len(flags), base.FlagLines(flags))

	return narrative.Request{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  h.config.Temperature,
		MaxTokens:    h.config.MaxTokens,
	}
}

func fallbackInsight(m Metrics) string {
	var parts []string
	switch {
	case m.LogicalApproach > 80:
		parts = append(parts, "Strong systematic problem-solving approach.")
	case m.LogicalApproach > 60:
		parts = append(parts, "Reasonable problem-solving approach with room for improvement.")
	default:
		parts = append(parts, "Problem-solving approach needs improvement.")
	}
	if m.ExplanationQuality > 80 {
		parts = append(parts, "Excellent verbal explanation of reasoning.")
	}
	if m.ExecutionAttempts <= 5 {
		parts = append(parts, "Efficient code execution - minimal trial and error.")
	}
	return strings.Join(parts, " ")
}
