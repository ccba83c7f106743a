package coding

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

const (
	noActivityInsight = "No coding activity detected"
	systemPrompt      = "You are an expert technical interviewer evaluating a candidate's coding ability."
)

var ErrTelemetryRead = errors.New("CODING_TELEMETRY_READ_FAILED")

// EventReader lists a session's coding events in time order.
type EventReader interface {
	ListCodingEvents(ctx context.Context, sessionID string) ([]models.CodingEvent, error)
}

type Handler struct {
	config   *Config
	reader   EventReader
	narrator base.Narrator
	logger   logger.Logger
}

func NewHandler(config *Config, reader EventReader, narrator base.Narrator, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		reader:   reader,
		narrator: narrator,
		logger: log.WithFields(map[string]interface{}{
			"workerKind": models.KindCoding.String(),
		}),
	}
}

func (h *Handler) Name() models.WorkerKind { return models.KindCoding }

func (h *Handler) Process(ctx context.Context, in base.Input) (*models.WorkerOutput, error) {
	events, err := h.reader.ListCodingEvents(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTelemetryRead, err)
	}

	if len(events) == 0 {
		return &models.WorkerOutput{
			Score:   models.Float(0),
			Insight: models.String(noActivityInsight),
		}, nil
	}

	metrics := Analyze(events)
	flags := extractFlags(metrics)
	insight := base.Insight(ctx, h.narrator, models.KindCoding, h.config.NarrativeBudget, h.buildRequest(metrics, flags), func() string {
		return fallbackInsight(metrics)
	}, h.logger)

	h.logger.Info("coding analysis completed", map[string]interface{}{
		"sessionId":   in.SessionID,
		"totalEvents": metrics.TotalEvents,
		"successRate": metrics.ExecutionSuccessRate,
	})

	return &models.WorkerOutput{
		Score:    models.Float(base.WeightedScore(metrics.scores(), weights)),
		Findings: base.ToFindings(metrics),
		Flags:    flags,
		Insight:  &insight,
	}, nil
}

// Analyze derives coding metrics from a time-ordered event list.
func Analyze(events []models.CodingEvent) Metrics {
	m := Metrics{TotalEvents: len(events)}
	latest := ""

	for _, e := range events {
		switch {
		case e.IsExecute():
			m.ExecutionCount++
			if e.Succeeded() {
				m.SuccessfulExecutions++
			}
		case e.EventType == models.CodingEventKeystroke:
			m.KeystrokeCount++
		}
		if snapshot := e.Snapshot(); strings.TrimSpace(snapshot) != "" {
			m.SnapshotCount++
			latest = snapshot
		}
	}

	if m.ExecutionCount > 0 {
		m.ExecutionSuccessRate = float64(m.SuccessfulExecutions) * 100 / float64(m.ExecutionCount)
	}

	m.CodeQuality = base.Clamp(codeQuality(latest, m.ExecutionSuccessRate))
	m.ProblemSolving = base.Clamp(problemSolving(m))
	m.Efficiency = base.Clamp(efficiency(m))
	m.ExecutionSuccessRate = base.Clamp(m.ExecutionSuccessRate)

	return m
}

func codeQuality(snapshot string, successRate float64) float64 {
	score := 50.0
	if snapshot != "" {
		lines := strings.Split(snapshot, "\n")
		blank := 0
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				blank++
			}
		}
		if len(lines)-blank > 3 {
			score += 10
		}
		if hasDefinition(snapshot) {
			score += 15
		}
		if ratio := float64(blank) / float64(len(lines)); ratio >= 0.1 && ratio <= 0.4 {
			score += 5
		}
	}
	return score + successRate/100*20
}

func hasDefinition(code string) bool {
	for _, marker := range definitionMarkers {
		if strings.Contains(code, marker) {
			return true
		}
	}
	return false
}

func problemSolving(m Metrics) float64 {
	score := 50.0
	if m.SnapshotCount >= 2 {
		score += 10
	}
	if m.SnapshotCount >= 5 {
		score += 5
	}
	if m.ExecutionCount > 0 && m.ExecutionCount <= 10 {
		score += 10
	}
	if m.SuccessfulExecutions > 0 {
		score += 15
	}
	if m.SuccessfulExecutions >= 3 {
		score += 10
	}
	return score
}

func efficiency(m Metrics) float64 {
	score := 50.0
	ratio := float64(m.ExecutionCount) / float64(m.TotalEvents)
	switch {
	case ratio >= 0.1 && ratio <= 0.4:
		score += 20
	case ratio < 0.1:
		score += 5
	}
	if m.KeystrokeCount > 20 {
		score += 10
	}
	if m.TotalEvents > 30 {
		score += 10
	}
	return score
}

func extractFlags(m Metrics) []models.Flag {
	flags := []models.Flag{}
	if m.ExecutionSuccessRate < 30 {
		flags = append(flags, models.Flag{
			Type:     "low_execution_success",
			Severity: models.SeverityHigh,
			Message:  "Very low code execution success rate",
		})
	}
	if m.TotalEvents < 10 {
		flags = append(flags, models.Flag{
			Type:     "minimal_activity",
			Severity: models.SeverityMedium,
			Message:  "Minimal coding activity detected",
		})
	}
	return flags
}

func (h *Handler) buildRequest(m Metrics, flags []models.Flag) narrative.Request {
	prompt := fmt.Sprintf(`Analyze this candidate's coding performance:

Metrics:
- Total coding events: %d
- Code executions: %d
- Execution success rate: %.1f%%
- Code quality score: %.1f/100
- Problem-solving score: %.1f/100
- Efficiency score: %.1f/100

Flags: %d issues detected
%s

Provide a 2-3 sentence assessment of their coding skills.`,
		m.TotalEvents, m.ExecutionCount, m.ExecutionSuccessRate,
		m.CodeQuality, m.ProblemSolving, m.Efficiency,
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
	case m.ExecutionSuccessRate > 80:
		parts = append(parts, "Strong code execution success rate.")
	case m.ExecutionSuccessRate > 50:
		parts = append(parts, "Moderate code execution success rate.")
	default:
		parts = append(parts, "Low code execution success - may need more practice.")
	}
	if m.CodeQuality > 80 {
		parts = append(parts, "High code quality observed.")
	}
	return strings.Join(parts, " ")
}
