package engagement

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
	noVisionInsight = "No vision data available"
	systemPrompt    = "You are an expert interviewer assessing a candidate's attentiveness during a remote technical interview."
)

var ErrTelemetryRead = errors.New("VISION_TELEMETRY_READ_FAILED")

// SampleReader lists a session's vision samples in time order.
type SampleReader interface {
	ListVisionSamples(ctx context.Context, sessionID string) ([]models.VisionSample, error)
}

type Handler struct {
	config   *Config
	reader   SampleReader
	narrator base.Narrator
	logger   logger.Logger
}

func NewHandler(config *Config, reader SampleReader, narrator base.Narrator, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		reader:   reader,
		narrator: narrator,
		logger: log.WithFields(map[string]interface{}{
			"workerKind": models.KindEngagement.String(),
		}),
	}
}

func (h *Handler) Name() models.WorkerKind { return models.KindEngagement }

func (h *Handler) Process(ctx context.Context, in base.Input) (*models.WorkerOutput, error) {
	samples, err := h.reader.ListVisionSamples(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTelemetryRead, err)
	}

	if len(samples) == 0 {
		return &models.WorkerOutput{
			Score:   models.Float(0),
			Insight: models.String(noVisionInsight),
		}, nil
	}

	metrics := Analyze(samples)
	flags := extractFlags(metrics)
	insight := base.Insight(ctx, h.narrator, models.KindEngagement, h.config.NarrativeBudget, h.buildRequest(metrics, flags), func() string {
		return fallbackInsight(metrics)
	}, h.logger)

	return &models.WorkerOutput{
		Score:    models.Float(base.WeightedScore(metrics.scores(), weights)),
		Findings: base.ToFindings(metrics),
		Flags:    flags,
		Insight:  &insight,
	}, nil
}

// Analyze computes engagement, attention and presence percentages.
func Analyze(samples []models.VisionSample) Metrics {
	m := Metrics{TotalSamples: len(samples)}

	var focused, positive, present int
	for _, s := range samples {
		switch s.MetricType {
		case models.VisionGaze:
			m.GazeSamples++
			if focusedGaze[s.LabelValue()] {
				focused++
			}
		case models.VisionEmotion:
			m.EmotionSamples++
			if positiveEmotions[s.LabelValue()] {
				positive++
			}
		case models.VisionPresence:
			m.PresenceSamples++
			if s.Value != nil && *s.Value == 1.0 {
				present++
			}
		}
	}

	m.Engagement = percent(focused, m.GazeSamples, 0)
	m.Attention = percent(positive, m.EmotionSamples, defaultAttention)
	m.Presence = percent(present, m.PresenceSamples, defaultPresence)
	return m
}

func percent(hits, total int, empty float64) float64 {
	if total == 0 {
		return empty
	}
	return float64(hits) * 100 / float64(total)
}

func extractFlags(m Metrics) []models.Flag {
	flags := []models.Flag{}
	if m.Engagement < 50 {
		flags = append(flags, models.Flag{
			Type:     "low_engagement",
			Severity: models.SeverityHigh,
			Message:  "Low visual engagement detected",
		})
	}
	if m.Presence < 80 {
		flags = append(flags, models.Flag{
			Type:     "intermittent_presence",
			Severity: models.SeverityMedium,
			Message:  "Candidate frequently absent from camera view",
		})
	}
	if m.TotalSamples < 100 {
		flags = append(flags, models.Flag{
			Type:     "limited_vision_data",
			Severity: models.SeverityLow,
			Message:  "Limited vision data collected",
		})
	}
	return flags
}

func (h *Handler) buildRequest(m Metrics, flags []models.Flag) narrative.Request {
	prompt := fmt.Sprintf(`Analyze this candidate's visual engagement during a remote technical interview:

Metrics:
- Vision samples: %d (gaze %d, emotion %d, presence %d)
- Engagement score: %.1f/100
- Attention score: %.1f/100
- Camera presence: %.1f%%

Flags: %d issues detected
%s

Provide a 1-2 sentence assessment of their engagement.`,
		m.TotalSamples, m.GazeSamples, m.EmotionSamples, m.PresenceSamples,
		m.Engagement, m.Attention, m.Presence,
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
	case m.Engagement > 80:
		parts = append(parts, "High visual engagement throughout the session.")
	case m.Engagement > 60:
		parts = append(parts, "Moderate visual engagement.")
	default:
		parts = append(parts, "Low visual engagement - candidate may be distracted.")
	}
	if m.Presence > 95 {
		parts = append(parts, "Consistent camera presence.")
	}
	return strings.Join(parts, " ")
}
