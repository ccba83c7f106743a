package speech

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/narrative"
	"interview-evaluator/internal/workers/base"
)

const (
	noSpeechInsight = "No speech detected"
	systemPrompt    = "You are an expert technical interviewer evaluating a candidate's verbal communication."
)

var ErrTelemetryRead = errors.New("SPEECH_TELEMETRY_READ_FAILED")

// SegmentReader lists a session's transcript segments ordered by start time.
type SegmentReader interface {
	ListSpeechSegments(ctx context.Context, sessionID string) ([]models.SpeechSegment, error)
}

type Handler struct {
	config   *Config
	reader   SegmentReader
	narrator base.Narrator
	logger   logger.Logger
}

func NewHandler(config *Config, reader SegmentReader, narrator base.Narrator, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		reader:   reader,
		narrator: narrator,
		logger: log.WithFields(map[string]interface{}{
			"workerKind": models.KindSpeech.String(),
		}),
	}
}

func (h *Handler) Name() models.WorkerKind { return models.KindSpeech }

func (h *Handler) Process(ctx context.Context, in base.Input) (*models.WorkerOutput, error) {
	segments, err := h.reader.ListSpeechSegments(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTelemetryRead, err)
	}

	if len(segments) == 0 {
		return &models.WorkerOutput{
			Score:   models.Float(0),
			Insight: models.String(noSpeechInsight),
		}, nil
	}

	metrics := Analyze(segments)
	flags := extractFlags(metrics)
	insight := base.Insight(ctx, h.narrator, models.KindSpeech, h.config.NarrativeBudget, h.buildRequest(metrics, flags), func() string {
		return fallbackInsight(metrics)
	}, h.logger)

	h.logger.Info("speech analysis completed", map[string]interface{}{
		"sessionId": in.SessionID,
		"segments":  metrics.TotalSegments,
		"wpm":       metrics.WordsPerMinute,
	})

	return &models.WorkerOutput{
		Score:    models.Float(base.WeightedScore(metrics.scores(), weights)),
		Findings: base.ToFindings(metrics),
		Flags:    flags,
		Insight:  &insight,
	}, nil
}

// Analyze derives communication metrics from transcript segments.
func Analyze(segments []models.SpeechSegment) Metrics {
	m := Metrics{TotalSegments: len(segments)}

	var confidenceSum float64
	for _, s := range segments {
		m.TotalDuration += s.Length()
		if s.Confidence != nil {
			confidenceSum += *s.Confidence
		}
		for _, word := range strings.Fields(s.Transcript) {
			m.WordCount++
			if isTechnical(word) {
				m.TechnicalTerms++
			}
		}
	}

	m.AvgConfidence = confidenceSum / float64(len(segments)) * 100
	if m.TotalDuration > 0 {
		m.WordsPerMinute = float64(m.WordCount) / m.TotalDuration * 60
	}

	m.Clarity = base.Clamp(m.AvgConfidence)
	m.Fluency = base.Clamp(m.WordsPerMinute / 150 * 100)

	m.TechnicalDepth = 40
	if m.WordCount > 0 {
		m.TechnicalDepth = math.Min(100, 40+600*float64(m.TechnicalTerms)/float64(m.WordCount))
	}

	m.Confidence = base.Clamp(confidenceScore(m))
	return m
}

func confidenceScore(m Metrics) float64 {
	score := 50.0
	if m.TotalDuration > 120 {
		score += 10
	}
	if m.WordsPerMinute >= 100 {
		score += 10
	}
	if m.WordCount > 200 {
		score += 10
	}
	if m.TotalSegments > 5 {
		score += 10
	}
	if m.AvgConfidence > 70 {
		score += 10
	}
	return score
}

func isTechnical(word string) bool {
	w := strings.ToLower(word)
	if _, ok := technicalVocabulary[w]; ok {
		return true
	}
	_, ok := technicalVocabulary[strings.Trim(w, ".,;:!?\"'`()[]{}")]
	return ok
}

func extractFlags(m Metrics) []models.Flag {
	flags := []models.Flag{}
	if m.TotalDuration < 60 {
		flags = append(flags, models.Flag{
			Type:     "minimal_speech",
			Severity: models.SeverityHigh,
			Message:  "Very little verbal communication detected",
		})
	}
	if m.AvgConfidence < 50 {
		flags = append(flags, models.Flag{
			Type:     "low_transcription_confidence",
			Severity: models.SeverityMedium,
			Message:  "Low transcription confidence - audio quality issues?",
		})
	}
	switch {
	case m.WordsPerMinute < 80:
		flags = append(flags, models.Flag{
			Type:     "slow_speech",
			Severity: models.SeverityLow,
			Message:  "Speaking pace is slower than average",
		})
	case m.WordsPerMinute > 200:
		flags = append(flags, models.Flag{
			Type:     "fast_speech",
			Severity: models.SeverityLow,
			Message:  "Speaking pace is faster than average",
		})
	}
	return flags
}

func (h *Handler) buildRequest(m Metrics, flags []models.Flag) narrative.Request {
	prompt := fmt.Sprintf(`Analyze this candidate's verbal communication during a technical interview:

Metrics:
- Speaking segments: %d
- Total speaking time: %.0f seconds
- Words spoken: %d (%.0f words per minute)
- Clarity score: %.1f/100
- Fluency score: %.1f/100
- Technical depth score: %.1f/100
- Confidence score: %.1f/100

Flags: %d issues detected
%s

Provide a 2-3 sentence assessment of their communication skills.`,
		m.TotalSegments, m.TotalDuration, m.WordCount, m.WordsPerMinute,
		m.Clarity, m.Fluency, m.TechnicalDepth, m.Confidence,
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
	case m.Clarity > 80:
		parts = append(parts, "Clear and articulate communication.")
	case m.Clarity > 60:
		parts = append(parts, "Generally clear communication with some unclear moments.")
	default:
		parts = append(parts, "Communication clarity could be improved.")
	}
	if m.WordsPerMinute >= 120 && m.WordsPerMinute <= 180 {
		parts = append(parts, "Good speaking pace.")
	}
	return strings.Join(parts, " ")
}
