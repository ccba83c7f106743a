package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/narrative"
	"interview-evaluator/internal/workers/base"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

const (
	noDataInsight = "No worker data available for evaluation"
	systemPrompt  = "You are a senior hiring manager writing a concise, evidence-based interview evaluation."
)

var (
	ErrOutputRead       = errors.New("EVALUATION_OUTPUT_READ_FAILED")
	ErrNotAnEvaluation  = errors.New("NOT_AN_EVALUATION_OUTPUT")
	ErrEvaluationFailed = errors.New("EVALUATION_FAILED")
)

// OutputReader returns the completed worker outputs of a session.
type OutputReader interface {
	ListCompletedOutputs(ctx context.Context, sessionID string) ([]models.WorkerOutput, error)
}

type Handler struct {
	config   *Config
	reader   OutputReader
	narrator base.Narrator
	logger   logger.Logger
}

func NewHandler(config *Config, reader OutputReader, narrator base.Narrator, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		reader:   reader,
		narrator: narrator,
		logger: log.WithFields(map[string]interface{}{
			"workerKind": models.KindEvaluation.String(),
		}),
	}
}

func (h *Handler) Name() models.WorkerKind { return models.KindEvaluation }

func (h *Handler) Process(ctx context.Context, in base.Input) (*models.WorkerOutput, error) {
	outputs, err := h.reader.ListCompletedOutputs(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputRead, err)
	}

	summary, flags, insights := Aggregate(outputs)

	var insight string
	if len(summary.Scores) == 0 {
		insight = noDataInsight
	} else {
		insight = base.Insight(ctx, h.narrator, models.KindEvaluation, h.config.NarrativeBudget, h.buildRequest(summary, insights), func() string {
			return fallbackSummary(summary)
		}, h.logger)
	}

	h.logger.Info("evaluation aggregated", map[string]interface{}{
		"sessionId":      in.SessionID,
		"overallScore":   summary.OverallScore,
		"recommendation": summary.Recommendation,
		"outputCount":    summary.OutputCount,
	})

	return &models.WorkerOutput{
		Score:    models.Float(summary.OverallScore),
		Findings: base.ToFindings(summary),
		Flags:    flags,
		Insight:  &insight,
	}, nil
}

// Aggregate combines completed modality outputs. Absent modalities are left
// out of both numerator and denominator of the weighted mean.
func Aggregate(outputs []models.WorkerOutput) (Summary, []models.Flag, map[models.WorkerKind]string) {
	summary := Summary{
		Scores:     map[string]float64{},
		Strengths:  []string{},
		Weaknesses: []string{},
	}
	flags := []models.Flag{}
	insights := map[models.WorkerKind]string{}

	for _, out := range outputs {
		if out.WorkerKind == models.KindEvaluation || out.Status != models.StatusCompleted {
			continue
		}
		summary.OutputCount++

		for _, f := range out.Flags {
			f.Source = out.WorkerKind
			flags = append(flags, f)
		}
		if out.Score != nil {
			summary.Scores[out.WorkerKind.String()] = *out.Score
			insights[out.WorkerKind] = out.InsightText()
		}
	}

	var total, weightSum float64
	for kind, score := range summary.Scores {
		w := kindWeights[models.WorkerKind(kind)]
		total += score * w
		weightSum += w
	}
	if weightSum > 0 {
		summary.OverallScore = base.Round2(base.Clamp(total / weightSum))
	}

	t := tierFor(summary.OverallScore)
	summary.Recommendation = string(t.recommendation)
	summary.Confidence = t.confidence

	for _, kind := range models.ModalityKinds {
		score, ok := summary.Scores[kind.String()]
		if !ok {
			continue
		}
		switch {
		case score >= 80:
			summary.Strengths = append(summary.Strengths, fmt.Sprintf("Strong %s performance", kind))
		case score < 50:
			summary.Weaknesses = append(summary.Weaknesses, fmt.Sprintf("Weak %s performance", kind))
		}
	}

	SortFlags(flags)
	return summary, flags, insights
}

// SortFlags orders flags most severe first, keeping input order within a
// severity.
func SortFlags(flags []models.Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		return flags[i].Severity.Rank() < flags[j].Severity.Rank()
	})
}

// Evaluation turns a completed evaluation output into the Evaluation record.
func (h *Handler) Evaluation(out *models.WorkerOutput) (*models.Evaluation, error) {
	if out == nil || out.WorkerKind != models.KindEvaluation {
		return nil, ErrNotAnEvaluation
	}
	if !out.Completed() {
		msg := "unknown error"
		if out.ErrorMessage != nil {
			msg = *out.ErrorMessage
		}
		return nil, fmt.Errorf("%w: %s", ErrEvaluationFailed, msg)
	}

	var summary Summary
	if err := mapstructure.Decode(out.Findings, &summary); err != nil {
		return nil, fmt.Errorf("decode evaluation findings: %w", err)
	}

	eval := &models.Evaluation{
		ID:             uuid.NewString(),
		SessionID:      out.SessionID,
		OverallScore:   summary.OverallScore,
		Recommendation: models.Recommendation(summary.Recommendation),
		Confidence:     summary.Confidence,
		Strengths:      summary.Strengths,
		Weaknesses:     summary.Weaknesses,
		KeyFindings:    out.Flags,
		Summary:        out.InsightText(),
		EvaluatedAt:    out.CompletedAt,
		AgentVersion:   h.config.AgentVersion,
	}
	for kind, score := range summary.Scores {
		eval.SetScore(models.WorkerKind(kind), score)
	}
	if eval.Strengths == nil {
		eval.Strengths = []string{}
	}
	if eval.Weaknesses == nil {
		eval.Weaknesses = []string{}
	}
	return eval, nil
}

func (h *Handler) buildRequest(s Summary, insights map[models.WorkerKind]string) narrative.Request {
	var b strings.Builder
	b.WriteString("Summarize this candidate's technical interview performance for a hiring committee:\n\n")
	fmt.Fprintf(&b, "Overall score: %.1f/100\n", s.OverallScore)
	fmt.Fprintf(&b, "Recommendation: %s\n\n", strings.ToUpper(s.Recommendation))

	b.WriteString("Modality results:\n")
	for _, l := range scoreLabels {
		score, ok := s.Scores[l.kind.String()]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: %.1f/100", l.label, score)
		if text := insights[l.kind]; text != "" {
			fmt.Fprintf(&b, " (%s)", text)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nWrite a 3-4 sentence summary that justifies the recommendation.")

	return narrative.Request{
		Prompt:       b.String(),
		SystemPrompt: systemPrompt,
		Temperature:  h.config.Temperature,
		MaxTokens:    h.config.MaxTokens,
	}
}

func fallbackSummary(s Summary) string {
	parts := []string{fmt.Sprintf("Overall performance score: %.1f/100. Recommendation: %s.",
		s.OverallScore, strings.ToUpper(s.Recommendation))}

	for _, l := range scoreLabels {
		if score, ok := s.Scores[l.kind.String()]; ok {
			parts = append(parts, fmt.Sprintf("%s: %.1f/100.", l.label, score))
		}
	}

	parts = append(parts, tierFor(s.OverallScore).reasoning)
	return strings.Join(parts, " ")
}
