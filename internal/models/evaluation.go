package models

import "time"

// Recommendation is the final hiring decision.
type Recommendation string

const (
	RecommendHire   Recommendation = "hire"
	RecommendMaybe  Recommendation = "maybe"
	RecommendNoHire Recommendation = "no_hire"
)

// Evaluation is the single aggregated result for a session. It is written
// once and never mutated afterwards.
type Evaluation struct {
	ID              string         `json:"id" db:"id"`
	SessionID       string         `json:"sessionId" db:"session_id"`
	OverallScore    float64        `json:"overallScore" db:"overall_score"`
	CodingScore     *float64       `json:"codingScore,omitempty" db:"coding_score"`
	SpeechScore     *float64       `json:"communicationScore,omitempty" db:"communication_score"`
	EngagementScore *float64       `json:"engagementScore,omitempty" db:"engagement_score"`
	ReasoningScore  *float64       `json:"reasoningScore,omitempty" db:"reasoning_score"`
	Recommendation  Recommendation `json:"recommendation" db:"recommendation"`
	Confidence      float64        `json:"confidenceLevel" db:"confidence_level"`
	Strengths       []string       `json:"strengths" db:"strengths"`
	Weaknesses      []string       `json:"weaknesses" db:"weaknesses"`
	KeyFindings     []Flag         `json:"keyFindings" db:"key_findings"`
	Summary         string         `json:"summary" db:"summary"`
	EvaluatedAt     time.Time      `json:"evaluatedAt" db:"evaluated_at"`
	AgentVersion    string         `json:"evaluatedByAgentVersion,omitempty" db:"evaluated_by_agent_version"`
}

// SetScore records the per-modality score for kind.
func (e *Evaluation) SetScore(kind WorkerKind, score float64) {
	s := score
	switch kind {
	case KindCoding:
		e.CodingScore = &s
	case KindSpeech:
		e.SpeechScore = &s
	case KindEngagement:
		e.EngagementScore = &s
	case KindReasoning:
		e.ReasoningScore = &s
	}
}
