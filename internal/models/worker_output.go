package models

import "time"

// WorkerKind identifies a scoring worker. Values are stable and used as
// storage keys and aggregation weights.
type WorkerKind string

const (
	KindCoding     WorkerKind = "coding"
	KindSpeech     WorkerKind = "speech"
	KindEngagement WorkerKind = "engagement"
	KindReasoning  WorkerKind = "reasoning"
	KindEvaluation WorkerKind = "evaluation"
)

// ModalityKinds lists the workers fanned out before aggregation.
var ModalityKinds = []WorkerKind{KindCoding, KindSpeech, KindEngagement, KindReasoning}

func (k WorkerKind) String() string { return string(k) }

// Severity of a flag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities most-severe first. Unknown values sort with low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	default:
		return 3
	}
}

// Flag is a severity-tagged observation about a concerning pattern.
type Flag struct {
	Type     string     `json:"type"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Source   WorkerKind `json:"source,omitempty"`
}

// OutputStatus is the terminal state of a worker run.
type OutputStatus string

const (
	StatusCompleted OutputStatus = "completed"
	StatusFailed    OutputStatus = "failed"
)

// WorkerOutput is the persisted result of one worker run for one session.
// Score is nil for failed runs and otherwise lies in [0,100].
type WorkerOutput struct {
	ID           string                 `json:"id" db:"id"`
	WorkerKind   WorkerKind             `json:"workerKind" db:"worker_kind"`
	SessionID    string                 `json:"sessionId" db:"session_id"`
	Score        *float64               `json:"score,omitempty" db:"score"`
	Findings     map[string]interface{} `json:"findings" db:"findings"`
	Flags        []Flag                 `json:"flags" db:"flags"`
	Insight      *string                `json:"insight,omitempty" db:"insight"`
	StartedAt    time.Time              `json:"startedAt" db:"started_at"`
	CompletedAt  time.Time              `json:"completedAt" db:"completed_at"`
	Status       OutputStatus           `json:"status" db:"status"`
	ErrorMessage *string                `json:"errorMessage,omitempty" db:"error_message"`
}

// Completed reports whether the run finished successfully.
func (o *WorkerOutput) Completed() bool {
	return o != nil && o.Status == StatusCompleted
}

// InsightText returns the insight or an empty string.
func (o *WorkerOutput) InsightText() string {
	if o == nil || o.Insight == nil {
		return ""
	}
	return *o.Insight
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
