package models

import "time"

// Coding event kinds recorded by the editor/sandbox bridge.
const (
	CodingEventKeystroke = "keystroke"
	CodingEventExecute   = "execute"
	CodingEventPaste     = "paste"
	CodingEventSnapshot  = "snapshot"
)

// Vision sample kinds.
const (
	VisionGaze     = "gaze"
	VisionEmotion  = "emotion"
	VisionPresence = "presence"
)

// CodingEvent is one editor or execution event captured during a session.
type CodingEvent struct {
	ID              string    `json:"id" db:"id"`
	SessionID       string    `json:"sessionId" db:"session_id"`
	Timestamp       time.Time `json:"timestamp" db:"timestamp"`
	EventType       string    `json:"eventType" db:"event_type"`
	CodeSnapshot    *string   `json:"codeSnapshot,omitempty" db:"code_snapshot"`
	Language        *string   `json:"language,omitempty" db:"language"`
	ExecutionOutput *string   `json:"executionOutput,omitempty" db:"execution_output"`
	ExecutionError  *string   `json:"executionError,omitempty" db:"execution_error"`
	ExecutionTimeMs *int      `json:"executionTimeMs,omitempty" db:"execution_time_ms"`
}

// IsExecute reports whether the event is a code execution.
func (e CodingEvent) IsExecute() bool {
	return e.EventType == CodingEventExecute
}

// Succeeded reports whether an execute event finished without error text.
func (e CodingEvent) Succeeded() bool {
	return e.IsExecute() && (e.ExecutionError == nil || *e.ExecutionError == "")
}

// Snapshot returns the code snapshot or an empty string.
func (e CodingEvent) Snapshot() string {
	if e.CodeSnapshot == nil {
		return ""
	}
	return *e.CodeSnapshot
}

// SpeechSegment is one transcribed utterance.
type SpeechSegment struct {
	ID         string   `json:"id" db:"id"`
	SessionID  string   `json:"sessionId" db:"session_id"`
	StartTime  float64  `json:"startTime" db:"start_time"`
	EndTime    float64  `json:"endTime" db:"end_time"`
	Duration   float64  `json:"duration" db:"duration"`
	Transcript string   `json:"transcript" db:"transcript"`
	Language   string   `json:"language,omitempty" db:"language"`
	Confidence *float64 `json:"confidence,omitempty" db:"confidence"`
	SpeakerID  *string  `json:"speakerId,omitempty" db:"speaker_id"`
}

// Length returns the segment duration in seconds, derived from the time
// bounds when no explicit duration was recorded.
func (s SpeechSegment) Length() float64 {
	if s.Duration > 0 {
		return s.Duration
	}
	if d := s.EndTime - s.StartTime; d > 0 {
		return d
	}
	return 0
}

// VisionSample is a single gaze, emotion or presence observation.
type VisionSample struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"sessionId" db:"session_id"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	MetricType string    `json:"metricType" db:"metric_type"`
	Value      *float64  `json:"value,omitempty" db:"value"`
	Label      *string   `json:"label,omitempty" db:"label"`
	Confidence *float64  `json:"confidence,omitempty" db:"confidence"`
}

// LabelValue returns the categorical label or an empty string.
func (v VisionSample) LabelValue() string {
	if v.Label == nil {
		return ""
	}
	return *v.Label
}
