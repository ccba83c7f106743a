package coding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/narrative"
	"interview-evaluator/internal/workers/base"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockReader struct {
	mock.Mock
}

func (m *MockReader) ListCodingEvents(ctx context.Context, sessionID string) ([]models.CodingEvent, error) {
	args := m.Called(ctx, sessionID)
	events, _ := args.Get(0).([]models.CodingEvent)
	return events, args.Error(1)
}

type MockNarrator struct {
	mock.Mock
}

func (m *MockNarrator) Generate(ctx context.Context, req narrative.Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// ==========================
// Helpers
// ==========================

const sampleSolution = "def solve(nums):\n    seen = set()\n\n    for n in nums:\n        seen.add(n)\n    return len(seen)\n"

func execute(errText string) models.CodingEvent {
	e := models.CodingEvent{EventType: models.CodingEventExecute}
	if errText != "" {
		e.ExecutionError = models.String(errText)
	}
	return e
}

func snapshot(code string) models.CodingEvent {
	return models.CodingEvent{EventType: models.CodingEventSnapshot, CodeSnapshot: models.String(code)}
}

func keystrokes(n int) []models.CodingEvent {
	events := make([]models.CodingEvent, n)
	for i := range events {
		events[i] = models.CodingEvent{EventType: models.CodingEventKeystroke}
	}
	return events
}

func fourOfFive() []models.CodingEvent {
	return []models.CodingEvent{
		execute(""), execute(""), execute("NameError: x"), execute(""), execute(""),
	}
}

func newTestHandler(t *testing.T, reader EventReader, narrator base.Narrator) *Handler {
	return NewHandler(LoadConfig(), reader, narrator, logger.NewTestLogger(t))
}

// ==========================
// Tests
// ==========================

func TestProcess_NoEvents(t *testing.T) {
	reader := &MockReader{}
	reader.On("ListCodingEvents", mock.Anything, "session-1").Return([]models.CodingEvent{}, nil)
	narrator := &MockNarrator{}

	out := base.Run(context.Background(), newTestHandler(t, reader, narrator), base.Input{SessionID: "session-1"}, logger.NewNoOpLogger())

	require.Equal(t, models.StatusCompleted, out.Status)
	assert.Equal(t, 0.0, *out.Score)
	assert.Equal(t, "No coding activity detected", out.InsightText())
	assert.Empty(t, out.Flags)
	narrator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestProcess_ExecutionSuccessRate(t *testing.T) {
	reader := &MockReader{}
	reader.On("ListCodingEvents", mock.Anything, "session-1").Return(fourOfFive(), nil)
	narrator := &MockNarrator{}
	narrator.On("Generate", mock.Anything, mock.Anything).Return("Solid execution discipline.", nil)

	out := base.Run(context.Background(), newTestHandler(t, reader, narrator), base.Input{SessionID: "session-1"}, logger.NewNoOpLogger())

	require.Equal(t, models.StatusCompleted, out.Status)
	assert.Equal(t, 80.0, out.Findings["execution_success_rate"])
	assert.Equal(t, 5, out.Findings["execution_count"])
	assert.Equal(t, "Solid execution discipline.", out.InsightText())

	var types []string
	for _, f := range out.Flags {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{"minimal_activity"}, types)
}

func TestProcess_PromptAndRequestSettings(t *testing.T) {
	reader := &MockReader{}
	reader.On("ListCodingEvents", mock.Anything, "session-1").Return(fourOfFive(), nil)
	narrator := &MockNarrator{}
	narrator.On("Generate", mock.Anything, mock.MatchedBy(func(req narrative.Request) bool {
		return req.SystemPrompt == systemPrompt &&
			req.Temperature == 0.3 &&
			req.MaxTokens == 200 &&
			strings.Contains(req.Prompt, "Execution success rate: 80.0%") &&
			strings.Contains(req.Prompt, "- Minimal coding activity detected")
	})).Return("ok", nil)

	_, err := newTestHandler(t, reader, narrator).Process(context.Background(), base.Input{SessionID: "session-1"})

	require.NoError(t, err)
	narrator.AssertExpectations(t)
}

func TestProcess_NarrativeFailureFallsBack(t *testing.T) {
	reader := &MockReader{}
	reader.On("ListCodingEvents", mock.Anything, "session-1").Return(fourOfFive(), nil)
	narrator := &MockNarrator{}
	narrator.On("Generate", mock.Anything, mock.Anything).Return("", narrative.ErrProvidersExhausted)

	out, err := newTestHandler(t, reader, narrator).Process(context.Background(), base.Input{SessionID: "session-1"})

	require.NoError(t, err)
	assert.Equal(t, "Moderate code execution success rate.", out.InsightText())
}

func TestProcess_ReaderError(t *testing.T) {
	reader := &MockReader{}
	reader.On("ListCodingEvents", mock.Anything, "session-1").Return(nil, errors.New("connection refused"))

	out := base.Run(context.Background(), newTestHandler(t, reader, nil), base.Input{SessionID: "session-1"}, logger.NewNoOpLogger())

	assert.Equal(t, models.StatusFailed, out.Status)
	assert.Nil(t, out.Score)
	assert.Contains(t, *out.ErrorMessage, "CODING_TELEMETRY_READ_FAILED")
}

func TestAnalyze(t *testing.T) {
	events := append([]models.CodingEvent{snapshot(sampleSolution)}, fourOfFive()...)

	m := Analyze(events)

	assert.Equal(t, 6, m.TotalEvents)
	assert.Equal(t, 1, m.SnapshotCount)
	assert.InDelta(t, 80.0, m.ExecutionSuccessRate, 1e-9)
	// 50 base +10 lines +15 definition +5 blank ratio +16 success
	assert.InDelta(t, 96.0, m.CodeQuality, 1e-9)
	// 50 base +10 executes in range +15 any success +10 three successes
	assert.InDelta(t, 85.0, m.ProblemSolving, 1e-9)
	assert.InDelta(t, 50.0, m.Efficiency, 1e-9)
	assert.InDelta(t, 79.8, base.WeightedScore(m.scores(), weights), 1e-9)
}

func TestAnalyze_Efficiency(t *testing.T) {
	tests := []struct {
		name   string
		events []models.CodingEvent
		want   float64
	}{
		{
			name:   "no executes is below the band",
			events: keystrokes(5),
			want:   55,
		},
		{
			name:   "execute ratio inside band with busy session",
			events: append(keystrokes(25), execute(""), execute(""), execute(""), execute(""), execute(""), execute(""), execute("")),
			want:   90,
		},
		{
			name:   "all executes",
			events: fourOfFive(),
			want:   50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Analyze(tt.events).Efficiency, 1e-9)
		})
	}
}

func TestAnalyze_UsesLatestSnapshot(t *testing.T) {
	events := []models.CodingEvent{
		snapshot(sampleSolution),
		snapshot("x = 1"),
		snapshot("   "),
	}

	m := Analyze(events)

	assert.Equal(t, 2, m.SnapshotCount)
	assert.InDelta(t, 50.0, m.CodeQuality, 1e-9)
}

func TestExtractFlags(t *testing.T) {
	flags := extractFlags(Metrics{TotalEvents: 3, ExecutionSuccessRate: 20})

	require.Len(t, flags, 2)
	assert.Equal(t, "low_execution_success", flags[0].Type)
	assert.Equal(t, models.SeverityHigh, flags[0].Severity)
	assert.Equal(t, "minimal_activity", flags[1].Type)
	assert.Equal(t, models.SeverityMedium, flags[1].Severity)
}

func TestFallbackInsight(t *testing.T) {
	tests := []struct {
		metrics Metrics
		want    string
	}{
		{Metrics{ExecutionSuccessRate: 90, CodeQuality: 85}, "Strong code execution success rate. High code quality observed."},
		{Metrics{ExecutionSuccessRate: 60, CodeQuality: 70}, "Moderate code execution success rate."},
		{Metrics{ExecutionSuccessRate: 50}, "Low code execution success - may need more practice."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fallbackInsight(tt.metrics))
	}
}
