// Package store implements the pipeline's persistence contracts on
// PostgreSQL, Redis and Elasticsearch.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/models"

	"github.com/google/uuid"
)

var (
	ErrEvaluationExists = errors.New("EVALUATION_EXISTS")
	ErrNotFound         = errors.New("NOT_FOUND")
)

const (
	listCodingEventsQuery = `SELECT id, session_id, timestamp, event_type, code_snapshot, language, execution_output, execution_error, execution_time_ms
FROM coding_events WHERE session_id = $1 ORDER BY timestamp ASC`

	listSpeechSegmentsQuery = `SELECT id, session_id, start_time, end_time, COALESCE(duration, 0), transcript, COALESCE(language, ''), confidence, speaker_id
FROM speech_segments WHERE session_id = $1 ORDER BY start_time ASC`

	listVisionSamplesQuery = `SELECT id, session_id, timestamp, metric_type, value, label, confidence
FROM vision_metrics WHERE session_id = $1 ORDER BY timestamp ASC`

	upsertWorkerOutputQuery = `INSERT INTO worker_outputs
(id, session_id, worker_kind, score, findings, flags, insight, started_at, completed_at, status, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (session_id, worker_kind) DO UPDATE SET
id = EXCLUDED.id, score = EXCLUDED.score, findings = EXCLUDED.findings, flags = EXCLUDED.flags, insight = EXCLUDED.insight,
started_at = EXCLUDED.started_at, completed_at = EXCLUDED.completed_at, status = EXCLUDED.status,
error_message = EXCLUDED.error_message`

	listCompletedOutputsQuery = `SELECT id, session_id, worker_kind, score, findings, flags, insight, started_at, completed_at, status, error_message
FROM worker_outputs WHERE session_id = $1 AND status = 'completed' ORDER BY completed_at ASC`

	insertEvaluationQuery = `INSERT INTO evaluations
(id, session_id, overall_score, coding_score, communication_score, engagement_score, reasoning_score,
recommendation, confidence_level, strengths, weaknesses, key_findings, summary, evaluated_at, evaluated_by_agent_version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (session_id) DO NOTHING`

	evaluationExistsQuery = `SELECT EXISTS(SELECT 1 FROM evaluations WHERE session_id = $1)`

	getEvaluationQuery = `SELECT id, session_id, overall_score, coding_score, communication_score, engagement_score, reasoning_score,
recommendation, confidence_level, strengths, weaknesses, key_findings, summary, evaluated_at, COALESCE(evaluated_by_agent_version, '')
FROM evaluations WHERE session_id = $1`
)

// PostgresStore reads session telemetry and persists worker outputs and
// evaluations. JSON columns are written as text so lib/pq sends them as
// jsonb literals.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "postgres-store"}),
	}
}

func (s *PostgresStore) ListCodingEvents(ctx context.Context, sessionID string) ([]models.CodingEvent, error) {
	rows, err := s.db.QueryContext(ctx, listCodingEventsQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query coding events: %w", err)
	}
	defer rows.Close()

	events := []models.CodingEvent{}
	for rows.Next() {
		var e models.CodingEvent
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.EventType, &e.CodeSnapshot,
			&e.Language, &e.ExecutionOutput, &e.ExecutionError, &e.ExecutionTimeMs); err != nil {
			return nil, fmt.Errorf("scan coding event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) ListSpeechSegments(ctx context.Context, sessionID string) ([]models.SpeechSegment, error) {
	rows, err := s.db.QueryContext(ctx, listSpeechSegmentsQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query speech segments: %w", err)
	}
	defer rows.Close()

	segments := []models.SpeechSegment{}
	for rows.Next() {
		var seg models.SpeechSegment
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.StartTime, &seg.EndTime, &seg.Duration,
			&seg.Transcript, &seg.Language, &seg.Confidence, &seg.SpeakerID); err != nil {
			return nil, fmt.Errorf("scan speech segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

func (s *PostgresStore) ListVisionSamples(ctx context.Context, sessionID string) ([]models.VisionSample, error) {
	rows, err := s.db.QueryContext(ctx, listVisionSamplesQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query vision samples: %w", err)
	}
	defer rows.Close()

	samples := []models.VisionSample{}
	for rows.Next() {
		var v models.VisionSample
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Timestamp, &v.MetricType, &v.Value, &v.Label, &v.Confidence); err != nil {
			return nil, fmt.Errorf("scan vision sample: %w", err)
		}
		samples = append(samples, v)
	}
	return samples, rows.Err()
}

// SaveWorkerOutput upserts on (session_id, worker_kind) so redelivery
// replaces the earlier row.
func (s *PostgresStore) SaveWorkerOutput(ctx context.Context, out *models.WorkerOutput) error {
	if out.ID == "" {
		out.ID = uuid.NewString()
	}

	findings, err := toJSON(out.Findings, "{}")
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	flags, err := toJSON(out.Flags, "[]")
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, upsertWorkerOutputQuery,
		out.ID, out.SessionID, string(out.WorkerKind), out.Score, findings, flags, out.Insight,
		out.StartedAt, out.CompletedAt, string(out.Status), out.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("upsert worker output: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCompletedOutputs(ctx context.Context, sessionID string) ([]models.WorkerOutput, error) {
	rows, err := s.db.QueryContext(ctx, listCompletedOutputsQuery, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query worker outputs: %w", err)
	}
	defer rows.Close()

	outputs := []models.WorkerOutput{}
	for rows.Next() {
		var (
			out            models.WorkerOutput
			kind, status   string
			findings, flag []byte
		)
		if err := rows.Scan(&out.ID, &out.SessionID, &kind, &out.Score, &findings, &flag, &out.Insight,
			&out.StartedAt, &out.CompletedAt, &status, &out.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan worker output: %w", err)
		}
		out.WorkerKind = models.WorkerKind(kind)
		out.Status = models.OutputStatus(status)
		if err := fromJSON(findings, &out.Findings); err != nil {
			return nil, fmt.Errorf("decode findings for %s: %w", kind, err)
		}
		if err := fromJSON(flag, &out.Flags); err != nil {
			return nil, fmt.Errorf("decode flags for %s: %w", kind, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}

// SaveEvaluation inserts the evaluation once. A second insert for the same
// session returns ErrEvaluationExists and leaves the first row untouched.
func (s *PostgresStore) SaveEvaluation(ctx context.Context, eval *models.Evaluation) error {
	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}

	strengths, err := toJSON(eval.Strengths, "[]")
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	weaknesses, err := toJSON(eval.Weaknesses, "[]")
	if err != nil {
		return fmt.Errorf("marshal weaknesses: %w", err)
	}
	findings, err := toJSON(eval.KeyFindings, "[]")
	if err != nil {
		return fmt.Errorf("marshal key findings: %w", err)
	}

	res, err := s.db.ExecContext(ctx, insertEvaluationQuery,
		eval.ID, eval.SessionID, eval.OverallScore,
		eval.CodingScore, eval.SpeechScore, eval.EngagementScore, eval.ReasoningScore,
		string(eval.Recommendation), eval.Confidence, strengths, weaknesses, findings,
		eval.Summary, eval.EvaluatedAt, eval.AgentVersion,
	)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	if affected == 0 {
		return ErrEvaluationExists
	}
	return nil
}

func (s *PostgresStore) EvaluationExists(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, evaluationExistsQuery, sessionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check evaluation: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	var (
		eval                                models.Evaluation
		recommendation                      string
		strengths, weaknesses, keyFindings []byte
	)
	err := s.db.QueryRowContext(ctx, getEvaluationQuery, sessionID).Scan(
		&eval.ID, &eval.SessionID, &eval.OverallScore,
		&eval.CodingScore, &eval.SpeechScore, &eval.EngagementScore, &eval.ReasoningScore,
		&recommendation, &eval.Confidence, &strengths, &weaknesses, &keyFindings,
		&eval.Summary, &eval.EvaluatedAt, &eval.AgentVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}

	eval.Recommendation = models.Recommendation(recommendation)
	for _, col := range []struct {
		raw  []byte
		dest interface{}
	}{
		{strengths, &eval.Strengths},
		{weaknesses, &eval.Weaknesses},
		{keyFindings, &eval.KeyFindings},
	} {
		if err := fromJSON(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("decode evaluation: %w", err)
		}
	}
	return &eval, nil
}

func toJSON(v interface{}, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

func fromJSON(data []byte, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
