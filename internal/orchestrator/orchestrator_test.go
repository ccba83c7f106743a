package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/events"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/store"
	"interview-evaluator/internal/workers/base"
	"interview-evaluator/internal/workers/evaluation/aggregate"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memStore keeps outputs and evaluations in memory with the same
// uniqueness rules as the Postgres tables.
type memStore struct {
	mu          sync.Mutex
	outputs     map[string]map[models.WorkerKind]models.WorkerOutput
	evaluations map[string]*models.Evaluation
	failWrites  map[models.WorkerKind]bool
}

func newMemStore() *memStore {
	return &memStore{
		outputs:     map[string]map[models.WorkerKind]models.WorkerOutput{},
		evaluations: map[string]*models.Evaluation{},
		failWrites:  map[models.WorkerKind]bool{},
	}
}

func (s *memStore) SaveWorkerOutput(_ context.Context, out *models.WorkerOutput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites[out.WorkerKind] {
		return errors.New("disk full")
	}
	if s.outputs[out.SessionID] == nil {
		s.outputs[out.SessionID] = map[models.WorkerKind]models.WorkerOutput{}
	}
	s.outputs[out.SessionID][out.WorkerKind] = *out
	return nil
}

func (s *memStore) ListCompletedOutputs(_ context.Context, sessionID string) ([]models.WorkerOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var outs []models.WorkerOutput
	for _, out := range s.outputs[sessionID] {
		if out.Status == models.StatusCompleted {
			outs = append(outs, out)
		}
	}
	return outs, nil
}

func (s *memStore) SaveEvaluation(_ context.Context, eval *models.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evaluations[eval.SessionID]; ok {
		return store.ErrEvaluationExists
	}
	s.evaluations[eval.SessionID] = eval
	return nil
}

func (s *memStore) EvaluationExists(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.evaluations[sessionID]
	return ok, nil
}

func (s *memStore) output(kind models.WorkerKind) (models.WorkerOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs["session-1"][kind]
	return out, ok
}

func (s *memStore) evaluation(sessionID string) *models.Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluations[sessionID]
}

type stubWorker struct {
	kind   models.WorkerKind
	score  float64
	err    error
	panics bool
	delay  time.Duration
	calls  atomic.Int32
}

func (w *stubWorker) Name() models.WorkerKind { return w.kind }

func (w *stubWorker) Process(ctx context.Context, _ base.Input) (*models.WorkerOutput, error) {
	w.calls.Add(1)
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w.panics {
		var m map[string]int
		m["boom"]++
	}
	if w.err != nil {
		return nil, w.err
	}
	return &models.WorkerOutput{Score: models.Float(w.score)}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t events.Type) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) Index(ctx context.Context, eval *models.Evaluation) error {
	return m.Called(ctx, eval).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishEvaluationCompleted(ctx context.Context, sessionID string, variables map[string]interface{}) error {
	return m.Called(ctx, sessionID, variables).Error(0)
}

type fixture struct {
	orch      *Orchestrator
	store     *memStore
	publisher *recordingPublisher
	redis     *miniredis.Miniredis
}

func healthyWorkers() []base.Worker {
	return []base.Worker{
		&stubWorker{kind: models.KindCoding, score: 90},
		&stubWorker{kind: models.KindSpeech, score: 80},
		&stubWorker{kind: models.KindEngagement, score: 70},
		&stubWorker{kind: models.KindReasoning, score: 85},
	}
}

func newFixture(t *testing.T, cfg *Config, workers []base.Worker, deps Dependencies) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	registry, err := NewRegistry(workers...)
	require.NoError(t, err)

	st := newMemStore()
	pub := &recordingPublisher{}

	deps.Store = st
	deps.Aggregator = aggregate.NewHandler(aggregate.LoadConfig(), st, nil, logger.NewNoOpLogger())
	deps.Guard = store.NewRunGuard(client, cfg.HardTimeout)
	deps.Events = pub

	orch, err := New(cfg, registry, deps, logger.NewTestLogger(t))
	require.NoError(t, err)

	return &fixture{orch: orch, store: st, publisher: pub, redis: mr}
}

func TestRunPipeline_AllWorkersSucceed(t *testing.T) {
	indexer := &MockIndexer{}
	indexer.On("Index", mock.Anything, mock.MatchedBy(func(e *models.Evaluation) bool {
		return e.SessionID == "session-1"
	})).Return(nil)
	notifier := &MockNotifier{}
	notifier.On("PublishEvaluationCompleted", mock.Anything, "session-1", mock.MatchedBy(func(v map[string]interface{}) bool {
		return v["recommendation"] == "hire"
	})).Return(nil)

	f := newFixture(t, LoadConfig(), healthyWorkers(), Dependencies{Index: indexer, Notifier: notifier})

	eval, err := f.orch.RunPipeline(context.Background(), "session-1")

	require.NoError(t, err)
	assert.InDelta(t, 83.5, eval.OverallScore, 1e-9)
	assert.Equal(t, models.RecommendHire, eval.Recommendation)
	assert.Same(t, eval, f.store.evaluation("session-1"))

	for _, kind := range models.ModalityKinds {
		out, ok := f.store.output(kind)
		require.True(t, ok, "missing output for %s", kind)
		assert.Equal(t, models.StatusCompleted, out.Status)
	}
	agg, ok := f.store.output(models.KindEvaluation)
	require.True(t, ok)
	assert.Equal(t, 83.5, *agg.Score)

	assert.Equal(t, 4, f.publisher.count(events.AgentProcessingStarted))
	assert.Equal(t, 4, f.publisher.count(events.AgentProcessingCompleted))
	assert.Equal(t, 1, f.publisher.count(events.EvaluationCompleted))
	assert.False(t, f.redis.Exists("pipeline:running:session-1"), "guard must be released")

	indexer.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRunPipeline_WorkerFailuresDoNotFailPipeline(t *testing.T) {
	workers := []base.Worker{
		&stubWorker{kind: models.KindCoding, score: 40},
		&stubWorker{kind: models.KindSpeech, err: errors.New("transcript store unavailable")},
		&stubWorker{kind: models.KindEngagement, panics: true},
		&stubWorker{kind: models.KindReasoning, score: 60},
	}
	f := newFixture(t, LoadConfig(), workers, Dependencies{})

	eval, err := f.orch.RunPipeline(context.Background(), "session-1")

	require.NoError(t, err)
	assert.InDelta(t, 49.23, eval.OverallScore, 1e-9)
	assert.Nil(t, eval.SpeechScore)
	assert.Nil(t, eval.EngagementScore)

	speech, _ := f.store.output(models.KindSpeech)
	assert.Equal(t, models.StatusFailed, speech.Status)
	assert.Nil(t, speech.Score)
	assert.Contains(t, *speech.ErrorMessage, "transcript store unavailable")

	engagement, _ := f.store.output(models.KindEngagement)
	assert.Equal(t, models.StatusFailed, engagement.Status)
	assert.Contains(t, *engagement.ErrorMessage, "panic")

	assert.Equal(t, 2, f.publisher.count(events.AgentProcessingFailed))
	assert.Equal(t, 2, f.publisher.count(events.AgentProcessingCompleted))
}

func TestRunPipeline_OutputWriteFailureIsContained(t *testing.T) {
	f := newFixture(t, LoadConfig(), healthyWorkers(), Dependencies{})
	f.store.failWrites[models.KindCoding] = true

	eval, err := f.orch.RunPipeline(context.Background(), "session-1")

	require.NoError(t, err)
	assert.Nil(t, eval.CodingScore)
	assert.InDelta(t, 80.0, eval.OverallScore, 1e-9)
}

func TestRunPipeline_NoWorkerData(t *testing.T) {
	workers := []base.Worker{
		&stubWorker{kind: models.KindCoding, err: errors.New("a")},
		&stubWorker{kind: models.KindSpeech, err: errors.New("b")},
	}
	f := newFixture(t, LoadConfig(), workers, Dependencies{})

	eval, err := f.orch.RunPipeline(context.Background(), "session-1")

	require.NoError(t, err)
	assert.Equal(t, 0.0, eval.OverallScore)
	assert.Equal(t, models.RecommendNoHire, eval.Recommendation)
	assert.Equal(t, "No worker data available for evaluation", eval.Summary)
}

func TestRunPipeline_GuardHeld(t *testing.T) {
	f := newFixture(t, LoadConfig(), healthyWorkers(), Dependencies{})
	require.NoError(t, f.redis.Set("pipeline:running:session-1", "someone-else"))

	_, err := f.orch.RunPipeline(context.Background(), "session-1")

	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Nil(t, f.store.evaluation("session-1"))
	_, ran := f.store.output(models.KindCoding)
	assert.False(t, ran)
}

func TestRunPipeline_SecondRunIsNoOp(t *testing.T) {
	indexer := &MockIndexer{}
	indexer.On("Index", mock.Anything, mock.Anything).Return(nil).Once()
	coding := &stubWorker{kind: models.KindCoding, score: 90}
	workers := []base.Worker{
		coding,
		&stubWorker{kind: models.KindSpeech, score: 80},
		&stubWorker{kind: models.KindEngagement, score: 70},
		&stubWorker{kind: models.KindReasoning, score: 85},
	}
	f := newFixture(t, LoadConfig(), workers, Dependencies{Index: indexer})

	first, err := f.orch.RunPipeline(context.Background(), "session-1")
	require.NoError(t, err)
	codingBefore, _ := f.store.output(models.KindCoding)
	evalBefore, _ := f.store.output(models.KindEvaluation)

	coding.score = 10
	_, err = f.orch.RunPipeline(context.Background(), "session-1")

	assert.ErrorIs(t, err, ErrAlreadyEvaluated)
	assert.Same(t, first, f.store.evaluation("session-1"))
	indexer.AssertNumberOfCalls(t, "Index", 1)
	assert.Equal(t, int32(1), coding.calls.Load())

	codingAfter, _ := f.store.output(models.KindCoding)
	evalAfter, _ := f.store.output(models.KindEvaluation)
	assert.Equal(t, codingBefore, codingAfter)
	assert.Equal(t, evalBefore, evalAfter)
	assert.Equal(t, 90.0, *codingAfter.Score)
}

func TestRunPipeline_IndexAndNotifyFailuresAreBestEffort(t *testing.T) {
	indexer := &MockIndexer{}
	indexer.On("Index", mock.Anything, mock.Anything).Return(errors.New("cluster red"))
	notifier := &MockNotifier{}
	notifier.On("PublishEvaluationCompleted", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gateway down"))

	f := newFixture(t, LoadConfig(), healthyWorkers(), Dependencies{Index: indexer, Notifier: notifier})

	eval, err := f.orch.RunPipeline(context.Background(), "session-1")

	require.NoError(t, err)
	assert.NotNil(t, eval)
	assert.NotNil(t, f.store.evaluation("session-1"))
}

func TestRunPipeline_SoftTimeoutHook(t *testing.T) {
	var (
		mu     sync.Mutex
		called []string
	)
	cfg := LoadConfig()
	cfg.SoftTimeout = 10 * time.Millisecond
	cfg.OnSoftTimeout = func(sessionID string) {
		mu.Lock()
		defer mu.Unlock()
		called = append(called, sessionID)
	}

	workers := healthyWorkers()
	workers[0] = &stubWorker{kind: models.KindCoding, score: 90, delay: 60 * time.Millisecond}
	f := newFixture(t, cfg, workers, Dependencies{})

	eval, err := f.orch.RunPipeline(context.Background(), "session-1")

	require.NoError(t, err, "soft limit only warns")
	assert.NotNil(t, eval)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"session-1"}, called)
}

func TestRunPipeline_HardTimeout(t *testing.T) {
	cfg := LoadConfig()
	cfg.HardTimeout = 30 * time.Millisecond
	cfg.SoftTimeout = 20 * time.Millisecond

	workers := healthyWorkers()
	workers[1] = &stubWorker{kind: models.KindSpeech, score: 80, delay: time.Minute}
	f := newFixture(t, cfg, workers, Dependencies{})

	_, err := f.orch.RunPipeline(context.Background(), "session-1")

	assert.ErrorIs(t, err, ErrPipelineTimeout)
	assert.Nil(t, f.store.evaluation("session-1"))

	speech, ok := f.store.output(models.KindSpeech)
	require.True(t, ok, "timed-out worker output is still recorded")
	assert.Equal(t, models.StatusFailed, speech.Status)
	assert.False(t, f.redis.Exists("pipeline:running:session-1"))
}

func TestTrigger(t *testing.T) {
	cfg := LoadConfig()
	cfg.QueueSize = 1
	f := newFixture(t, cfg, healthyWorkers(), Dependencies{})
	ctx := context.Background()

	assert.ErrorIs(t, f.orch.Trigger(ctx, "  "), ErrInvalidSession)

	require.NoError(t, f.orch.Trigger(ctx, "session-1"))
	assert.Equal(t, 1, f.publisher.count(events.EvaluationRequested))

	err := f.orch.Trigger(ctx, "session-2")
	assert.ErrorIs(t, err, ErrDispatchFailed, "queue is full until dispatchers run")

	f.store.evaluations["session-3"] = &models.Evaluation{SessionID: "session-3"}
	assert.ErrorIs(t, f.orch.Trigger(ctx, "session-3"), ErrAlreadyEvaluated)
}

func TestStartStop_DrainsQueue(t *testing.T) {
	cfg := LoadConfig()
	cfg.Concurrency = 2
	f := newFixture(t, cfg, healthyWorkers(), Dependencies{})
	ctx := context.Background()

	require.NoError(t, f.orch.Trigger(ctx, "session-1"))
	require.NoError(t, f.orch.Trigger(ctx, "session-2"))

	f.orch.Start(ctx)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.orch.Stop(stopCtx))

	assert.NotNil(t, f.store.evaluation("session-1"))
	assert.NotNil(t, f.store.evaluation("session-2"))

	err := f.orch.Trigger(ctx, "session-4")
	assert.ErrorIs(t, err, ErrDispatchFailed)
}

func TestNew_RequiresStoreAndAggregator(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	_, err = New(LoadConfig(), registry, Dependencies{}, logger.NewNoOpLogger())
	assert.Error(t, err)
}
