// Package orchestrator runs the evaluation pipeline for a session: fan out
// the modality workers, wait for all of them, then aggregate once.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"interview-evaluator/internal/common/logger"
	"interview-evaluator/internal/common/metrics"
	"interview-evaluator/internal/common/observability"
	"interview-evaluator/internal/events"
	"interview-evaluator/internal/models"
	"interview-evaluator/internal/store"
	"interview-evaluator/internal/workers/base"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidSession   = errors.New("INVALID_SESSION")
	ErrDispatchFailed   = errors.New("DISPATCH_FAILED")
	ErrAlreadyEvaluated = errors.New("ALREADY_EVALUATED")
	ErrAlreadyRunning   = errors.New("PIPELINE_RUNNING")
	ErrPipelineTimeout  = errors.New("PIPELINE_TIMEOUT")
	ErrAggregation      = errors.New("AGGREGATION_FAILED")
)

const (
	outcomeCompleted         = "completed"
	outcomeAlreadyEvaluated  = "already_evaluated"
	outcomeAlreadyRunning    = "already_running"
	outcomeTimeout           = "timeout"
	outcomeAggregationFailed = "aggregation_failed"
	outcomePersistFailed     = "persist_failed"
	outcomeCancelled         = "cancelled"
)

// Store persists worker outputs and the final evaluation.
type Store interface {
	SaveWorkerOutput(ctx context.Context, out *models.WorkerOutput) error
	SaveEvaluation(ctx context.Context, eval *models.Evaluation) error
	EvaluationExists(ctx context.Context, sessionID string) (bool, error)
}

// Aggregator is the evaluation worker plus the conversion of its output
// into the Evaluation record.
type Aggregator interface {
	base.Worker
	Evaluation(out *models.WorkerOutput) (*models.Evaluation, error)
}

type Indexer interface {
	Index(ctx context.Context, eval *models.Evaluation) error
}

// Notifier tells the calling process that a session has been evaluated.
type Notifier interface {
	PublishEvaluationCompleted(ctx context.Context, sessionID string, variables map[string]interface{}) error
}

// Dependencies are the collaborators of an Orchestrator. Store and
// Aggregator are required; the rest may be nil.
type Dependencies struct {
	Store         Store
	Aggregator    Aggregator
	Guard         *store.RunGuard
	Index         Indexer
	Notifier      Notifier
	Events        events.Publisher
	Observability *observability.Observability
}

type job struct {
	sessionID  string
	enqueuedAt time.Time
}

type Orchestrator struct {
	config   *Config
	registry *Registry
	deps     Dependencies
	logger   logger.Logger

	mu      sync.RWMutex
	queue   chan job
	closed  bool
	started sync.Once
	wg      sync.WaitGroup
}

func New(config *Config, registry *Registry, deps Dependencies, log logger.Logger) (*Orchestrator, error) {
	if deps.Store == nil || deps.Aggregator == nil {
		return nil, errors.New("orchestrator: store and aggregator are required")
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	return &Orchestrator{
		config:   config,
		registry: registry,
		deps:     deps,
		logger:   log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		queue:    make(chan job, config.QueueSize),
	}, nil
}

// SetNotifier installs the process notifier. Call it before Start.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.deps.Notifier = n
}

// Trigger enqueues a pipeline run for sessionID and returns immediately.
// It is the only call whose failure is reported to the triggering caller.
func (o *Orchestrator) Trigger(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSession
	}

	exists, err := o.deps.Store.EvaluationExists(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	if exists {
		return ErrAlreadyEvaluated
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return fmt.Errorf("%w: queue closed", ErrDispatchFailed)
	}

	select {
	case o.queue <- job{sessionID: sessionID, enqueuedAt: time.Now()}:
		metrics.QueueDepth.Inc()
	default:
		return fmt.Errorf("%w: queue full (%d)", ErrDispatchFailed, cap(o.queue))
	}

	o.logger.Info("pipeline queued", map[string]interface{}{"sessionId": sessionID})
	o.publish(ctx, events.New(events.EvaluationRequested, sessionID, nil))
	return nil
}

// Start launches the dispatchers. Pipelines run under ctx.
func (o *Orchestrator) Start(ctx context.Context) {
	o.started.Do(func() {
		for i := 0; i < o.config.Concurrency; i++ {
			o.wg.Add(1)
			go o.dispatch(ctx, i)
		}
		o.logger.Info("dispatchers started", map[string]interface{}{
			"concurrency": o.config.Concurrency,
			"queueSize":   cap(o.queue),
		})
	})
}

// Stop closes the queue and waits for queued and in-flight pipelines until
// ctx is done.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("dispatchers stopped", nil)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop orchestrator: %w", ctx.Err())
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, id int) {
	defer o.wg.Done()
	log := o.logger.WithFields(map[string]interface{}{"dispatcher": id})

	for j := range o.queue {
		metrics.QueueDepth.Dec()
		log.Debug("dispatching pipeline", map[string]interface{}{
			"sessionId": j.sessionID,
			"queuedFor": time.Since(j.enqueuedAt).String(),
		})

		_, err := o.RunPipeline(ctx, j.sessionID)
		switch {
		case err == nil:
		case errors.Is(err, ErrAlreadyEvaluated), errors.Is(err, ErrAlreadyRunning):
			log.Info("pipeline skipped", map[string]interface{}{"sessionId": j.sessionID, "reason": err.Error()})
		default:
			log.Error("pipeline failed", map[string]interface{}{"sessionId": j.sessionID, "error": err.Error()})
		}
	}
}

// RunPipeline evaluates sessionID synchronously. Worker failures never fail
// the pipeline; only the guard, the hard timeout, aggregation and the final
// write can.
func (o *Orchestrator) RunPipeline(ctx context.Context, sessionID string) (*models.Evaluation, error) {
	start := time.Now()
	log := o.logger.WithFields(map[string]interface{}{"sessionId": sessionID})

	ctx, span := o.deps.Observability.StartSpan(ctx, "pipeline", attribute.String("session.id", sessionID))
	defer span.End()

	eval, outcome, err := o.run(ctx, sessionID, log)

	metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	o.deps.Observability.RecordPipeline(ctx, time.Since(start), outcome)
	span.SetAttributes(attribute.String("pipeline.outcome", outcome))
	if err != nil && outcome != outcomeAlreadyEvaluated && outcome != outcomeAlreadyRunning {
		span.SetStatus(codes.Error, err.Error())
	}

	log.Info("pipeline finished", map[string]interface{}{
		"outcome":  outcome,
		"duration": time.Since(start).String(),
	})
	return eval, err
}

func (o *Orchestrator) run(ctx context.Context, sessionID string, log logger.Logger) (*models.Evaluation, string, error) {
	if o.deps.Guard != nil {
		lease, err := o.deps.Guard.Acquire(ctx, sessionID)
		if errors.Is(err, store.ErrGuardHeld) {
			return nil, outcomeAlreadyRunning, fmt.Errorf("%w: %s", ErrAlreadyRunning, sessionID)
		}
		if err != nil {
			// Redis being down must not block evaluation; the unique
			// constraint on evaluations still prevents duplicates.
			log.Warn("run guard unavailable", map[string]interface{}{"error": err.Error()})
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release run guard", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	// Checked under the guard so a queued duplicate never touches the
	// outputs behind a stored Evaluation.
	exists, err := o.deps.Store.EvaluationExists(ctx, sessionID)
	if err != nil {
		log.Warn("check existing evaluation", map[string]interface{}{"error": err.Error()})
	}
	if exists {
		return nil, outcomeAlreadyEvaluated, fmt.Errorf("%w: %s", ErrAlreadyEvaluated, sessionID)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.HardTimeout)
	defer cancel()

	soft := time.AfterFunc(o.config.SoftTimeout, func() {
		metrics.SoftTimeouts.Inc()
		log.Warn("pipeline exceeded soft time limit", map[string]interface{}{"softTimeout": o.config.SoftTimeout.String()})
		if o.config.OnSoftTimeout != nil {
			o.config.OnSoftTimeout(sessionID)
		}
	})
	defer soft.Stop()

	metrics.PipelinesActive.Inc()
	defer metrics.PipelinesActive.Dec()

	o.fanOut(ctx, sessionID, log)

	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, outcomeTimeout, fmt.Errorf("%w: %s after %s", ErrPipelineTimeout, sessionID, o.config.HardTimeout)
	case err != nil:
		return nil, outcomeCancelled, fmt.Errorf("pipeline %s: %w", sessionID, err)
	}

	return o.aggregate(ctx, sessionID, log)
}

// fanOut runs every registered worker concurrently and returns once all of
// them reached a terminal state.
func (o *Orchestrator) fanOut(ctx context.Context, sessionID string, log logger.Logger) {
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range o.registry.Workers() {
		g.Go(func() error {
			kind := w.Name()
			o.publish(gctx, events.New(events.AgentProcessingStarted, sessionID, map[string]interface{}{"agent_type": kind}))

			out := base.Run(gctx, w, base.Input{SessionID: sessionID}, log)
			o.saveOutput(gctx, out, log)

			eventType := events.AgentProcessingCompleted
			data := map[string]interface{}{"agent_type": kind, "output_id": out.ID}
			if !out.Completed() {
				eventType = events.AgentProcessingFailed
				data["error"] = *out.ErrorMessage
			}
			o.publish(gctx, events.New(eventType, sessionID, data))
			return nil
		})
	}

	_ = g.Wait()
}

func (o *Orchestrator) aggregate(ctx context.Context, sessionID string, log logger.Logger) (*models.Evaluation, string, error) {
	out := base.Run(ctx, o.deps.Aggregator, base.Input{SessionID: sessionID}, log)
	o.saveOutput(ctx, out, log)

	eval, err := o.deps.Aggregator.Evaluation(out)
	if err != nil {
		return nil, outcomeAggregationFailed, fmt.Errorf("%w: %v", ErrAggregation, err)
	}

	wctx, cancel := o.writeContext(ctx)
	defer cancel()

	err = o.deps.Store.SaveEvaluation(wctx, eval)
	if errors.Is(err, store.ErrEvaluationExists) {
		log.Info("evaluation already stored", nil)
		return nil, outcomeAlreadyEvaluated, fmt.Errorf("%w: %s", ErrAlreadyEvaluated, sessionID)
	}
	if err != nil {
		return nil, outcomePersistFailed, fmt.Errorf("save evaluation: %w", err)
	}

	if o.deps.Index != nil {
		if err := o.deps.Index.Index(wctx, eval); err != nil {
			log.Warn("index evaluation", map[string]interface{}{"error": err.Error()})
		}
	}

	o.publish(ctx, events.New(events.EvaluationCompleted, sessionID, map[string]interface{}{
		"evaluation_id":  eval.ID,
		"overall_score":  eval.OverallScore,
		"recommendation": eval.Recommendation,
	}))

	if o.deps.Notifier != nil {
		err := o.deps.Notifier.PublishEvaluationCompleted(wctx, sessionID, map[string]interface{}{
			"evaluationId":   eval.ID,
			"overallScore":   eval.OverallScore,
			"recommendation": string(eval.Recommendation),
		})
		if err != nil {
			log.Warn("notify evaluation completed", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("evaluation stored", map[string]interface{}{
		"evaluationId":   eval.ID,
		"overallScore":   eval.OverallScore,
		"recommendation": eval.Recommendation,
	})
	return eval, outcomeCompleted, nil
}

// saveOutput persists out. A write failure is logged and counted; the
// aggregator simply will not see that row.
func (o *Orchestrator) saveOutput(ctx context.Context, out *models.WorkerOutput, log logger.Logger) {
	wctx, cancel := o.writeContext(ctx)
	defer cancel()

	if err := o.deps.Store.SaveWorkerOutput(wctx, out); err != nil {
		metrics.OutputWriteFailures.WithLabelValues(out.WorkerKind.String()).Inc()
		log.Error("save worker output", map[string]interface{}{
			"workerKind": out.WorkerKind.String(),
			"error":      err.Error(),
		})
	}
}

// writeContext outlives the pipeline deadline so a timed-out worker's
// failed output is still recorded.
func (o *Orchestrator) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := o.config.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if err := o.deps.Events.Publish(context.WithoutCancel(ctx), e); err != nil {
		o.logger.Warn("publish event", map[string]interface{}{
			"eventType": e.Type,
			"sessionId": e.SessionID,
			"error":     err.Error(),
		})
	}
}
