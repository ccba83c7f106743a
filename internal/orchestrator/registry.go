package orchestrator

import (
	"errors"
	"fmt"

	"interview-evaluator/internal/models"
	"interview-evaluator/internal/workers/base"
)

var (
	ErrDuplicateWorker = errors.New("DUPLICATE_WORKER")
	ErrInvalidWorker   = errors.New("INVALID_WORKER")
)

// Registry is the fixed kind→worker table fanned out for every session.
type Registry struct {
	workers map[models.WorkerKind]base.Worker
	order   []models.WorkerKind
}

// NewRegistry rejects duplicate kinds and the evaluation kind, which is
// dispatched separately after the barrier.
func NewRegistry(workers ...base.Worker) (*Registry, error) {
	r := &Registry{workers: make(map[models.WorkerKind]base.Worker, len(workers))}
	for _, w := range workers {
		kind := w.Name()
		if kind == models.KindEvaluation {
			return nil, fmt.Errorf("%w: %s is not a modality worker", ErrInvalidWorker, kind)
		}
		if _, ok := r.workers[kind]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWorker, kind)
		}
		r.workers[kind] = w
		r.order = append(r.order, kind)
	}
	return r, nil
}

func (r *Registry) Get(kind models.WorkerKind) (base.Worker, bool) {
	w, ok := r.workers[kind]
	return w, ok
}

// Workers returns the workers in registration order.
func (r *Registry) Workers() []base.Worker {
	out := make([]base.Worker, 0, len(r.order))
	for _, kind := range r.order {
		out = append(out, r.workers[kind])
	}
	return out
}

func (r *Registry) Kinds() []models.WorkerKind {
	return append([]models.WorkerKind(nil), r.order...)
}
