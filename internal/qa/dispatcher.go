// Package qa implements the web tier's task submission and result polling
// over the shared task store. Submission never waits for inference; clients
// poll the returned task ID until it reaches a terminal state.
package qa

import (
	"errors"
	"fmt"
	"log/slog"

	"askd/internal/storage"
)

// ErrSubmit marks an enqueue failure, distinguishable from every task state
// and from validation errors.
var ErrSubmit = errors.New("task submission failed")

// Enqueuer abstracts the job store's enqueue operation.
type Enqueuer interface {
	EnqueueTask(question, identity string) (storage.Task, error)
}

// Dispatcher accepts a question plus identity and enqueues a unit of work.
type Dispatcher struct {
	store  Enqueuer
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given store.
func NewDispatcher(store Enqueuer) *Dispatcher {
	return &Dispatcher{
		store:  store,
		logger: slog.Default(),
	}
}

// Submit enqueues the question and returns the store-assigned task ID
// immediately. The caller has already validated the question.
func (d *Dispatcher) Submit(question, identity string) (string, error) {
	t, err := d.store.EnqueueTask(question, identity)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	d.logger.Info("task submitted", "task_id", t.ID, "identity", identity)
	return t.ID, nil
}
