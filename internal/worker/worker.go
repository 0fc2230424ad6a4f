// Package worker runs the task executor: it claims queued questions one at
// a time, runs inference, and stores terminal results. Several worker
// processes may run against the same store; redelivery of tasks lost to a
// crashed worker happens through lease expiry.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"askd/internal/storage"
)

// TaskStore abstracts the job store operations the executor needs.
type TaskStore interface {
	ClaimNextTask(leaseTTL time.Duration) (*storage.Task, error)
	CompleteTask(id, answer string) error
	FailTask(id, errMsg string) error
	ReapExpiredLeases(maxAttempts int) (requeued, failed int, err error)
	SaveQuestion(q storage.QuestionRecord) error
}

// Answerer runs one inference call.
type Answerer interface {
	Answer(ctx context.Context, question, passage string) (string, error)
}

// ContextSource supplies the passage given to the engine with each question.
type ContextSource interface {
	Context() string
}

// Options tune the executor loop. Zero values select defaults.
type Options struct {
	PollInterval time.Duration
	LeaseTTL     time.Duration
	MaxAttempts  int
}

// Worker processes question tasks from the shared queue, one in flight at
// a time.
type Worker struct {
	store    TaskStore
	session  Answerer
	contexts ContextSource

	poll        time.Duration
	leaseTTL    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// New creates a Worker with the given dependencies.
func New(store TaskStore, session Answerer, contexts ContextSource, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 5 * time.Minute
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	return &Worker{
		store:       store,
		session:     session,
		contexts:    contexts,
		poll:        opts.PollInterval,
		leaseTTL:    opts.LeaseTTL,
		maxAttempts: opts.MaxAttempts,
		logger:      slog.Default(),
	}
}

// Run polls for tasks until ctx is cancelled, reaping expired leases along
// the way.
func (w *Worker) Run(ctx context.Context) {
	reapEvery := w.leaseTTL / 2
	if reapEvery < time.Second {
		reapEvery = time.Second
	}
	reapTicker := time.NewTicker(reapEvery)
	defer reapTicker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		select {
		case <-reapTicker.C:
			w.Reap()
		default:
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// Reap returns lost tasks to the queue, failing those past their attempt
// limit.
func (w *Worker) Reap() {
	requeued, failed, err := w.store.ReapExpiredLeases(w.maxAttempts)
	if err != nil {
		w.logger.Error("reaping expired leases failed", "error", err)
		return
	}
	if requeued > 0 || failed > 0 {
		w.logger.Info("reaped expired leases", "requeued", requeued, "failed", failed)
	}
}

// RunOnce claims and processes a single task. Returns true if a task was
// claimed, regardless of the task's outcome.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	task, err := w.store.ClaimNextTask(w.leaseTTL)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	w.processTask(ctx, task)
	return true, nil
}

func (w *Worker) processTask(ctx context.Context, task *storage.Task) {
	w.logger.Info("processing task", "task_id", task.ID, "identity", task.Identity, "attempt", task.Attempts)

	answer, err := w.session.Answer(ctx, task.Question, w.contexts.Context())
	if err != nil {
		// Shutdown mid-inference is not a task failure. Leave the task in
		// the running state; lease expiry returns it to the queue and
		// another claim redoes it.
		if ctx.Err() != nil {
			w.logger.Info("shutdown during inference, leaving task for redelivery", "task_id", task.ID)
			return
		}
		// Inference errors become the task's terminal failure state; they
		// never crash the worker.
		w.logger.Warn("inference failed", "task_id", task.ID, "error", err)
		if failErr := w.store.FailTask(task.ID, err.Error()); failErr != nil {
			w.logger.Error("recording task failure", "task_id", task.ID, "error", failErr)
		}
		return
	}

	// Late acknowledgment: the answer is durable before the task leaves the
	// running state. If the lease was reaped meanwhile the task is already
	// back in the queue and another claim will redo it.
	if err := w.store.CompleteTask(task.ID, answer); err != nil {
		w.logger.Error("recording task result", "task_id", task.ID, "error", err)
		return
	}

	// Best-effort history write; failure never affects answer delivery.
	rec := storage.QuestionRecord{
		ID:       uuid.New().String(),
		Question: task.Question,
		Answer:   answer,
		Identity: task.Identity,
	}
	if err := w.store.SaveQuestion(rec); err != nil {
		w.logger.Warn("persisting question record failed", "task_id", task.ID, "error", err)
	}
}
