package qa

import (
	"errors"
	"strings"

	"askd/internal/storage"
)

// Client-facing status vocabulary. States the store may hold beyond these
// (e.g. "running") surface as their lower-cased raw label.
const (
	StatePending = "pending"
	StateSuccess = "success"
	StateFailure = "failure"
	StateUnknown = "unknown"
)

// Status is the polled view of one task.
type Status struct {
	State  string
	Answer string
	Error  string
}

// TaskGetter abstracts the job store's read side.
type TaskGetter interface {
	GetTask(id string) (storage.Task, error)
}

// Poller reports task status. Pure read; no side effects.
type Poller struct {
	store TaskGetter
}

// NewPoller creates a Poller over the given store.
func NewPoller(store TaskGetter) *Poller {
	return &Poller{store: store}
}

// Status maps the store's task state onto the client vocabulary. An ID the
// store has never seen yields StateUnknown, not an error.
func (p *Poller) Status(taskID string) (Status, error) {
	t, err := p.store.GetTask(taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return Status{State: StateUnknown}, nil
	}
	if err != nil {
		return Status{}, err
	}

	switch t.Status {
	case storage.StatusPending:
		return Status{State: StatePending}, nil
	case storage.StatusSuccess:
		return Status{State: StateSuccess, Answer: t.Answer}, nil
	case storage.StatusFailure:
		return Status{State: StateFailure, Error: t.Error}, nil
	default:
		return Status{State: strings.ToLower(t.Status)}, nil
	}
}
