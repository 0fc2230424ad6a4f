package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotRunning is returned when a terminal-state write targets a task
// that is not currently claimed. Terminal states are immutable.
var ErrNotRunning = errors.New("task is not running")

// Task statuses. Pending and running are transient; success and failure
// are terminal.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Task is one unit of asynchronous question-answering work.
type Task struct {
	ID         string
	Question   string
	Identity   string
	Status     string
	Answer     string
	Error      string
	Attempts   int
	LeaseUntil time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// QuestionRecord is the answered-question history row, persisted
// best-effort after successful inference.
type QuestionRecord struct {
	ID        string
	Question  string
	Answer    string
	Identity  string
	CreatedAt time.Time
}
