package qa

import (
	"errors"
	"strings"
	"testing"

	"askd/internal/storage"
)

type mockStore struct {
	enqueueFn func(question, identity string) (storage.Task, error)
	getFn     func(id string) (storage.Task, error)
}

func (m *mockStore) EnqueueTask(question, identity string) (storage.Task, error) {
	return m.enqueueFn(question, identity)
}

func (m *mockStore) GetTask(id string) (storage.Task, error) {
	return m.getFn(id)
}

func TestSubmitReturnsStoreID(t *testing.T) {
	d := NewDispatcher(&mockStore{
		enqueueFn: func(question, identity string) (storage.Task, error) {
			if question != "什么是 Go?" || identity != "alice" {
				t.Errorf("enqueue got (%q, %q)", question, identity)
			}
			return storage.Task{ID: "task-123", Status: storage.StatusPending}, nil
		},
	})

	id, err := d.Submit("什么是 Go?", "alice")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "task-123" {
		t.Errorf("task ID = %q, want task-123", id)
	}
}

func TestSubmitBrokerFailure(t *testing.T) {
	d := NewDispatcher(&mockStore{
		enqueueFn: func(string, string) (storage.Task, error) {
			return storage.Task{}, errors.New("database is locked")
		},
	})

	_, err := d.Submit("q", "guest")
	if !errors.Is(err, ErrSubmit) {
		t.Errorf("Submit error = %v, want ErrSubmit", err)
	}
	if !strings.Contains(err.Error(), "database is locked") {
		t.Errorf("Submit error %q should carry the cause", err)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		task storage.Task
		err  error
		want Status
	}{
		{
			name: "pending",
			task: storage.Task{Status: storage.StatusPending},
			want: Status{State: StatePending},
		},
		{
			name: "success carries answer",
			task: storage.Task{Status: storage.StatusSuccess, Answer: "北京"},
			want: Status{State: StateSuccess, Answer: "北京"},
		},
		{
			name: "failure carries error",
			task: storage.Task{Status: storage.StatusFailure, Error: "engine unreachable"},
			want: Status{State: StateFailure, Error: "engine unreachable"},
		},
		{
			name: "unsupported state falls back to raw label",
			task: storage.Task{Status: storage.StatusRunning},
			want: Status{State: "running"},
		},
		{
			name: "unknown id",
			err:  storage.ErrNotFound,
			want: Status{State: StateUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPoller(&mockStore{
				getFn: func(string) (storage.Task, error) {
					if tt.err != nil {
						return storage.Task{}, tt.err
					}
					return tt.task, nil
				},
			})

			got, err := p.Status("some-id")
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if got != tt.want {
				t.Errorf("Status = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStatusStoreError(t *testing.T) {
	p := NewPoller(&mockStore{
		getFn: func(string) (storage.Task, error) {
			return storage.Task{}, errors.New("disk gone")
		},
	})

	if _, err := p.Status("id"); err == nil {
		t.Fatal("expected error for store failure")
	}
}

func TestValidateQuestion(t *testing.T) {
	if err := ValidateQuestion("中国的首都是哪里？"); err != nil {
		t.Errorf("valid question rejected: %v", err)
	}
	if err := ValidateQuestion(strings.Repeat("问", 2000)); err != nil {
		t.Errorf("2000-rune question rejected: %v", err)
	}

	if err := ValidateQuestion(""); !errors.Is(err, ErrInvalidQuestion) {
		t.Errorf("empty question: err = %v, want ErrInvalidQuestion", err)
	}
	if err := ValidateQuestion("   \n"); !errors.Is(err, ErrInvalidQuestion) {
		t.Errorf("blank question: err = %v, want ErrInvalidQuestion", err)
	}
	if err := ValidateQuestion(strings.Repeat("问", 2001)); !errors.Is(err, ErrInvalidQuestion) {
		t.Errorf("2001-rune question: err = %v, want ErrInvalidQuestion", err)
	}
}
