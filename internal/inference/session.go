package inference

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Session is the process-wide handle on one loaded model. Loading is
// expensive, so it happens once per worker process, on first use; a failed
// load is retried on the next call. The engine does not support concurrent
// inference within one process, so calls are serialized.
type Session struct {
	client *Client
	model  string

	group  singleflight.Group
	loaded atomic.Bool
	mu     sync.Mutex
}

// NewSession creates a Session for the given model. No engine traffic
// happens until the first Answer call.
func NewSession(client *Client, model string) *Session {
	return &Session{
		client: client,
		model:  model,
	}
}

// Model returns the configured model name.
func (s *Session) Model() string {
	return s.model
}

// Answer ensures the model is loaded, then runs one inference call.
func (s *Session) Answer(ctx context.Context, question, passage string) (string, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Answer(ctx, s.model, question, passage)
}

// ensureLoaded triggers the model load exactly once even under concurrent
// first use; duplicate callers wait for the in-flight load.
func (s *Session) ensureLoaded(ctx context.Context) error {
	if s.loaded.Load() {
		return nil
	}

	_, err, _ := s.group.Do("load", func() (any, error) {
		if s.loaded.Load() {
			return nil, nil
		}
		if err := s.client.LoadModel(ctx, s.model); err != nil {
			return nil, err
		}
		s.loaded.Store(true)
		return nil, nil
	})
	return err
}
