package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askd/internal/qa"
)

// --- mocks ---

type mockDispatcher struct {
	submitFn func(question, identity string) (string, error)
}

func (m *mockDispatcher) Submit(question, identity string) (string, error) {
	return m.submitFn(question, identity)
}

type mockPoller struct {
	statusFn func(taskID string) (qa.Status, error)
}

func (m *mockPoller) Status(taskID string) (qa.Status, error) {
	return m.statusFn(taskID)
}

type mockLimiter struct {
	admitFn func(ctx context.Context, identity string) (bool, error)
}

func (m *mockLimiter) Admit(ctx context.Context, identity string) (bool, error) {
	if m.admitFn != nil {
		return m.admitFn(ctx, identity)
	}
	return true, nil
}

type mockTokens struct {
	verifyFn func(token string) (string, error)
}

func (m *mockTokens) Verify(token string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return "", errors.New("invalid")
}

func testDeps() Deps {
	return Deps{
		Dispatcher: &mockDispatcher{submitFn: func(string, string) (string, error) {
			return "task-1", nil
		}},
		Poller: &mockPoller{statusFn: func(string) (qa.Status, error) {
			return qa.Status{State: qa.StatePending}, nil
		}},
		Limiter: &mockLimiter{},
		Tokens:  &mockTokens{},
	}
}

func doRequest(t *testing.T, deps Deps, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	NewHandler(deps).ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

// --- submit ---

func TestAskReturnsTaskID(t *testing.T) {
	deps := testDeps()
	var gotIdentity string
	deps.Dispatcher = &mockDispatcher{submitFn: func(question, identity string) (string, error) {
		if question != "中国的首都是哪里？" {
			t.Errorf("question = %q", question)
		}
		gotIdentity = identity
		return "task-42", nil
	}}

	rec := doRequest(t, deps, http.MethodPost, "/qa/ask", `{"question":"中国的首都是哪里？"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	resp := decodeBody[askResponse](t, rec)
	if resp.TaskID != "task-42" {
		t.Errorf("task_id = %q, want task-42", resp.TaskID)
	}
	if gotIdentity != "guest" {
		t.Errorf("identity = %q, want guest without a token", gotIdentity)
	}
}

func TestAskGuestOverCap(t *testing.T) {
	deps := testDeps()
	deps.Limiter = &mockLimiter{admitFn: func(_ context.Context, identity string) (bool, error) {
		if identity != "guest" {
			t.Errorf("identity = %q", identity)
		}
		return false, nil
	}}
	deps.Dispatcher = &mockDispatcher{submitFn: func(string, string) (string, error) {
		t.Error("rejected request must not be dispatched")
		return "", nil
	}}

	rec := doRequest(t, deps, http.MethodPost, "/qa/ask", `{"question":"q"}`, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAskValidation(t *testing.T) {
	deps := testDeps()
	deps.Dispatcher = &mockDispatcher{submitFn: func(string, string) (string, error) {
		t.Error("invalid question must not be dispatched")
		return "", nil
	}}

	tooLong, _ := json.Marshal(map[string]string{"question": strings.Repeat("问", 2001)})

	for name, body := range map[string]string{
		"empty":    `{"question":""}`,
		"blank":    `{"question":"   "}`,
		"too long": string(tooLong),
	} {
		t.Run(name, func(t *testing.T) {
			rec := doRequest(t, deps, http.MethodPost, "/qa/ask", body, nil)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422", rec.Code)
			}
		})
	}
}

func TestAskMalformedBody(t *testing.T) {
	rec := doRequest(t, testDeps(), http.MethodPost, "/qa/ask", `{"question":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAskDispatchFailure(t *testing.T) {
	deps := testDeps()
	deps.Dispatcher = &mockDispatcher{submitFn: func(string, string) (string, error) {
		return "", qa.ErrSubmit
	}}

	rec := doRequest(t, deps, http.MethodPost, "/qa/ask", `{"question":"q"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestAskAuthenticatedIdentity(t *testing.T) {
	deps := testDeps()
	deps.Tokens = &mockTokens{verifyFn: func(token string) (string, error) {
		if token != "good-token" {
			return "", errors.New("invalid")
		}
		return "alice", nil
	}}
	var limited, dispatched string
	deps.Limiter = &mockLimiter{admitFn: func(_ context.Context, identity string) (bool, error) {
		limited = identity
		return true, nil
	}}
	deps.Dispatcher = &mockDispatcher{submitFn: func(_, identity string) (string, error) {
		dispatched = identity
		return "task-1", nil
	}}

	rec := doRequest(t, deps, http.MethodPost, "/qa/ask", `{"question":"q"}`,
		map[string]string{"Authorization": "Bearer good-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if limited != "alice" || dispatched != "alice" {
		t.Errorf("identity = (%q, %q), want alice", limited, dispatched)
	}
}

func TestAskInvalidToken(t *testing.T) {
	rec := doRequest(t, testDeps(), http.MethodPost, "/qa/ask", `{"question":"q"}`,
		map[string]string{"Authorization": "Bearer bad-token"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAskMalformedAuthHeader(t *testing.T) {
	rec := doRequest(t, testDeps(), http.MethodPost, "/qa/ask", `{"question":"q"}`,
		map[string]string{"Authorization": "Basic dXNlcjpwYXNz"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// --- poll ---

func TestAskResultStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status qa.Status
		want   resultResponse
	}{
		{"pending", qa.Status{State: qa.StatePending}, resultResponse{Status: "pending"}},
		{"success", qa.Status{State: qa.StateSuccess, Answer: "北京"}, resultResponse{Status: "success", Answer: "北京"}},
		{"failure", qa.Status{State: qa.StateFailure, Error: "boom"}, resultResponse{Status: "failure", Error: "boom"}},
		{"unknown", qa.Status{State: qa.StateUnknown}, resultResponse{Status: "unknown"}},
		{"raw fallback", qa.Status{State: "running"}, resultResponse{Status: "running"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Poller = &mockPoller{statusFn: func(taskID string) (qa.Status, error) {
				if taskID != "task-9" {
					t.Errorf("taskID = %q", taskID)
				}
				return tt.status, nil
			}}

			rec := doRequest(t, deps, http.MethodGet, "/qa/ask/result/task-9", "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if got := decodeBody[resultResponse](t, rec); got != tt.want {
				t.Errorf("body = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAskResultStoreError(t *testing.T) {
	deps := testDeps()
	deps.Poller = &mockPoller{statusFn: func(string) (qa.Status, error) {
		return qa.Status{}, errors.New("disk gone")
	}}

	rec := doRequest(t, deps, http.MethodGet, "/qa/ask/result/x", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, testDeps(), http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
