// Package api exposes the question-answering service over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"askd/internal/qa"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Submitter enqueues a question and returns the task ID.
type Submitter interface {
	Submit(question, identity string) (string, error)
}

// StatusReader reports a task's polled status.
type StatusReader interface {
	Status(taskID string) (qa.Status, error)
}

// Admitter decides whether an identity may submit another question today.
type Admitter interface {
	Admit(ctx context.Context, identity string) (bool, error)
}

// Deps holds the handler dependencies.
type Deps struct {
	Dispatcher Submitter
	Poller     StatusReader
	Limiter    Admitter
	Tokens     TokenVerifier
}

// NewHandler returns the service's HTTP handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/qa", func(r chi.Router) {
		r.Use(Identity(deps.Tokens))
		r.Post("/ask", handleAsk(deps))
		r.Get("/ask/result/{task_id}", handleAskResult(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	TaskID string `json:"task_id"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := qa.ValidateQuestion(req.Question); err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
			return
		}

		identity := IdentityFromContext(r.Context())

		// Only guests are quota-limited; authenticated identities pass
		// straight through.
		admitted, err := deps.Limiter.Admit(r.Context(), identity)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "checking rate limit: %v", err)
			return
		}
		if !admitted {
			httpError(w, http.StatusForbidden, "rate_limit_error",
				"Daily question limit reached for guest user, please login for more access.")
			return
		}

		taskID, err := deps.Dispatcher.Submit(req.Question, identity)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "submitting task: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(askResponse{TaskID: taskID})
	}
}

type resultResponse struct {
	Status string `json:"status"`
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

func handleAskResult(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := chi.URLParam(r, "task_id")

		status, err := deps.Poller.Status(taskID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading task status: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resultResponse{
			Status: status.State,
			Answer: status.Answer,
			Error:  status.Error,
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
