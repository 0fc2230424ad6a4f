// Package inference talks to the extractive question-answering engine, a
// local HTTP sidecar serving a BERT-style span-extraction model. Model
// internals are the engine's concern; this package only submits questions
// with a context passage and reads back answers.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client communicates with a QA engine instance over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client targeting the given engine base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Inference on CPU can take a long time; callers bound it via ctx.
			Timeout: 0,
		},
	}
}

// IsRunning returns true if the engine responds to GET /health with 200.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// loadRequest is the JSON body for POST /v1/load.
type loadRequest struct {
	Model string `json:"model"`
}

// LoadModel asks the engine to load the named model into memory. The engine
// keeps it resident; calling again for a loaded model is a no-op there.
func (c *Client) LoadModel(ctx context.Context, model string) error {
	body, err := json.Marshal(loadRequest{Model: model})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/load", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("loading model %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("loading model %s: %s", model, readError(resp))
	}
	return nil
}

// answerRequest is the JSON body for POST /v1/answer.
type answerRequest struct {
	Model    string `json:"model"`
	Question string `json:"question"`
	Context  string `json:"context"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// Answer runs extractive QA for question over the given context passage.
func (c *Client) Answer(ctx context.Context, model, question, passage string) (string, error) {
	body, err := json.Marshal(answerRequest{Model: model, Question: question, Context: passage})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/answer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating answer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting answer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("engine returned %d: %s", resp.StatusCode, readError(resp))
	}

	var ar answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return "", fmt.Errorf("decoding answer: %w", err)
	}
	return ar.Answer, nil
}

// readError extracts {"error": "..."} from an engine error response,
// falling back to the HTTP status text.
func readError(resp *http.Response) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
		return e.Error
	}
	return http.StatusText(resp.StatusCode)
}
