package testutil

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/advisor-ai/advisor/internal/metrics"
	"github.com/advisor-ai/advisor/pkg/types"
)

// TestClient provides HTTP client utilities for testing.
type TestClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewTestClient creates a new test HTTP client.
func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// RequestOption configures HTTP requests.
type RequestOption func(*http.Request)

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithQuery adds query parameters.
func WithQuery(params map[string]string) RequestOption {
	return func(r *http.Request) {
		q := r.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
}

// Response wraps an HTTP response with helpers.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns the response body as a string.
func (r *Response) String() string {
	return string(r.Body)
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs an HTTP GET request.
func (c *TestClient) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, opts...)
}

// Post performs an HTTP POST request with a JSON body.
func (c *TestClient) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body, opts...)
}

// Delete performs an HTTP DELETE request.
func (c *TestClient) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, opts...)
}

func (c *TestClient) do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// ---- Advisor API helpers ----

// APIError is a decoded taxonomy error from the service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// decodeAPIError turns a non-2xx response into an APIError.
func decodeAPIError(resp *Response) *APIError {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = resp.JSON(&body)
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       body.Error.Code,
		Message:    body.Error.Message,
	}
}

type chatBody struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream,omitempty"`
}

// Chat sends one non-streamed conversational request.
func (c *TestClient) Chat(ctx context.Context, sessionID, message string) (*types.Response, error) {
	resp, err := c.Post(ctx, "/chat", chatBody{SessionID: sessionID, Message: message})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, decodeAPIError(resp)
	}

	var out types.Response
	if err := resp.JSON(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// ChunkDelta is one chunk event from a streamed chat.
type ChunkDelta struct {
	Delta string `json:"delta"`
	Seq   int    `json:"seq"`
}

// StreamedChat is the collected outcome of one streamed chat request.
type StreamedChat struct {
	Chunks   []ChunkDelta
	Response *types.Response
	APIErr   *APIError
}

// Text joins the streamed deltas in order.
func (s *StreamedChat) Text() string {
	var b strings.Builder
	for _, c := range s.Chunks {
		b.WriteString(c.Delta)
	}
	return b.String()
}

// ChatStreamed sends one streamed chat request and consumes the SSE
// stream until the terminal done or error event.
func (c *TestClient) ChatStreamed(ctx context.Context, sessionID, message string) (*StreamedChat, error) {
	jsonBody, err := json.Marshal(chatBody{SessionID: sessionID, Message: message, Stream: true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: streams outlive the default request budget.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, decodeAPIError(&Response{StatusCode: resp.StatusCode, Body: body})
	}

	out := &StreamedChat{}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch eventType {
			case "chunk":
				var chunk ChunkDelta
				if err := json.Unmarshal([]byte(data), &chunk); err != nil {
					return out, fmt.Errorf("bad chunk event: %w", err)
				}
				out.Chunks = append(out.Chunks, chunk)
			case "done":
				var final types.Response
				if err := json.Unmarshal([]byte(data), &final); err != nil {
					return out, fmt.Errorf("bad done event: %w", err)
				}
				out.Response = &final
				return out, nil
			case "error":
				var detail struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				}
				if err := json.Unmarshal([]byte(data), &detail); err != nil {
					return out, fmt.Errorf("bad error event: %w", err)
				}
				out.APIErr = &APIError{Code: detail.Code, Message: detail.Message}
				return out, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, fmt.Errorf("stream ended without a terminal event")
}

// SessionHistory is the body of GET /session/{id}/history.
type SessionHistory struct {
	Session *types.SessionInfo `json:"session"`
	Turns   []types.Turn       `json:"turns"`
}

// History fetches the retained turns for a session.
func (c *TestClient) History(ctx context.Context, sessionID string) (*SessionHistory, error) {
	resp, err := c.Get(ctx, "/session/"+sessionID+"/history")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, decodeAPIError(resp)
	}

	var out SessionHistory
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseSession deletes a session.
func (c *TestClient) CloseSession(ctx context.Context, sessionID string) error {
	resp, err := c.Delete(ctx, "/session/"+sessionID)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return decodeAPIError(resp)
	}
	return nil
}

// HealthStatus is the body of GET /healthz.
type HealthStatus struct {
	Status            string  `json:"status"`
	UptimeSeconds     int64   `json:"uptimeSeconds"`
	RequestsProcessed int64   `json:"requestsProcessed"`
	ErrorRate         float64 `json:"errorRate"`
}

// Health fetches the liveness snapshot.
func (c *TestClient) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.Get(ctx, "/healthz")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, decodeAPIError(resp)
	}

	var out HealthStatus
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Metrics fetches the metrics snapshot.
func (c *TestClient) Metrics(ctx context.Context) (*metrics.Summary, error) {
	resp, err := c.Get(ctx, "/metrics")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, decodeAPIError(resp)
	}

	var out metrics.Summary
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
