package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// routingMarker appears in the system prompt of intent-routing calls.
const routingMarker = "category_name|confidence_score"

// MockModelServer mimics an OpenAI-compatible chat endpoint. It answers
// intent-routing calls with category|confidence replies and everything
// else with canned educational answers matched by keyword, streamed
// word by word when the request asks for streaming.
type MockModelServer struct {
	server *httptest.Server

	mu         sync.Mutex
	requests   []RecordedRequest
	answers    []cannedAnswer
	routeReply string
	failNext   int
	chunkDelay time.Duration
	stallAfter int
}

// RecordedRequest captures one inbound model call for assertions.
type RecordedRequest struct {
	Time      time.Time
	Stream    bool
	MaxTokens int
	Messages  []RecordedMessage
}

// RecordedMessage is one chat message from a recorded request.
type RecordedMessage struct {
	Role    string
	Content string
}

type cannedAnswer struct {
	keyword string
	text    string
}

// defaultAnswers are matched in order against the last user message.
func defaultAnswers() []cannedAnswer {
	return []cannedAnswer{
		{"diversification", "Diversification means spreading investments across different assets so a single loss cannot sink the whole portfolio."},
		{"compound interest", "Compound interest is interest earned on both the principal and previously accumulated interest, so balances grow faster over time."},
		{"p/e ratio", "The P/E ratio compares a company's share price to its earnings per share and is a common valuation yardstick."},
		{"etf", "An ETF is a fund that trades on an exchange like a stock while holding a basket of underlying assets."},
		{"bond", "Bonds are loans to governments or companies that pay periodic interest and return the principal at maturity."},
		{"dollar-cost", "Dollar-cost averaging invests a fixed amount at regular intervals, buying more shares when prices are low and fewer when they are high."},
	}
}

const defaultAnswer = "Investing works best with clear goals, a long horizon, and diversified low-cost holdings."

// NewMockModelServer starts the mock endpoint.
func NewMockModelServer() *MockModelServer {
	m := &MockModelServer{
		answers: defaultAnswers(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", m.handleChatCompletions)
	mux.HandleFunc("/chat/completions", m.handleChatCompletions)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock server's base URL.
func (m *MockModelServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockModelServer) Close() {
	m.server.Close()
}

// Requests returns all recorded requests.
func (m *MockModelServer) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// SetAnswer registers an answer matched when the last user message
// contains keyword. Later registrations win over the defaults.
func (m *MockModelServer) SetAnswer(keyword, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append([]cannedAnswer{{keyword: strings.ToLower(keyword), text: text}}, m.answers...)
}

// SetRouteReply fixes the reply for intent-routing calls, e.g.
// "market_research|0.9". Empty restores keyword-derived routing.
func (m *MockModelServer) SetRouteReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routeReply = reply
}

// FailNext makes the next n chat calls fail with HTTP 500.
func (m *MockModelServer) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

// SetChunkDelay inserts a pause before each streamed chunk.
func (m *MockModelServer) SetChunkDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkDelay = d
}

// StallAfter makes streamed responses hang after n content chunks until
// the client gives up. Zero disables stalling.
func (m *MockModelServer) StallAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stallAfter = n
}

func (m *MockModelServer) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req map[string]any
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	rec := recordRequest(req)

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	shouldFail := m.failNext > 0
	if shouldFail {
		m.failNext--
	}
	routeReply := m.routeReply
	chunkDelay := m.chunkDelay
	stallAfter := m.stallAfter
	answers := m.answers
	m.mu.Unlock()

	if shouldFail {
		http.Error(w, "mock upstream failure", http.StatusInternalServerError)
		return
	}

	lastUser := lastUserMessage(rec.Messages)

	// Routing calls are answered without streaming regardless of the
	// request flag; the classifier never streams.
	if isRoutingCall(rec.Messages) {
		if routeReply == "" {
			routeReply = deriveRoute(lastUser)
		}
		writeCompletion(w, routeReply)
		return
	}

	answer := matchAnswer(answers, lastUser)
	if rec.Stream {
		streamCompletion(w, r, answer, chunkDelay, stallAfter)
		return
	}
	writeCompletion(w, answer)
}

func recordRequest(req map[string]any) RecordedRequest {
	rec := RecordedRequest{Time: time.Now()}
	rec.Stream, _ = req["stream"].(bool)
	if v, ok := req["max_completion_tokens"].(float64); ok {
		rec.MaxTokens = int(v)
	} else if v, ok := req["max_tokens"].(float64); ok {
		rec.MaxTokens = int(v)
	}

	messages, _ := req["messages"].([]any)
	for _, raw := range messages {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := msg["role"].(string)
		content, _ := msg["content"].(string)
		rec.Messages = append(rec.Messages, RecordedMessage{Role: role, Content: content})
	}
	return rec
}

func lastUserMessage(messages []RecordedMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

func isRoutingCall(messages []RecordedMessage) bool {
	for _, msg := range messages {
		if msg.Role == "system" && strings.Contains(msg.Content, routingMarker) {
			return true
		}
	}
	return false
}

// deriveRoute picks a plausible category from the question keywords.
func deriveRoute(message string) string {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "portfolio"):
		return "portfolio_creation|0.85"
	case strings.Contains(lower, "risk tolerance") || strings.Contains(lower, "my profile"):
		return "profile_analysis|0.85"
	case strings.Contains(lower, "market") || strings.Contains(lower, "stock price"):
		return "market_research|0.8"
	default:
		return "question_answering|0.7"
	}
}

func matchAnswer(answers []cannedAnswer, message string) string {
	lower := strings.ToLower(message)
	for _, a := range answers {
		if strings.Contains(lower, a.keyword) {
			return a.text
		}
	}
	return defaultAnswer
}

// writeCompletion writes a non-streaming chat completion.
func writeCompletion(w http.ResponseWriter, content string) {
	response := map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "advisor-mock",
		"choices": []map[string]any{{
			"index": 0,
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{
			"prompt_tokens":     100,
			"completion_tokens": 50,
			"total_tokens":      150,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// streamCompletion writes an SSE chat completion word by word, honoring
// client disconnects between chunks.
func streamCompletion(w http.ResponseWriter, r *http.Request, content string, delay time.Duration, stallAfter int) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	writeChunk(w, flusher, map[string]any{"role": "assistant"}, "")

	words := strings.Fields(content)
	for i, word := range words {
		if stallAfter > 0 && i >= stallAfter {
			<-r.Context().Done()
			return
		}
		if delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
		}
		text := word
		if i < len(words)-1 {
			text += " "
		}
		writeChunk(w, flusher, map[string]any{"content": text}, "")
	}

	writeChunk(w, flusher, map[string]any{}, "stop")
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

func writeChunk(w http.ResponseWriter, flusher http.Flusher, delta map[string]any, finish string) {
	choice := map[string]any{
		"index": 0,
		"delta": delta,
	}
	if finish != "" {
		choice["finish_reason"] = finish
	}
	chunk := map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion.chunk",
		"created": time.Now().Unix(),
		"model":   "advisor-mock",
		"choices": []map[string]any{choice},
	}
	data, _ := json.Marshal(chunk)
	_, _ = w.Write([]byte("data: " + string(data) + "\n\n"))
	flusher.Flush()
}
