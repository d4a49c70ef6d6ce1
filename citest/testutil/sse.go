package testutil

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// SSEEvent represents a Server-Sent Event.
type SSEEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SSEClient consumes an SSE endpoint for testing.
type SSEClient struct {
	BaseURL    string
	HTTPClient *http.Client

	mu       sync.Mutex
	events   []SSEEvent
	eventsCh chan SSEEvent
	errCh    chan error
	cancel   context.CancelFunc
	body     io.ReadCloser
}

// NewSSEClient creates a new SSE test client.
func NewSSEClient(baseURL string) *SSEClient {
	return &SSEClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 0, // No timeout for SSE
		},
		eventsCh: make(chan SSEEvent, 100),
		errCh:    make(chan error, 1),
	}
}

// Connect starts the SSE connection.
func (c *SSEClient) Connect(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "text/event-stream") {
		resp.Body.Close()
		return fmt.Errorf("unexpected content type: %s", contentType)
	}

	c.body = resp.Body

	go c.readEvents(resp.Body)

	return nil
}

// readEvents reads SSE events from the connection.
func (c *SSEClient) readEvents(body io.Reader) {
	defer func() {
		close(c.eventsCh)
		close(c.errCh)
	}()

	reader := bufio.NewReader(body)
	var eventType string
	var eventData strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF && err != context.Canceled {
				c.errCh <- err
			}
			return
		}

		line = strings.TrimRight(line, "\r\n")

		// Empty line = event complete
		if line == "" {
			if eventData.Len() > 0 {
				evt := SSEEvent{
					Type: eventType,
					Data: json.RawMessage(eventData.String()),
				}
				c.record(evt)
			}
			eventType = ""
			eventData.Reset()
			continue
		}

		// Comment lines carry heartbeats
		if strings.HasPrefix(line, ":") {
			c.record(SSEEvent{Type: "heartbeat"})
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			eventData.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

func (c *SSEClient) record(evt SSEEvent) {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()

	select {
	case c.eventsCh <- evt:
	default:
		// Channel full, drop event
	}
}

// Events returns the event channel.
func (c *SSEClient) Events() <-chan SSEEvent {
	return c.eventsCh
}

// WaitForEvent waits for a specific event type with timeout.
func (c *SSEClient) WaitForEvent(eventType string, timeout time.Duration) (*SSEEvent, error) {
	return c.WaitForEventWhere(eventType, func(SSEEvent) bool { return true }, timeout)
}

// WaitForEventWhere waits for the first event of the given type that
// satisfies pred.
func (c *SSEClient) WaitForEventWhere(eventType string, pred func(SSEEvent) bool, timeout time.Duration) (*SSEEvent, error) {
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-c.eventsCh:
			if !ok {
				return nil, fmt.Errorf("connection closed")
			}
			if evt.Type == eventType && pred(evt) {
				return &evt, nil
			}
		case err := <-c.errCh:
			return nil, err
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for event: %s", eventType)
		}
	}
}

// WaitForBusEvent waits for a bus event of the given type on the
// /events feed (bus events arrive as "message" SSE events).
func (c *SSEClient) WaitForBusEvent(busType string, timeout time.Duration) (*BusEvent, error) {
	evt, err := c.WaitForEventWhere("message", func(e SSEEvent) bool {
		be, err := e.ParseBusEvent()
		return err == nil && be.Type == busType
	}, timeout)
	if err != nil {
		return nil, err
	}
	return evt.ParseBusEvent()
}

// CollectEvents collects events for a duration.
func (c *SSEClient) CollectEvents(duration time.Duration) []SSEEvent {
	var collected []SSEEvent
	deadline := time.After(duration)
	for {
		select {
		case evt, ok := <-c.eventsCh:
			if !ok {
				return collected
			}
			collected = append(collected, evt)
		case <-deadline:
			return collected
		}
	}
}

// AllEvents returns all received events.
func (c *SSEClient) AllEvents() []SSEEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]SSEEvent, len(c.events))
	copy(result, c.events)
	return result
}

// CountEventType counts recorded events of a specific type.
func (c *SSEClient) CountEventType(eventType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, evt := range c.events {
		if evt.Type == eventType {
			count++
		}
	}
	return count
}

// Close closes the SSE connection.
func (c *SSEClient) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.body != nil {
		c.body.Close()
	}
}

// ---- Bus event helpers ----

// BusEvent is the wire form of one event-bus event on /events.
type BusEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseBusEvent decodes a "message" SSE event from the /events feed.
func (evt *SSEEvent) ParseBusEvent() (*BusEvent, error) {
	var be BusEvent
	if err := json.Unmarshal(evt.Data, &be); err != nil {
		return nil, err
	}
	return &be, nil
}

// SessionOf extracts the sessionID field common to all bus payloads.
func (be *BusEvent) SessionOf() string {
	var payload struct {
		SessionID string `json:"sessionID"`
	}
	if err := json.Unmarshal(be.Data, &payload); err != nil {
		return ""
	}
	return payload.SessionID
}
