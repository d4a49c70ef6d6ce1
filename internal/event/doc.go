/*
Package event provides a type-safe, pub/sub event system for the advisor
service.

The event system enables decoupled communication between pipeline stages and
observers: the orchestrator, metrics collector, audit writer, and the SSE
event endpoint all communicate through it without direct dependencies.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call semantics to preserve type information. It provides
both synchronous and asynchronous event publishing patterns.

# Event Types

Request lifecycle events:
  - request.received: Request entered the pipeline
  - request.state: Request advanced to a new pipeline state
  - request.retry: Inference attempt scheduled for retry
  - response.chunk: Streamed model text delta
  - filter.applied: Safety rule modified, annotated, or blocked a response
  - request.completed: Request finished with a response
  - request.failed: Request reached the failed state

Session events:
  - turn.appended: Turn recorded in session history
  - session.evicted: Session dropped by TTL or budget pressure
  - session.closed: Session explicitly closed by a client

# Basic Usage

Publishing events:

	// Asynchronous publishing (non-blocking)
	event.Publish(event.Event{
		Type: event.RequestReceived,
		Data: event.RequestReceivedData{
			RequestID: requestID,
			SessionID: sessionID,
		},
	})

	// Synchronous publishing (blocking until all subscribers complete)
	event.PublishSync(event.Event{
		Type: event.RequestCompleted,
		Data: event.RequestCompletedData{
			RequestID: requestID,
			SessionID: sessionID,
			Response:  resp,
		},
	})

Subscribing to specific events:

	unsubscribe := event.Subscribe(event.RequestCompleted, func(e event.Event) {
		data := e.Data.(event.RequestCompletedData)
		logging.Info("request completed", "requestID", data.RequestID)
	})
	defer unsubscribe()

Subscribing to all events:

	unsubscribe := event.SubscribeAll(func(e event.Event) {
		logging.Debug("event received", "type", e.Type)
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the publisher's
goroutine. To avoid blocking or deadlocks, subscribers MUST:

  - Complete quickly (avoid long-running operations)
  - Use non-blocking channel sends (select with default case)
  - Never call Publish/PublishSync from within a subscriber (no re-entrant publishing)
  - Never acquire locks that the publisher might hold

Example of a safe subscriber:

	event.SubscribeAll(func(e event.Event) {
	    select {
	    case eventChan <- e:
	        // Event sent successfully
	    default:
	        // Channel full, drop event to avoid blocking
	        logging.Warn("Event dropped due to full channel", "type", e.Type)
	    }
	})

# Custom Event Bus

For testing or isolation, you can create custom bus instances:

	bus := event.NewBus()
	defer bus.Close()

	unsubscribe := bus.Subscribe(event.RequestReceived, handler)
	bus.PublishSync(event.Event{Type: event.RequestReceived, Data: data})

# Testing

The package provides utilities for testing:

	// Reset global bus state (use in test cleanup)
	event.Reset()

# Thread Safety

The event bus is thread-safe and can be used concurrently from multiple
goroutines. Both publishing and subscribing operations are protected by
internal synchronization.

# Performance Considerations

  - Asynchronous publishing (Publish) creates a goroutine per subscriber per event
  - Synchronous publishing (PublishSync) calls all subscribers in the current goroutine
  - Use PublishSync for critical events where ordering matters
  - Use Publish for fire-and-forget notifications

# Integration with Watermill

The package uses watermill's gochannel internally, providing access to the
underlying pubsub infrastructure for advanced use cases:

	pubsub := event.PubSub()
	// Use watermill features like middleware, routing, etc.

This allows future migration to distributed message brokers if needed while
maintaining the current API.
*/
package event
