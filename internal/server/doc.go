// Package server provides the HTTP surface for the advisor service.
//
// The server wraps the orchestrator engine behind a small JSON API and
// exposes the observability surface built on the internal event bus.
//
// # Endpoints
//
//   - POST /chat: one conversational request; {sessionId, message, stream?}.
//     Without stream the handler blocks and returns the full Response.
//     With stream it answers as Server-Sent Events: one "chunk" event per
//     model text delta, then a terminal "done" event carrying the Response,
//     or an "error" event carrying the taxonomy code.
//   - GET /session/{sessionID}/history: the retained turns for a session.
//   - DELETE /session/{sessionID}: aborts any in-flight request and drops
//     the session's stored turns.
//   - GET /events?sessionID=: SSE feed of bus events, optionally filtered
//     to one session.
//   - GET /healthz: process liveness; never calls the model endpoint.
//   - GET /metrics: counters, latency window, token totals.
//
// # Error mapping
//
// Pipeline errors surface with taxonomy codes: INVALID_REQUEST (400),
// PROMPT_TOO_LARGE (413), PROVIDER_ERROR (502), INFERENCE_TIMEOUT (504),
// RATE_LIMITED (429), NOT_FOUND (404). A blocked response is not an
// error: it returns 200 with a generic refusal and blocked=true, never
// the rejected text.
package server
