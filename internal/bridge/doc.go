// Package bridge is the orchestration core: it owns one session per enabled
// backend and routes tool calls to them.
//
// # Overview
//
// The bridge is purely reactive — it runs no background scheduler. Its
// lifecycle is:
//
//	Uninitialized -> Initializing -> Running -> ShuttingDown -> Done
//
// Call and the List operations are only valid in Running.
//
// # Initialization
//
// Initialize constructs an adapter (via the registry) and a session for
// every enabled descriptor, then opens the sessions concurrently. A backend
// whose probe fails is retained in the mapping, marked unavailable, and
// never blocks its siblings. The return value is the number of backends
// that came up ready.
//
// # Dispatch
//
//	res, err := b.Call(ctx, "filesystem", "list_directory", map[string]any{"path": "/projects"})
//
// err is reserved for caller mistakes: ErrUnknownBackend, the session's
// ErrUnknownTool/ErrNotReady, or ErrNotRunning. Everything the backend
// itself does — transport failures, timeouts, application errors — comes
// back inside the result envelope, so the common path branches on res.OK
// only.
//
// # Concurrency
//
// The session mapping is built once and read-mostly afterward. Calls to
// different backends proceed in parallel; calls to the same backend are
// serialized by that session's in-flight guard.
//
// # Call log
//
// When constructed with a Recorder, the bridge persists a CallRecord for
// every completed call, best effort. Recording failures are logged, never
// propagated.
package bridge
