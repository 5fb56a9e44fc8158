// Package adapter implements the protocol adapters that carry tool calls to
// backends over their respective transports.
//
// # Overview
//
// An Adapter knows how to do three things for one backend: verify it is
// reachable (Probe), serialize and execute a tool call (Invoke), and
// normalize whatever comes back into the canonical result envelope. There is
// one implementation per transport kind, not per backend — backends sharing
// a transport share an implementation parameterized by their descriptor.
//
// # Wire format
//
// Both transports speak the same JSON-RPC shape:
//
//	{"jsonrpc":"2.0","id":"<uuid>","method":"tools/call",
//	 "params":{"name":"<tool>","arguments":{...}}}
//
// and expect a single JSON object back with either a "result" or an "error"
// field. Responses that contain neither are malformed; the raw output is
// preserved in the failure envelope for diagnosis.
//
// # Exec transport
//
// ExecAdapter runs the backend's command inside an already-running container
// (docker exec -i by default), writes the request to stdin, and waits for the
// process to exit. Every call is a fresh execution — see the ExecAdapter type
// comment for why no pipe is kept open.
//
// # HTTP transport
//
// HTTPAdapter POSTs the same body to the backend's call endpoint and treats
// any non-2xx status as failure regardless of body. It is the only adapter
// that may reuse connections across calls.
//
// # Registry
//
// The Registry maps adapter implementation names to factories. The builtin
// "exec" and "http" adapters are registered at construction; integrations
// add custom per-backend adapters under "<id>_client"-style names. The
// manifest loader resolves names against the registry, so an unregistered
// reference is caught at load time.
//
// # Failure vocabulary
//
// Transport failures map onto three reasons callers can rely on:
// "backend unreachable", "timed out", and "malformed response".
package adapter
