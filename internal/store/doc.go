// Package store persists the tool call log to SQLite.
//
// The log is an append-only record of every completed tool call routed
// through the bridge: which backend, which tool, the serialized arguments,
// the envelope outcome, and how long the call took. It exists for operator
// forensics (the CLI's history command) and deliberately stores outcomes,
// not content blocks.
//
// The implementation uses modernc.org/sqlite (pure Go, no cgo) with WAL
// mode enabled. The schema is created automatically on open.
package store
