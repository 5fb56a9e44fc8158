// ABOUTME: Protocol adapter abstraction over heterogeneous backend transports.
// ABOUTME: One adapter implementation per transport kind, parameterized by descriptor.

package adapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
)

// Default timeouts for transport operations.
const (
	DefaultCallTimeout  = 60 * time.Second
	DefaultProbeTimeout = 10 * time.Second
)

// Adapter translates a generic tool call into a backend-specific wire
// operation and back into the canonical result envelope.
type Adapter interface {
	// Probe verifies the backend is reachable with a cheap, side-effect-free
	// operation. A non-nil error means the backend is not usable.
	Probe(ctx context.Context) error

	// Invoke performs one tool call. Transport and application failures are
	// reported through the result envelope; the error return is reserved for
	// request construction problems.
	Invoke(ctx context.Context, tool string, args map[string]any) (*result.Result, error)
}

// Formatter converts a backend's raw result payload into the canonical
// envelope. Backends with peculiar result shapes supply their own; everyone
// else gets result.Normalize.
type Formatter func(raw json.RawMessage) *result.Result

// Factory constructs an adapter for one backend descriptor.
type Factory func(desc *manifest.Descriptor, opts Options) (Adapter, error)

// Options carries adapter construction parameters shared by all transports.
type Options struct {
	CallTimeout  time.Duration
	ProbeTimeout time.Duration
	Formatter    Formatter
	Logger       *slog.Logger

	// ExecCommand overrides the execution primitive argv for exec adapters
	// (default: docker exec -i). Used by tests and non-docker deployments.
	ExecCommand []string
}

func (o Options) withDefaults() Options {
	if o.CallTimeout == 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.ProbeTimeout == 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	if o.Formatter == nil {
		o.Formatter = result.Normalize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
