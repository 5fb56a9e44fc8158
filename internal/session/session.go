// ABOUTME: Backend session: one adapter plus lifecycle state and the in-flight guard.
// ABOUTME: Serializes calls per backend; stdio transports cannot multiplex overlapping requests.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/fold-bridge/internal/adapter"
	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
)

// ErrNotReady indicates the session is not in the Ready state.
var ErrNotReady = errors.New("backend not ready")

// ErrConnect indicates the reachability probe failed during Open.
var ErrConnect = errors.New("backend connection failed")

// ErrUnknownTool indicates the tool is absent from the backend's declared
// catalog. The transport is never invoked for unknown tools.
var ErrUnknownTool = errors.New("unknown tool")

// ErrClosed indicates the session was closed and cannot be reopened.
var ErrClosed = errors.New("session closed")

// State is the session lifecycle state. Transitions are one-directional:
// Unconnected -> Ready -> Closed. A failed probe leaves the session
// Unconnected; there is no automatic reconnect.
type State int

const (
	Unconnected State = iota
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session wraps one protocol adapter with readiness bookkeeping and the
// per-backend in-flight call guard.
type Session struct {
	desc    *manifest.Descriptor
	adapter adapter.Adapter
	logger  *slog.Logger

	mu    sync.Mutex // guards state
	state State

	// inflight serializes calls against this backend. Serialization is a
	// correctness requirement, not an optimization: the exec transport
	// cannot distinguish interleaved responses on a shared stdio channel.
	inflight sync.Mutex
}

// New creates a session in the Unconnected state.
func New(desc *manifest.Descriptor, a adapter.Adapter, logger *slog.Logger) *Session {
	return &Session{
		desc:    desc,
		adapter: a,
		logger:  logger.With("component", "session", "backend", desc.ID),
	}
}

// Descriptor returns the backend's immutable descriptor.
func (s *Session) Descriptor() *manifest.Descriptor {
	return s.desc
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready reports whether the session can accept calls.
func (s *Session) Ready() bool {
	return s.State() == Ready
}

// Open probes the backend and, on success, transitions to Ready.
// A failed probe leaves the session Unconnected so it is reported as
// unavailable until explicitly reinitialized.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return ErrClosed
	case Ready:
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if s.adapter == nil {
		return fmt.Errorf("%w: %s: no adapter", ErrConnect, s.desc.ID)
	}
	if err := s.adapter.Probe(ctx); err != nil {
		s.logger.Warn("backend probe failed", "error", err)
		return fmt.Errorf("%w: %s: %w", ErrConnect, s.desc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return ErrClosed
	}
	s.state = Ready
	s.logger.Info("backend session ready", "kind", s.desc.Kind, "tools", len(s.desc.Tools))
	return nil
}

// Call invokes a tool and returns the canonical envelope.
//
// The tool must be in the declared catalog; the check happens before any
// transport work. At most one call is in flight per session: a second
// concurrent caller blocks on the guard rather than being rejected. The
// guard is released on every exit path, including adapter panics.
func (s *Session) Call(ctx context.Context, tool string, args map[string]any) (*result.Result, error) {
	if !s.Ready() {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, s.desc.ID)
	}
	if _, ok := s.desc.Tool(tool); !ok {
		return nil, fmt.Errorf("%w: %q on backend %s", ErrUnknownTool, tool, s.desc.ID)
	}

	s.inflight.Lock()
	defer s.inflight.Unlock()

	res, err := s.adapter.Invoke(ctx, tool, args)
	if err != nil {
		// Request construction problems surface as failures too; callers
		// get one uniform success/failure branch.
		s.logger.Warn("tool invocation error", "tool", tool, "error", err)
		return result.Failuref("call failed: %v", err), nil
	}
	return res, nil
}

// Close transitions to Closed. Idempotent; Closed is terminal.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return nil
	}
	s.state = Closed
	s.logger.Info("backend session closed")
	return nil
}
