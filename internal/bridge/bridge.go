// ABOUTME: Orchestrator routing tool calls to backend sessions by backend id.
// ABOUTME: Owns the id-to-session mapping and the bridge lifecycle state machine.

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/fold-bridge/internal/adapter"
	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
	"github.com/2389/fold-bridge/internal/session"
)

// ErrUnknownBackend indicates the backend id is not in the loaded set.
// Distinct from "known but unreachable", which shows up as a not-ready
// session, never as this error.
var ErrUnknownBackend = errors.New("unknown backend")

// ErrNotRunning indicates the bridge is not in the Running state.
var ErrNotRunning = errors.New("bridge not running")

// State is the bridge lifecycle state.
type State int

const (
	Uninitialized State = iota
	Initializing
	Running
	ShuttingDown
	Done
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting down"
	case Done:
		return "closed"
	default:
		return "unknown"
	}
}

// BackendInfo is the descriptor metadata reported for a backend.
type BackendInfo struct {
	ID          string
	Name        string
	Description string
	Kind        manifest.Kind
	Ready       bool
	ToolCount   int
}

// CallRecord describes one completed tool call for the call log.
type CallRecord struct {
	ID        string
	BackendID string
	Tool      string
	Args      map[string]any
	OK        bool
	Reason    string
	Duration  time.Duration
	At        time.Time
}

// Recorder persists call records. Implemented by store.CallLog.
type Recorder interface {
	Record(ctx context.Context, rec *CallRecord) error
}

// Options configures bridge construction.
type Options struct {
	Adapter  adapter.Options
	Recorder Recorder
	Logger   *slog.Logger
}

// Bridge routes tool calls to the correct backend session.
//
// The session mapping is built once during Initialize and is read-only
// afterward; the sessions' internal readiness flags are the only mutable
// state touched concurrently. Calls to different backends run fully in
// parallel; calls to the same backend are serialized by its session.
type Bridge struct {
	set      *manifest.Set
	registry *adapter.Registry
	opts     Options
	logger   *slog.Logger

	mu       sync.RWMutex
	state    State
	sessions map[string]*session.Session
}

// New creates a bridge over the loaded descriptor set. Call Initialize
// before anything else.
func New(set *manifest.Set, registry *adapter.Registry, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		set:      set,
		registry: registry,
		opts:     opts,
		logger:   logger.With("component", "bridge"),
		sessions: make(map[string]*session.Session),
	}
}

// Initialize builds one session per enabled backend and opens them
// concurrently. Backends that fail to open are retained in the mapping and
// reported unavailable rather than silently dropped, so callers can tell
// "unknown backend" apart from "known but unreachable". Returns the number
// of sessions that opened successfully.
func (b *Bridge) Initialize(ctx context.Context) (int, error) {
	b.mu.Lock()
	if b.state != Uninitialized {
		b.mu.Unlock()
		return 0, fmt.Errorf("initialize called in state %s", b.state)
	}
	b.state = Initializing

	for id, desc := range b.set.Enabled() {
		b.sessions[id] = session.New(desc, b.buildAdapter(desc), b.logger)
	}
	b.mu.Unlock()

	var ready atomic.Int32
	var g errgroup.Group
	for id, sess := range b.sessions {
		id, sess := id, sess
		g.Go(func() error {
			if err := sess.Open(ctx); err != nil {
				// Isolation: one unreachable backend never blocks the rest.
				b.logger.Warn("backend unavailable", "backend", id, "error", err)
				return nil
			}
			ready.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	b.mu.Lock()
	b.state = Running
	b.mu.Unlock()

	b.logger.Info("bridge initialized",
		"backends", len(b.sessions),
		"ready", ready.Load(),
	)
	return int(ready.Load()), nil
}

// buildAdapter constructs the backend's adapter from the registry. A nil
// return leaves the session permanently unavailable, which is how factory
// errors are surfaced.
func (b *Bridge) buildAdapter(desc *manifest.Descriptor) adapter.Adapter {
	factory, ok := b.registry.Resolve(desc.AdapterName())
	if !ok {
		// The loader validates adapter names, so this only happens when the
		// registry changed between load and initialize.
		b.logger.Error("adapter not registered", "backend", desc.ID, "adapter", desc.AdapterName())
		return nil
	}
	a, err := factory(desc, b.opts.Adapter)
	if err != nil {
		b.logger.Error("adapter construction failed", "backend", desc.ID, "error", err)
		return nil
	}
	return a
}

// State returns the current bridge state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Bridge) requireRunning() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state != Running {
		return fmt.Errorf("%w: state %s", ErrNotRunning, b.state)
	}
	return nil
}

// ListBackends returns metadata for backends whose sessions are Ready,
// keyed by backend id.
func (b *Bridge) ListBackends() (map[string]BackendInfo, error) {
	if err := b.requireRunning(); err != nil {
		return nil, err
	}

	out := make(map[string]BackendInfo)
	for id, sess := range b.sessions {
		if !sess.Ready() {
			continue
		}
		out[id] = b.info(sess)
	}
	return out, nil
}

// Descriptors returns every loaded descriptor, including disabled backends
// and backends whose sessions failed to open, for introspection and tooling.
func (b *Bridge) Descriptors() []*manifest.Descriptor {
	return b.set.All()
}

// Backends returns metadata for every session, ready or not, sorted by id.
// The UI layer uses this to show unavailable backends alongside ready ones.
func (b *Bridge) Backends() []BackendInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]BackendInfo, 0, len(b.sessions))
	for _, sess := range b.sessions {
		out = append(out, b.info(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Bridge) info(sess *session.Session) BackendInfo {
	desc := sess.Descriptor()
	return BackendInfo{
		ID:          desc.ID,
		Name:        desc.Name,
		Description: desc.Description,
		Kind:        desc.Kind,
		Ready:       sess.Ready(),
		ToolCount:   len(desc.Tools),
	}
}

// ListTools returns the declared tool catalog for a backend. Fails with
// ErrUnknownBackend for ids absent from the enabled set. A known backend
// whose session is not ready yields an empty view instead of an error.
func (b *Bridge) ListTools(backendID string) ([]manifest.ToolSpec, error) {
	if err := b.requireRunning(); err != nil {
		return nil, err
	}

	sess, ok := b.sessions[backendID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backendID)
	}
	if !sess.Ready() {
		return nil, nil
	}
	desc := sess.Descriptor()
	tools := make([]manifest.ToolSpec, len(desc.Tools))
	copy(tools, desc.Tools)
	return tools, nil
}

// Call routes a tool call to the backend's session and returns the
// canonical envelope.
//
// Caller errors (unknown backend or tool, not-ready backend, shut-down
// bridge) surface as typed errors. Transport and application failures never
// do: they arrive as Failure envelopes, so the common path needs no error
// handling beyond the OK branch.
func (b *Bridge) Call(ctx context.Context, backendID, tool string, args map[string]any) (*result.Result, error) {
	if err := b.requireRunning(); err != nil {
		return nil, err
	}

	sess, ok := b.sessions[backendID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, backendID)
	}

	start := time.Now()
	res, err := sess.Call(ctx, tool, args)
	if err != nil {
		return nil, err
	}
	b.record(ctx, backendID, tool, args, res, time.Since(start))
	return res, nil
}

// record persists the call outcome, best effort.
func (b *Bridge) record(ctx context.Context, backendID, tool string, args map[string]any, res *result.Result, elapsed time.Duration) {
	if b.opts.Recorder == nil {
		return
	}
	rec := &CallRecord{
		ID:        uuid.New().String(),
		BackendID: backendID,
		Tool:      tool,
		Args:      args,
		OK:        res.OK,
		Reason:    res.Reason,
		Duration:  elapsed,
		At:        time.Now().UTC(),
	}
	if err := b.opts.Recorder.Record(ctx, rec); err != nil {
		b.logger.Warn("failed to record call", "backend", backendID, "tool", tool, "error", err)
	}
}

// Shutdown closes every session. Individual close failures are collected
// and logged without aborting the loop. Idempotent.
func (b *Bridge) Shutdown() error {
	b.mu.Lock()
	if b.state == Done {
		b.mu.Unlock()
		return nil
	}
	b.state = ShuttingDown
	b.mu.Unlock()

	var errs []error
	for id, sess := range b.sessions {
		if err := sess.Close(); err != nil {
			b.logger.Warn("failed to close session", "backend", id, "error", err)
			errs = append(errs, fmt.Errorf("closing %s: %w", id, err))
		}
	}

	b.mu.Lock()
	b.state = Done
	b.mu.Unlock()

	b.logger.Info("bridge shut down", "backends", len(b.sessions))
	return errors.Join(errs...)
}
