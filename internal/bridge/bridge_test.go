// ABOUTME: Tests for orchestrator dispatch, lifecycle, and concurrency invariants.
// ABOUTME: Uses instrumented stub adapters to observe transport-level overlap.

package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-bridge/internal/adapter"
	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
)

// overlapMeter tracks concurrent invocations, optionally shared across stubs.
type overlapMeter struct {
	inFlight atomic.Int32
	max      atomic.Int32
}

func (m *overlapMeter) enter() {
	cur := m.inFlight.Add(1)
	for {
		prev := m.max.Load()
		if cur <= prev || m.max.CompareAndSwap(prev, cur) {
			return
		}
	}
}

func (m *overlapMeter) exit() { m.inFlight.Add(-1) }

type stubAdapter struct {
	probeErr    error
	response    *result.Result
	delay       time.Duration
	meter       *overlapMeter
	invocations atomic.Int32
}

func (a *stubAdapter) Probe(ctx context.Context) error { return a.probeErr }

func (a *stubAdapter) Invoke(ctx context.Context, tool string, args map[string]any) (*result.Result, error) {
	a.invocations.Add(1)
	if a.meter != nil {
		a.meter.enter()
		defer a.meter.exit()
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.response != nil {
		return a.response, nil
	}
	return result.Text("ok"), nil
}

func execDescriptor(id string, enabled bool) *manifest.Descriptor {
	return &manifest.Descriptor{
		ID:          id,
		Name:        id,
		Description: id + " backend",
		Enabled:     enabled,
		Adapter:     id + "_client",
		Kind:        manifest.KindExec,
		Exec:        &manifest.ExecConfig{Container: id + "-1", Command: []string{"run"}},
		Tools: []manifest.ToolSpec{
			{Name: "x", Description: "a tool", Parameters: map[string]string{"arg": "an argument"}},
		},
	}
}

// newTestBridge wires descriptors to their stub adapters through a registry.
func newTestBridge(t *testing.T, stubs map[string]*stubAdapter, descs []*manifest.Descriptor, opts Options) *Bridge {
	t.Helper()
	registry := adapter.NewRegistry()
	for id, stub := range stubs {
		stub := stub
		err := registry.Register(id+"_client", func(d *manifest.Descriptor, o adapter.Options) (adapter.Adapter, error) {
			return stub, nil
		})
		require.NoError(t, err)
	}
	return New(manifest.NewSet(descs...), registry, opts)
}

func TestInitialize(t *testing.T) {
	stubs := map[string]*stubAdapter{
		"alpha": {},
		"gamma": {probeErr: errors.New("container not running")},
	}
	descs := []*manifest.Descriptor{
		execDescriptor("alpha", true),
		execDescriptor("beta", false), // disabled: parsed but never orchestrated
		execDescriptor("gamma", true),
	}
	b := newTestBridge(t, stubs, descs, Options{})

	ready, err := b.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ready)
	assert.Equal(t, Running, b.State())

	// Only the ready session is listed.
	backends, err := b.ListBackends()
	require.NoError(t, err)
	require.Len(t, backends, 1)
	assert.Contains(t, backends, "alpha")

	// The unreachable backend is retained, not dropped.
	all := b.Backends()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].ID)
	assert.True(t, all[0].Ready)
	assert.Equal(t, "gamma", all[1].ID)
	assert.False(t, all[1].Ready)

	// Disabled descriptors remain inspectable.
	assert.Len(t, b.Descriptors(), 3)
}

func TestInitialize_OnlyOnce(t *testing.T) {
	b := newTestBridge(t, map[string]*stubAdapter{"alpha": {}}, []*manifest.Descriptor{execDescriptor("alpha", true)}, Options{})
	_, err := b.Initialize(context.Background())
	require.NoError(t, err)
	_, err = b.Initialize(context.Background())
	assert.Error(t, err)
}

func TestCall_UnknownBackend(t *testing.T) {
	b := newTestBridge(t, map[string]*stubAdapter{"alpha": {}}, []*manifest.Descriptor{
		execDescriptor("alpha", true),
		execDescriptor("beta", false),
	}, Options{})
	_, err := b.Initialize(context.Background())
	require.NoError(t, err)

	_, err = b.Call(context.Background(), "nope", "x", nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	// Disabled backends were never loaded into the enabled set.
	_, err = b.Call(context.Background(), "beta", "x", map[string]any{})
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = b.ListTools("nope")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestListTools(t *testing.T) {
	stubs := map[string]*stubAdapter{
		"alpha": {},
		"gamma": {probeErr: errors.New("down")},
	}
	b := newTestBridge(t, stubs, []*manifest.Descriptor{
		execDescriptor("alpha", true),
		execDescriptor("gamma", true),
	}, Options{})
	_, err := b.Initialize(context.Background())
	require.NoError(t, err)

	tools, err := b.ListTools("alpha")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "x", tools[0].Name)

	// Known but not ready: empty view, not an error.
	tools, err = b.ListTools("gamma")
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestCall_RoundTrip(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		stub := &stubAdapter{response: result.Normalize([]byte(`{"ok":true}`))}
		b := newTestBridge(t, map[string]*stubAdapter{"alpha": stub}, []*manifest.Descriptor{execDescriptor("alpha", true)}, Options{})
		_, err := b.Initialize(context.Background())
		require.NoError(t, err)

		res, err := b.Call(context.Background(), "alpha", "x", map[string]any{})
		require.NoError(t, err)
		require.True(t, res.OK)
		require.Len(t, res.Content, 1)
		assert.Equal(t, result.KindText, res.Content[0].Kind)
		assert.Equal(t, `{"ok":true}`, res.Content[0].Text)
	})

	t.Run("failure envelope is not an error", func(t *testing.T) {
		stub := &stubAdapter{response: result.Failure("boom")}
		b := newTestBridge(t, map[string]*stubAdapter{"alpha": stub}, []*manifest.Descriptor{execDescriptor("alpha", true)}, Options{})
		_, err := b.Initialize(context.Background())
		require.NoError(t, err)

		res, err := b.Call(context.Background(), "alpha", "x", nil)
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, "boom", res.Reason)
	})

	t.Run("unknown tool skips transport", func(t *testing.T) {
		stub := &stubAdapter{}
		b := newTestBridge(t, map[string]*stubAdapter{"alpha": stub}, []*manifest.Descriptor{execDescriptor("alpha", true)}, Options{})
		_, err := b.Initialize(context.Background())
		require.NoError(t, err)

		_, err = b.Call(context.Background(), "alpha", "not_a_tool", nil)
		require.Error(t, err)
		assert.Zero(t, stub.invocations.Load())
	})
}

func TestCall_SameBackendSerialized(t *testing.T) {
	meter := &overlapMeter{}
	stub := &stubAdapter{delay: 20 * time.Millisecond, meter: meter}
	b := newTestBridge(t, map[string]*stubAdapter{"alpha": stub}, []*manifest.Descriptor{execDescriptor("alpha", true)}, Options{})
	_, err := b.Initialize(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Call(context.Background(), "alpha", "x", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), stub.invocations.Load())
	assert.Equal(t, int32(1), meter.max.Load(), "same-backend calls must not overlap")
}

func TestCall_DistinctBackendsOverlap(t *testing.T) {
	// Shared meter across both backends: overlap is expected here.
	meter := &overlapMeter{}
	stubs := map[string]*stubAdapter{
		"alpha": {delay: 200 * time.Millisecond, meter: meter},
		"delta": {delay: 200 * time.Millisecond, meter: meter},
	}
	b := newTestBridge(t, stubs, []*manifest.Descriptor{
		execDescriptor("alpha", true),
		execDescriptor("delta", true),
	}, Options{})
	_, err := b.Initialize(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []string{"alpha", "delta"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Call(context.Background(), id, "x", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), meter.max.Load(), "distinct backends should proceed in parallel")
}

func TestShutdown(t *testing.T) {
	b := newTestBridge(t, map[string]*stubAdapter{"alpha": {}}, []*manifest.Descriptor{execDescriptor("alpha", true)}, Options{})
	_, err := b.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, b.Shutdown())
	assert.Equal(t, Done, b.State())

	// Idempotent.
	require.NoError(t, b.Shutdown())

	_, err = b.Call(context.Background(), "alpha", "x", nil)
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = b.ListBackends()
	assert.ErrorIs(t, err, ErrNotRunning)
}

// collectRecorder keeps records in memory for assertions.
type collectRecorder struct {
	mu      sync.Mutex
	records []*CallRecord
}

func (r *collectRecorder) Record(ctx context.Context, rec *CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func TestCall_Recorded(t *testing.T) {
	rec := &collectRecorder{}
	stub := &stubAdapter{response: result.Failure("nope")}
	b := newTestBridge(t, map[string]*stubAdapter{"alpha": stub}, []*manifest.Descriptor{execDescriptor("alpha", true)}, Options{Recorder: rec})
	_, err := b.Initialize(context.Background())
	require.NoError(t, err)

	_, err = b.Call(context.Background(), "alpha", "x", map[string]any{"arg": 1})
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "alpha", got.BackendID)
	assert.Equal(t, "x", got.Tool)
	assert.False(t, got.OK)
	assert.Equal(t, "nope", got.Reason)
	assert.False(t, got.At.IsZero())
}
