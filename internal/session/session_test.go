// ABOUTME: Tests for session lifecycle and the per-backend in-flight guard.
// ABOUTME: Uses an instrumented stub adapter to measure call overlap.

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
)

// stubAdapter is an instrumented adapter for lifecycle and concurrency tests.
type stubAdapter struct {
	probeErr error
	response *result.Result
	delay    time.Duration

	invocations atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (a *stubAdapter) Probe(ctx context.Context) error { return a.probeErr }

func (a *stubAdapter) Invoke(ctx context.Context, tool string, args map[string]any) (*result.Result, error) {
	a.invocations.Add(1)
	cur := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		max := a.maxInFlight.Load()
		if cur <= max || a.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.response != nil {
		return a.response, nil
	}
	return result.Text("ok"), nil
}

func testDescriptor() *manifest.Descriptor {
	return &manifest.Descriptor{
		ID:      "alpha",
		Name:    "Alpha",
		Enabled: true,
		Kind:    manifest.KindExec,
		Exec:    &manifest.ExecConfig{Container: "alpha-1", Command: []string{"run"}},
		Tools: []manifest.ToolSpec{
			{Name: "list_directory", Description: "List a directory"},
		},
	}
}

func newTestSession(t *testing.T, a *stubAdapter) *Session {
	t.Helper()
	return New(testDescriptor(), a, slog.Default())
}

func TestOpen_TransitionsToReady(t *testing.T) {
	s := newTestSession(t, &stubAdapter{})
	if s.State() != Unconnected {
		t.Fatalf("expected unconnected, got %s", s.State())
	}
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.State() != Ready {
		t.Errorf("expected ready, got %s", s.State())
	}
	// Open on a ready session is a no-op.
	if err := s.Open(context.Background()); err != nil {
		t.Errorf("second Open() error = %v", err)
	}
}

func TestOpen_ProbeFailureStaysUnconnected(t *testing.T) {
	s := newTestSession(t, &stubAdapter{probeErr: errors.New("container not running")})
	if err := s.Open(context.Background()); !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if s.State() != Unconnected {
		t.Errorf("expected unconnected after failed probe, got %s", s.State())
	}
	if _, err := s.Call(context.Background(), "list_directory", nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestCall_UnknownToolSkipsTransport(t *testing.T) {
	stub := &stubAdapter{}
	s := newTestSession(t, stub)
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := s.Call(context.Background(), "not_a_tool", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if stub.invocations.Load() != 0 {
		t.Error("transport should not be invoked for unknown tools")
	}
}

func TestCall_ReturnsEnvelope(t *testing.T) {
	stub := &stubAdapter{response: result.Text("payload")}
	s := newTestSession(t, stub)
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, err := s.Call(context.Background(), "list_directory", map[string]any{"path": "/"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Joined() != "payload" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCall_SerializedPerSession(t *testing.T) {
	stub := &stubAdapter{delay: 20 * time.Millisecond}
	s := newTestSession(t, stub)
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	const callers = 5
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Call(context.Background(), "list_directory", nil); err != nil {
				t.Errorf("Call() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := stub.invocations.Load(); got != callers {
		t.Errorf("expected %d invocations, got %d", callers, got)
	}
	if max := stub.maxInFlight.Load(); max != 1 {
		t.Errorf("transport invocations overlapped: max in flight %d", max)
	}
}

func TestClose_IdempotentAndTerminal(t *testing.T) {
	s := newTestSession(t, &stubAdapter{})
	if err := s.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if s.State() != Closed {
		t.Errorf("expected closed, got %s", s.State())
	}

	if _, err := s.Call(context.Background(), "list_directory", nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady after close, got %v", err)
	}
	if err := s.Open(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on reopen, got %v", err)
	}
}
