// ABOUTME: HTTP adapter: POSTs tool calls to a backend's synchronous endpoint.
// ABOUTME: Reuses persistent connections; probing is a GET against the health path.

package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
)

const (
	defaultHealthPath = "/health"
	defaultCallPath   = "/mcp"

	// maxResponseBody caps how much of a backend response is read (1MB).
	maxResponseBody = 1 << 20
)

// HTTPAdapter reaches a backend exposing a synchronous HTTP tool endpoint.
//
// Unlike the exec adapter it keeps connections alive across calls. Overlap
// at the transport layer is safe here, but the session's in-flight guard
// still serializes calls so all adapters behave uniformly.
type HTTPAdapter struct {
	desc         *manifest.Descriptor
	client       *http.Client
	callTimeout  time.Duration
	probeTimeout time.Duration
	format       Formatter
	logger       *slog.Logger
}

// NewHTTP creates an HTTP adapter for the given descriptor.
func NewHTTP(desc *manifest.Descriptor, opts Options) (*HTTPAdapter, error) {
	if desc.HTTP == nil {
		return nil, fmt.Errorf("backend %s has no http connection block", desc.ID)
	}
	opts = opts.withDefaults()

	return &HTTPAdapter{
		desc:         desc,
		client:       &http.Client{},
		callTimeout:  opts.CallTimeout,
		probeTimeout: opts.ProbeTimeout,
		format:       opts.Formatter,
		logger:       opts.Logger.With("component", "adapter", "backend", desc.ID),
	}, nil
}

// Probe issues a GET against the backend's health path.
func (a *HTTPAdapter) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url(a.desc.HTTP.HealthPath, defaultHealthPath), nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", a.desc.HTTP.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probing %s: status %d", a.desc.HTTP.BaseURL, resp.StatusCode)
	}
	return nil
}

// Invoke POSTs one tool call to the backend's call endpoint.
func (a *HTTPAdapter) Invoke(ctx context.Context, tool string, args map[string]any) (*result.Result, error) {
	payload, err := encodeCall(tool, args)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url(a.desc.HTTP.CallPath, defaultCallPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	a.logger.Debug("invoking tool via http", "tool", tool, "url", req.URL.String())
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("tool call timed out", "tool", tool)
			return result.Failure("timed out"), nil
		}
		a.logger.Warn("tool call failed", "tool", tool, "error", err)
		return result.Failuref("backend unreachable: %v", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return result.Failuref("reading response: %v", err), nil
	}

	// Non-2xx is a failure regardless of body content.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result.FailureRaw(fmt.Sprintf("backend returned status %d", resp.StatusCode), string(body)), nil
	}

	return decodeResponse(body, a.format), nil
}

// url joins the backend base URL with path, falling back to a default path.
func (a *HTTPAdapter) url(path, fallback string) string {
	if path == "" {
		path = fallback
	}
	return strings.TrimSuffix(a.desc.HTTP.BaseURL, "/") + path
}
