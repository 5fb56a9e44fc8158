// ABOUTME: JSON-RPC request/response shapes shared by the exec and http adapters.
// ABOUTME: Decodes backend output into the canonical envelope with raw diagnostics on failure.

package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/2389/fold-bridge/internal/result"
)

// rpcRequest is the wire format for a tool call, shared by both transports.
type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      string    `json:"id"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// rpcResponse is the shape both transports expect back: exactly one of
// result or error populated.
type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

func newCallRequest(tool string, args map[string]any) rpcRequest {
	if args == nil {
		args = map[string]any{}
	}
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  "tools/call",
		Params:  rpcParams{Name: tool, Arguments: args},
	}
}

func isSet(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// errorText extracts a human-readable message from a JSON-RPC error field,
// which backends emit either as a bare string or as an object with a
// message key.
func errorText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

// decodeResponse parses backend output into the canonical envelope.
//
// The whole payload is tried first; exec backends may interleave log lines
// with the response on stdout, so each line is then tried individually and
// the first object carrying a result or error field wins. Output with no
// such object is a malformed response; the raw text is retained for
// diagnosis.
func decodeResponse(raw []byte, format Formatter) *result.Result {
	if res, ok := tryDecode(raw, format); ok {
		return res
	}
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if res, ok := tryDecode(line, format); ok {
			return res
		}
	}
	return result.FailureRaw("malformed response", string(raw))
}

func tryDecode(raw []byte, format Formatter) (*result.Result, bool) {
	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	switch {
	case isSet(resp.Error):
		return result.Failure(errorText(resp.Error)), true
	case isSet(resp.Result):
		return format(resp.Result), true
	default:
		return nil, false
	}
}

// encodeCall serializes a tool call request.
func encodeCall(tool string, args map[string]any) ([]byte, error) {
	payload, err := json.Marshal(newCallRequest(tool, args))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return payload, nil
}
