// ABOUTME: Converts backend-specific result payloads into the canonical envelope.
// ABOUTME: Handles MCP-style content arrays, bare strings, and arbitrary JSON.

package result

import (
	"encoding/json"
)

// mcpContent matches the content block shape MCP servers return:
// {"content":[{"type":"text","text":"..."}]}
type mcpContent struct {
	Type string          `json:"type"`
	Text string          `json:"text"`
	Data json.RawMessage `json:"data"`
}

type mcpResult struct {
	Content []mcpContent `json:"content"`
}

// Normalize converts a raw JSON result payload into a successful Result.
//
// Recognized shapes, in order:
//   - MCP-style {"content":[{"type":"text","text":...}, ...]} arrays
//   - a bare JSON string
//   - anything else becomes a single text block holding the JSON dump
func Normalize(raw json.RawMessage) *Result {
	var mcp mcpResult
	if err := json.Unmarshal(raw, &mcp); err == nil && len(mcp.Content) > 0 {
		blocks := make([]Content, 0, len(mcp.Content))
		for _, c := range mcp.Content {
			if c.Type == "text" || c.Type == "" {
				blocks = append(blocks, Content{Kind: KindText, Text: c.Text})
				continue
			}
			payload, err := json.Marshal(c)
			if err != nil {
				payload = raw
			}
			blocks = append(blocks, Content{Kind: KindOther, Raw: payload})
		}
		return Success(blocks...)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Text(s)
	}

	// Unknown shape: stringified dump so the caller still sees something useful.
	return Text(string(raw))
}
