// ABOUTME: Canonical result envelope returned for every tool call.
// ABOUTME: Callers branch on OK instead of the backend's transport type.

package result

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentKind classifies a content block within a successful result.
type ContentKind string

const (
	// KindText is a plain text content block.
	KindText ContentKind = "text"
	// KindOther is a content block the normalizer could not map to text.
	// The original payload is preserved in Raw.
	KindOther ContentKind = "other"
)

// Content is one block of a successful tool result.
type Content struct {
	Kind ContentKind
	Text string
	Raw  json.RawMessage // original payload for KindOther blocks
}

// Result is the canonical envelope for a tool call outcome.
//
// OK=true carries an ordered list of content blocks. OK=false carries a
// human-readable Reason, plus the raw backend output in Raw when the failure
// was caused by output we could not interpret.
type Result struct {
	OK      bool
	Content []Content
	Reason  string
	Raw     string
}

// Success builds a successful result from the given content blocks.
func Success(blocks ...Content) *Result {
	return &Result{OK: true, Content: blocks}
}

// Text builds a successful result with a single text block.
func Text(text string) *Result {
	return Success(Content{Kind: KindText, Text: text})
}

// Failure builds a failed result with the given reason.
func Failure(reason string) *Result {
	return &Result{OK: false, Reason: reason}
}

// Failuref builds a failed result with a formatted reason.
func Failuref(format string, args ...any) *Result {
	return Failure(fmt.Sprintf(format, args...))
}

// FailureRaw builds a failed result that preserves the raw backend output
// for diagnostics.
func FailureRaw(reason, raw string) *Result {
	return &Result{OK: false, Reason: reason, Raw: raw}
}

// Joined concatenates the text of all text blocks, separated by newlines.
// Returns the failure reason for failed results.
func (r *Result) Joined() string {
	if !r.OK {
		return r.Reason
	}
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Kind == KindText {
			parts = append(parts, c.Text)
		} else {
			parts = append(parts, string(c.Raw))
		}
	}
	return strings.Join(parts, "\n")
}
