// Package memlog persists each user's conversation as an append-only JSON
// Lines log, one exchange record per line.
package memlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Record is one user/assistant exchange. Tags are derived from the text at
// append time and may be empty.
type Record struct {
	User      string   `json:"user"`
	Assistant string   `json:"assistant"`
	Tags      []string `json:"tags"`
}

// Render formats the record the way it is shown to the model and embedded.
func (r Record) Render() string {
	return "User: " + r.User + "\nAssistant: " + r.Assistant
}

// RenderFlat is Render with newlines inside each side collapsed to spaces
// and surrounding whitespace trimmed.
func (r Record) RenderFlat() string {
	return "User: " + flatten(r.User) + "\nAssistant: " + flatten(r.Assistant)
}

func flatten(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// encode marshals r as a single JSON line without HTML escaping.
func (r Record) encode() ([]byte, error) {
	if r.Tags == nil {
		r.Tags = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	// Encode terminates with '\n'; the string values cannot contain a raw
	// newline, so the result is exactly one line.
	return buf.Bytes(), nil
}

// ErrCorruptLine marks a stored line that is not a record.
var ErrCorruptLine = errors.New("corrupt record line")

// ParseResult is the outcome of parsing one stored line: either a Record or
// the reason the line was skipped.
type ParseResult struct {
	Line   int
	Record Record
	Err    error
}

// OK reports whether the line held a record.
func (p ParseResult) OK() bool { return p.Err == nil }

// wireRecord accepts the stored shape loosely: any field may be missing and
// unknown fields are ignored.
type wireRecord struct {
	User      *string         `json:"user"`
	Assistant *string         `json:"assistant"`
	Tags      json.RawMessage `json:"tags"`
}

// ParseLine decodes one stored line. Blank lines, non-objects and lines
// whose user/assistant fields are not strings yield ErrCorruptLine. A
// missing or malformed tags field yields a record with no tags.
func ParseLine(lineNo int, line []byte) ParseResult {
	res := ParseResult{Line: lineNo}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		res.Err = fmt.Errorf("%w %d: not a JSON object", ErrCorruptLine, lineNo)
		return res
	}

	var w wireRecord
	if err := json.Unmarshal(trimmed, &w); err != nil {
		res.Err = fmt.Errorf("%w %d: %v", ErrCorruptLine, lineNo, err)
		return res
	}

	if w.User != nil {
		res.Record.User = *w.User
	}
	if w.Assistant != nil {
		res.Record.Assistant = *w.Assistant
	}
	res.Record.Tags = parseTags(w.Tags)
	return res
}

func parseTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil || tags == nil {
		return []string{}
	}
	return tags
}
