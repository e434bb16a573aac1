package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Stats holds the derived counters for one session, plus one global
// carry-over instance that absorbs deleted sessions' totals. Every field is
// monotonically non-decreasing for the lifetime of a session.
type Stats struct {
	ToolCalls     int       `json:"toolCalls"`
	FilesAccessed int       `json:"filesAccessed"`
	Tokens        int       `json:"tokens"`
	LinesAdded    int       `json:"linesAdded"`
	LinesRemoved  int       `json:"linesRemoved"`
	Turns         int       `json:"turns"`
	Errors        int       `json:"errors"`
	StartedAt     time.Time `json:"startedAt"`
}

// Add folds other's counters into s additively. Used both for the carry-over
// fold on session deletion and for snapshot totals.
func (s *Stats) Add(other Stats) {
	s.ToolCalls += other.ToolCalls
	s.FilesAccessed += other.FilesAccessed
	s.Tokens += other.Tokens
	s.LinesAdded += other.LinesAdded
	s.LinesRemoved += other.LinesRemoved
	s.Turns += other.Turns
	s.Errors += other.Errors
}

// EstimateTokens approximates the token cost of an arbitrary payload at one
// token per four characters of its JSON serialization. Crude but consistent,
// which is all the dashboard needs.
func EstimateTokens(v any) int {
	if v == nil {
		return 0
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data) / 4
}

// fileTools are the tool names whose input carries a file path worth
// tracking for the file-touch display.
var fileTools = map[string]bool{
	"Read":         true,
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// FilePathFromInput extracts the touched path from a file tool's input.
// Returns "" for non-file tools or inputs without a recognizable path.
func FilePathFromInput(tool string, input map[string]any) string {
	if !fileTools[tool] {
		return ""
	}
	for _, key := range []string{"file_path", "notebook_path", "path"} {
		if p, ok := input[key].(string); ok && p != "" {
			return p
		}
	}
	return ""
}

// LineDelta computes the lines added/removed attributable to a tool input.
// Write counts the full content as added; Edit and MultiEdit compare old and
// new text line counts and attribute the signed difference.
func LineDelta(tool string, input map[string]any) (added, removed int) {
	switch tool {
	case "Write":
		if content, ok := input["content"].(string); ok && content != "" {
			added = strings.Count(content, "\n") + 1
		}
	case "Edit":
		added, removed = editDelta(input)
	case "MultiEdit":
		edits, ok := input["edits"].([]any)
		if !ok {
			return 0, 0
		}
		for _, e := range edits {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			a, r := editDelta(em)
			added += a
			removed += r
		}
	}
	return added, removed
}

func editDelta(input map[string]any) (added, removed int) {
	oldText, _ := input["old_string"].(string)
	newText, _ := input["new_string"].(string)
	if oldText == "" && newText == "" {
		return 0, 0
	}
	diff := lineCount(newText) - lineCount(oldText)
	if diff > 0 {
		return diff, 0
	}
	return 0, -diff
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

const (
	// errorScanWindow bounds how far into a response the phrase scan looks.
	errorScanWindow = 500
	// errorScanLimit skips the scan entirely for large responses (a long
	// file body that merely mentions "error" is not a failure).
	errorScanLimit = 2000
)

var errorPhrases = []string{
	"error:",
	"failed:",
	"exception:",
	"permission denied",
	"command not found",
	"no such file or directory",
}

// DetectError reports whether a tool response indicates the tool itself
// failed. A structured error indicator always wins; otherwise the first few
// hundred characters of short responses are scanned for failure phrases.
// Deliberately conservative to avoid false positives.
func DetectError(resp any) bool {
	if m, ok := resp.(map[string]any); ok {
		if v, ok := m["is_error"].(bool); ok {
			return v
		}
		if v, ok := m["success"].(bool); ok && !v {
			return true
		}
		if _, ok := m["error"]; ok {
			return true
		}
	}

	text := Stringify(resp)
	if text == "" || len(text) > errorScanLimit {
		return false
	}
	if len(text) > errorScanWindow {
		text = text[:errorScanWindow]
	}
	text = strings.ToLower(text)
	for _, phrase := range errorPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// Stringify renders an arbitrary payload for scanning and summaries.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Summarize truncates a payload's string form for tool-call display.
func Summarize(v any, max int) string {
	s := Stringify(v)
	if max > 0 && len(s) > max {
		return s[:max] + "…"
	}
	return s
}
