package event

import (
	"encoding/json"
	"strings"
	"time"
)

// record is the loose wire shape producers POST. Hook shims across platforms
// disagree on field casing, so both spellings are accepted and coalesced.
type record struct {
	Phase         string          `json:"phase"`
	HookEventName string          `json:"hook_event_name"`
	Timestamp     json.RawMessage `json:"timestamp"`
	SessionID     string          `json:"sessionId"`
	SessionIDAlt  string          `json:"session_id"`
	Source        string          `json:"source"`
	ToolName      string          `json:"toolName"`
	ToolNameAlt   string          `json:"tool_name"`
	ToolUseID     string          `json:"toolUseId"`
	ToolUseIDAlt  string          `json:"tool_use_id"`
	ToolInput     map[string]any  `json:"toolInput"`
	ToolInputAlt  map[string]any  `json:"tool_input"`
	ToolResponse  any             `json:"toolResponse"`
	ToolRespAlt   any             `json:"tool_response"`
	Thinking      string          `json:"thinking"`
	ThinkingAlt   string          `json:"thinkingText"`
	Message       string          `json:"message"`
	Model         string          `json:"model"`
	Reason        string          `json:"reason"`
}

// phaseAliases maps hook-style event names onto the five canonical phases.
// Claude hooks report PascalCase names ("PreToolUse"); the Codex shim sends
// snake_case. "Stop" is the Claude name for end-of-turn and is treated as a
// soft session end.
var phaseAliases = map[string]Phase{
	"session_start": SessionStartPhase,
	"sessionstart":  SessionStartPhase,
	"session_end":   SessionEndPhase,
	"sessionend":    SessionEndPhase,
	"stop":          SessionEndPhase,
	"pre":           PreToolPhase,
	"pretooluse":    PreToolPhase,
	"pre_tool_use":  PreToolPhase,
	"post":          PostToolPhase,
	"posttooluse":   PostToolPhase,
	"post_tool_use": PostToolPhase,
	"notification":  NotificationPhase,
}

// Normalize shapes one raw JSON record into a canonical event. Normalization
// is best-effort: records that fail to parse, lack a session ID, or carry an
// unrecognized phase are dropped (ok=false) without surfacing an error to
// the producer.
func Normalize(raw []byte, now time.Time) (Event, bool) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}

	phaseName := r.Phase
	if phaseName == "" {
		phaseName = r.HookEventName
	}
	phase, ok := phaseAliases[strings.ToLower(phaseName)]
	if !ok {
		return nil, false
	}

	sessionID := coalesce(r.SessionID, r.SessionIDAlt)
	if sessionID == "" {
		return nil, false
	}

	source := Source(r.Source)
	if source == "" {
		source = InferSource(sessionID)
	}

	meta := Meta{
		SessionID: sessionID,
		Source:    source,
		Time:      parseTimestamp(r.Timestamp, now),
	}

	switch phase {
	case SessionStartPhase:
		return SessionStart{Meta: meta, Model: r.Model}, true
	case SessionEndPhase:
		return SessionEnd{Meta: meta, Reason: r.Reason}, true
	case PreToolPhase:
		toolName := coalesce(r.ToolName, r.ToolNameAlt)
		if toolName == "" {
			return nil, false
		}
		input := r.ToolInput
		if input == nil {
			input = r.ToolInputAlt
		}
		return PreToolUse{
			Meta:      meta,
			ToolName:  toolName,
			ToolUseID: coalesce(r.ToolUseID, r.ToolUseIDAlt),
			ToolInput: input,
			Model:     r.Model,
		}, true
	case PostToolPhase:
		toolName := coalesce(r.ToolName, r.ToolNameAlt)
		if toolName == "" {
			return nil, false
		}
		resp := r.ToolResponse
		if resp == nil {
			resp = r.ToolRespAlt
		}
		return PostToolUse{
			Meta:         meta,
			ToolName:     toolName,
			ToolUseID:    coalesce(r.ToolUseID, r.ToolUseIDAlt),
			ToolResponse: resp,
		}, true
	case NotificationPhase:
		return Notification{
			Meta:         meta,
			Message:      r.Message,
			ThinkingText: coalesce(r.Thinking, r.ThinkingAlt),
			Model:        r.Model,
		}, true
	}
	return nil, false
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// parseTimestamp accepts RFC3339 strings and epoch milliseconds; anything
// else (including absence) defaults to ingestion time.
func parseTimestamp(raw json.RawMessage, now time.Time) time.Time {
	if len(raw) == 0 {
		return now
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		return now
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(ms)
	}
	return now
}
