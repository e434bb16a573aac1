package event

import (
	"encoding/json"
	"time"
)

// Source identifies the platform that produced an event.
type Source string

const (
	SourceClaude Source = "claude"
	SourceCodex  Source = "codex"
)

// codexIDPrefix marks session IDs minted by the Codex shim. Claude session
// IDs are plain UUIDs with no prefix.
const codexIDPrefix = "codex-"

// InferSource derives the platform from the session-id naming convention.
// Used when a producer omits the source field.
func InferSource(sessionID string) Source {
	if len(sessionID) >= len(codexIDPrefix) && sessionID[:len(codexIDPrefix)] == codexIDPrefix {
		return SourceCodex
	}
	return SourceClaude
}

// Phase classifies inbound events into the five lifecycle categories.
type Phase int

const (
	SessionStartPhase Phase = iota
	SessionEndPhase
	PreToolPhase
	PostToolPhase
	NotificationPhase
)

var phaseNames = map[Phase]string{
	SessionStartPhase: "session_start",
	SessionEndPhase:   "session_end",
	PreToolPhase:      "pre",
	PostToolPhase:     "post",
	NotificationPhase: "notification",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Meta carries the fields common to every event variant.
type Meta struct {
	SessionID string    `json:"sessionId"`
	Source    Source    `json:"source"`
	Time      time.Time `json:"timestamp"`
}

// EventMeta satisfies part of the Event interface for embedding variants.
func (m Meta) EventMeta() Meta { return m }

// Event is the canonical normalized form of an inbound record. It is a
// closed union: the only implementations are the five variants below, one
// per phase, each carrying only the fields that phase uses.
type Event interface {
	Kind() Phase
	EventMeta() Meta
}

type SessionStart struct {
	Meta
	Model string `json:"model,omitempty"`
}

func (SessionStart) Kind() Phase { return SessionStartPhase }

type SessionEnd struct {
	Meta
	Reason string `json:"reason,omitempty"`
}

func (SessionEnd) Kind() Phase { return SessionEndPhase }

type PreToolUse struct {
	Meta
	ToolName  string         `json:"toolName"`
	ToolUseID string         `json:"toolUseId,omitempty"`
	ToolInput map[string]any `json:"toolInput,omitempty"`
	Model     string         `json:"model,omitempty"`
}

func (PreToolUse) Kind() Phase { return PreToolPhase }

type PostToolUse struct {
	Meta
	ToolName     string `json:"toolName"`
	ToolUseID    string `json:"toolUseId,omitempty"`
	ToolResponse any    `json:"toolResponse,omitempty"`
}

func (PostToolUse) Kind() Phase { return PostToolPhase }

type Notification struct {
	Meta
	Message      string `json:"message,omitempty"`
	ThinkingText string `json:"thinkingText,omitempty"`
	Model        string `json:"model,omitempty"`
}

func (Notification) Kind() Phase { return NotificationPhase }
