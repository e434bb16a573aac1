package session

import (
	"encoding/json"
	"time"

	"github.com/agent-observatory/backend/internal/event"
)

// Status is the lifecycle state of a session.
type Status int

const (
	Active Status = iota
	Ended
)

var statusNames = map[Status]string{
	Active: "active",
	Ended:  "ended",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// AgentType distinguishes the single top-level agent from spawned workers.
type AgentType int

const (
	MainAgent AgentType = iota
	Subagent
)

var agentTypeNames = map[AgentType]string{
	MainAgent: "main",
	Subagent:  "subagent",
}

func (t AgentType) String() string {
	if n, ok := agentTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

func (t AgentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// AgentStatus transitions active → completed exactly once per agent, except
// that reactivating an ended session revives its completed main agent.
type AgentStatus int

const (
	AgentActive AgentStatus = iota
	AgentCompleted
)

var agentStatusNames = map[AgentStatus]string{
	AgentActive:    "active",
	AgentCompleted: "completed",
}

func (s AgentStatus) String() string {
	if n, ok := agentStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s AgentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ToolCallStatus tracks one invocation from pre to post.
type ToolCallStatus int

const (
	CallExecuting ToolCallStatus = iota
	CallCompleted
	CallErrored
)

var toolCallStatusNames = map[ToolCallStatus]string{
	CallExecuting: "executing",
	CallCompleted: "completed",
	CallErrored:   "error",
}

func (s ToolCallStatus) String() string {
	if n, ok := toolCallStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s ToolCallStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ToolCall is one recorded tool invocation on an agent.
type ToolCall struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agentId"`
	Tool        string         `json:"tool"`
	Input       string         `json:"input,omitempty"`
	Output      string         `json:"output,omitempty"`
	Status      ToolCallStatus `json:"status"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Agent is one participant within a session. Subagents form a tree under
// the main agent via ParentID; the agent list is in spawn order, which
// doubles as tree pre-order.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Color         string      `json:"color"`
	Shape         string      `json:"shape"`
	Type          AgentType   `json:"type"`
	SubagentType  string      `json:"subagentType,omitempty"`
	Model         string      `json:"model,omitempty"`
	ParentID      string      `json:"parentId,omitempty"`
	SessionID     string      `json:"sessionId"`
	Status        AgentStatus `json:"status"`
	StartedAt     time.Time   `json:"startedAt"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
	ToolCalls     []*ToolCall `json:"toolCalls,omitempty"`
	ToolCallCount int         `json:"toolCallCount"`
}

// Complete marks the agent completed at ts. A second call is a no-op so the
// completion timestamp is never overwritten.
func (a *Agent) Complete(ts time.Time) {
	if a.Status == AgentCompleted {
		return
	}
	a.Status = AgentCompleted
	t := ts
	a.CompletedAt = &t
}

// FileAccess records one touched file path with an access counter.
type FileAccess struct {
	Path       string    `json:"path"`
	SessionID  string    `json:"sessionId"`
	Accesses   int       `json:"accesses"`
	LastAccess time.Time `json:"lastAccess"`
}

// TimelineEntry is one derived log line for the dashboard's global feed.
type TimelineEntry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"sessionId"`
	AgentID   string    `json:"agentId,omitempty"`
	Kind      string    `json:"kind"`
	Tool      string    `json:"tool,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// Session is one agent-hosting conversation/run.
type Session struct {
	ID             string                 `json:"id"`
	Source         event.Source          `json:"source"`
	Status         Status                 `json:"status"`
	Model          string                 `json:"model,omitempty"`
	StartedAt      time.Time              `json:"startedAt"`
	EndedAt        *time.Time             `json:"endedAt,omitempty"`
	LastActivityAt time.Time              `json:"lastActivityAt"`
	Agents         []*Agent               `json:"agents"`
	Timeline       []TimelineEntry        `json:"timeline"`
	Files          map[string]*FileAccess `json:"files"`
	Stats          Stats                  `json:"stats"`

	// pending maps in-flight tool calls. Keys are producer-supplied call
	// IDs when available; calls without an ID fall back to a per-tool-name
	// key, where a second pre of the same name replaces the first marker.
	pending map[string]*ToolCall
}

// RegisterPending records an in-flight tool call for later post matching.
func (s *Session) RegisterPending(tc *ToolCall, toolUseID string) {
	if s.pending == nil {
		s.pending = make(map[string]*ToolCall)
	}
	s.pending[pendingKey(tc.Tool, toolUseID)] = tc
}

// MatchPending resolves a post event against the in-flight calls: by call ID
// first, then by the tool-name fallback key, then by scanning for the most
// recently started executing call of that tool. Returns nil when nothing
// matches (a post with no preceding pre is silently ignored).
func (s *Session) MatchPending(toolName, toolUseID string) *ToolCall {
	if toolUseID != "" {
		if tc, ok := s.pending[toolUseID]; ok {
			delete(s.pending, toolUseID)
			return tc
		}
	}
	nameKey := pendingKey(toolName, "")
	if tc, ok := s.pending[nameKey]; ok {
		delete(s.pending, nameKey)
		return tc
	}
	var bestKey string
	var best *ToolCall
	for key, tc := range s.pending {
		if tc.Tool != toolName {
			continue
		}
		if best == nil || tc.StartedAt.After(best.StartedAt) {
			best, bestKey = tc, key
		}
	}
	if best != nil {
		delete(s.pending, bestKey)
	}
	return best
}

// PendingCount reports the number of in-flight tool calls.
func (s *Session) PendingCount() int { return len(s.pending) }

func pendingKey(toolName, toolUseID string) string {
	if toolUseID != "" {
		return toolUseID
	}
	return "tool:" + toolName
}

// AppendTimeline adds an entry, trimming the oldest entries beyond max.
func (s *Session) AppendTimeline(e TimelineEntry, max int) {
	s.Timeline = append(s.Timeline, e)
	if max > 0 && len(s.Timeline) > max {
		s.Timeline = s.Timeline[len(s.Timeline)-max:]
	}
}

// TouchFile records an access to path, creating the node on first touch.
// Reports whether the path was new to this session.
func (s *Session) TouchFile(path string, ts time.Time) bool {
	if s.Files == nil {
		s.Files = make(map[string]*FileAccess)
	}
	if f, ok := s.Files[path]; ok {
		f.Accesses++
		f.LastAccess = ts
		return false
	}
	s.Files[path] = &FileAccess{Path: path, SessionID: s.ID, Accesses: 1, LastAccess: ts}
	return true
}
