package session

import (
	"fmt"
	"time"
)

const maxSubagentNameLen = 24

// Main returns the session's main agent, or nil before one exists. A
// session never holds more than one agent of type main.
func (s *Session) Main() *Agent {
	for _, a := range s.Agents {
		if a.Type == MainAgent {
			return a
		}
	}
	return nil
}

// ActiveAgent returns the agent new tool calls should attribute to: the
// most recently appended agent still active, scanning from the end of the
// list. Tool calls belong to the deepest still-running subagent under
// depth-first delegation, not always the main agent. Falls back to the
// first agent when none are active, and nil when the session has no agents.
func (s *Session) ActiveAgent() *Agent {
	for i := len(s.Agents) - 1; i >= 0; i-- {
		if s.Agents[i].Status == AgentActive {
			return s.Agents[i]
		}
	}
	if len(s.Agents) > 0 {
		return s.Agents[0]
	}
	return nil
}

// Find returns the agent with the given id, or nil.
func (s *Session) Find(id string) *Agent {
	for _, a := range s.Agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// EnsureMain returns the session's main agent, creating it lazily with a
// pooled display name and random presentational attributes.
func (st *Store) EnsureMain(sess *Session, ts time.Time) *Agent {
	if main := sess.Main(); main != nil {
		return main
	}
	a := &Agent{
		ID:        st.newAgentID(),
		Name:      st.names.Acquire(),
		Color:     st.names.RandomColor(),
		Shape:     st.names.RandomShape(),
		Type:      MainAgent,
		SessionID: sess.ID,
		Status:    AgentActive,
		StartedAt: ts,
	}
	sess.Agents = append(sess.Agents, a)
	return a
}

// SpawnSubagent creates a subagent under parent, named from the spawn
// request's task description and subagent-type label. The new agent is
// appended to the session's list, so spawn order is preserved for rendering.
func (st *Store) SpawnSubagent(sess *Session, parent *Agent, input map[string]any, ts time.Time) *Agent {
	subtype, _ := input["subagent_type"].(string)
	name := subagentName(input, subtype)
	a := &Agent{
		ID:           st.newAgentID(),
		Name:         name,
		Color:        st.names.RandomColor(),
		Shape:        st.names.RandomShape(),
		Type:         Subagent,
		SubagentType: subtype,
		SessionID:    sess.ID,
		Status:       AgentActive,
		StartedAt:    ts,
	}
	if parent != nil {
		a.ParentID = parent.ID
	}
	sess.Agents = append(sess.Agents, a)
	return a
}

// newAgentID allocates an identifier unique for the store's lifetime.
func (st *Store) newAgentID() string {
	st.nextAgentID++
	return fmt.Sprintf("agent-%d", st.nextAgentID)
}

func subagentName(input map[string]any, subtype string) string {
	if desc, ok := input["description"].(string); ok && desc != "" {
		if len(desc) > maxSubagentNameLen {
			return desc[:maxSubagentNameLen] + "…"
		}
		return desc
	}
	if subtype != "" {
		return subtype
	}
	return "subagent"
}
