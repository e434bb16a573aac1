package engine

import (
	"sort"
	"time"

	"github.com/agent-observatory/backend/internal/event"
	"github.com/agent-observatory/backend/internal/session"
)

// Snapshot is the full cross-session state published to the rendering
// collaborator. It is self-describing: consumers never need to cross-
// reference prior snapshots, though they may diff for animation purposes.
type Snapshot struct {
	Sessions         []*SessionSummary       `json:"sessions"`
	CurrentSessionID string                  `json:"currentSessionId,omitempty"`
	Agents           []*session.Agent        `json:"agents"`
	Timeline         []session.TimelineEntry `json:"timeline"`
	Files            []*session.FileAccess   `json:"files"`
	Totals           session.Stats           `json:"totals"`
	GeneratedAt      time.Time               `json:"generatedAt"`
}

// SessionSummary is the per-session slice of a snapshot.
type SessionSummary struct {
	ID             string         `json:"id"`
	Source         event.Source   `json:"source"`
	Status         session.Status `json:"status"`
	Model          string         `json:"model,omitempty"`
	StartedAt      time.Time      `json:"startedAt"`
	EndedAt        *time.Time     `json:"endedAt,omitempty"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
	AgentCount     int            `json:"agentCount"`
	Stats          session.Stats  `json:"stats"`
}

// Snapshot assembles the current published view. Safe to call from any
// goroutine.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(time.Now())
}

// snapshotLocked builds the aggregate view. Caller holds e.mu. Everything
// placed in the snapshot is copied out of live state, so consumers can
// retain it while the engine keeps mutating.
func (e *Engine) snapshotLocked(now time.Time) *Snapshot {
	sessions := e.store.All()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	snap := &Snapshot{
		Sessions:    make([]*SessionSummary, 0, len(sessions)),
		Totals:      e.store.CarryOver(),
		GeneratedAt: now,
	}

	var current, mostRecent *session.Session
	var timeline []session.TimelineEntry
	var files []*session.FileAccess

	for _, sess := range sessions {
		maskedID := e.filter.MaskSessionID(sess.ID)

		summary := &SessionSummary{
			ID:             maskedID,
			Source:         sess.Source,
			Status:         sess.Status,
			Model:          sess.Model,
			StartedAt:      sess.StartedAt,
			LastActivityAt: sess.LastActivityAt,
			AgentCount:     len(sess.Agents),
			Stats:          sess.Stats,
		}
		if sess.EndedAt != nil {
			t := *sess.EndedAt
			summary.EndedAt = &t
		}
		snap.Sessions = append(snap.Sessions, summary)
		snap.Totals.Add(sess.Stats)

		if current == nil && sess.Status == session.Active {
			current = sess
		}
		if mostRecent == nil || sess.LastActivityAt.After(mostRecent.LastActivityAt) {
			mostRecent = sess
		}

		for _, a := range sess.Agents {
			snap.Agents = append(snap.Agents, cloneAgent(a, maskedID, e.cfg.Core.MaxToolCallsPerAgent))
		}

		for _, entry := range sess.Timeline {
			entry.SessionID = maskedID
			timeline = append(timeline, entry)
		}

		for _, f := range sess.Files {
			if !e.filter.AllowsPath(f.Path) {
				continue
			}
			fc := *f
			fc.Path = e.filter.MaskPath(f.Path)
			fc.SessionID = maskedID
			files = append(files, &fc)
		}
	}

	if current == nil {
		current = mostRecent
	}
	if current != nil {
		snap.CurrentSessionID = e.filter.MaskSessionID(current.ID)
	}

	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Time.Before(timeline[j].Time)
	})
	if max := e.cfg.Core.MaxTimeline; len(timeline) > max {
		timeline = timeline[len(timeline)-max:]
	}
	snap.Timeline = timeline

	sort.Slice(files, func(i, j int) bool {
		return files[i].LastAccess.After(files[j].LastAccess)
	})
	if max := e.cfg.Core.MaxFiles; len(files) > max {
		files = files[:max]
	}
	snap.Files = files

	return snap
}

// cloneAgent deep-copies an agent with its tool-call history capped to the
// most recent maxCalls entries for payload-size control.
func cloneAgent(a *session.Agent, maskedSessionID string, maxCalls int) *session.Agent {
	c := *a
	c.SessionID = maskedSessionID
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		c.CompletedAt = &t
	}
	calls := a.ToolCalls
	if maxCalls > 0 && len(calls) > maxCalls {
		calls = calls[len(calls)-maxCalls:]
	}
	c.ToolCalls = make([]*session.ToolCall, len(calls))
	for i, tc := range calls {
		v := *tc
		if tc.CompletedAt != nil {
			t := *tc.CompletedAt
			v.CompletedAt = &t
		}
		c.ToolCalls[i] = &v
	}
	return &c
}
