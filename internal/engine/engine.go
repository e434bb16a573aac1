// Package engine is the event-aggregation core: it normalizes inbound
// records into session/agent mutations, derives statistics, runs the
// lifecycle pruner, and publishes snapshots. All state mutations happen
// under a single mutex so every event is processed run-to-completion
// against consistent state; broadcasting happens after the lock is
// released and never holds partially-mutated state.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agent-observatory/backend/internal/config"
	"github.com/agent-observatory/backend/internal/event"
	"github.com/agent-observatory/backend/internal/metrics"
	"github.com/agent-observatory/backend/internal/session"
)

const summaryLen = 200

// Publisher pushes snapshots to connected consumers. Implementations must
// not block: a consumer that cannot accept a message misses it and catches
// up on the next broadcast.
type Publisher interface {
	PublishEvent(ev event.Event, snap *Snapshot)
	PublishState(snap *Snapshot)
}

type Engine struct {
	mu     sync.Mutex
	cfg    *config.Config
	store  *session.Store
	pub    Publisher
	filter session.PrivacyFilter
}

func New(cfg *config.Config, store *session.Store, pub Publisher) *Engine {
	e := &Engine{
		store: store,
		pub:   pub,
	}
	e.SetConfig(cfg)
	return e
}

// SetConfig swaps the engine's configuration. Takes effect on the next
// processed event or pruner sweep; no restart required.
func (e *Engine) SetConfig(cfg *config.Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.filter = session.PrivacyFilter{
		MaskSessionIDs: cfg.Privacy.MaskSessionIDs,
		MaskFilePaths:  cfg.Privacy.MaskFilePaths,
		BlockedPaths:   cfg.Privacy.BlockedPaths,
	}
	e.mu.Unlock()
}

// Config returns the current configuration.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Ingest normalizes and processes one raw inbound record. Malformed or
// unrecognized records are dropped; the ingestion boundary always
// acknowledges regardless, so the return value only feeds metrics/logs.
func (e *Engine) Ingest(raw []byte) bool {
	ev, ok := event.Normalize(raw, time.Now())
	if !ok {
		metrics.EventsDropped.Inc()
		return false
	}
	e.Process(ev)
	return true
}

// Process applies one canonical event and broadcasts the resulting state
// together with the triggering event.
func (e *Engine) Process(ev event.Event) {
	metrics.EventsTotal.WithLabelValues(ev.Kind().String()).Inc()

	e.mu.Lock()
	changed := e.apply(ev)
	var snap *Snapshot
	if changed {
		snap = e.snapshotLocked(time.Now())
	}
	metrics.ActiveSessions.Set(float64(e.store.ActiveCount()))
	e.mu.Unlock()

	if changed && e.pub != nil {
		e.pub.PublishEvent(ev, snap)
	}
}

// apply mutates session state for one event. Caller holds e.mu.
func (e *Engine) apply(ev event.Event) bool {
	switch v := ev.(type) {
	case event.SessionStart:
		return e.applySessionStart(v)
	case event.SessionEnd:
		return e.applySessionEnd(v)
	case event.PreToolUse:
		return e.applyPreToolUse(v)
	case event.PostToolUse:
		return e.applyPostToolUse(v)
	case event.Notification:
		return e.applyNotification(v)
	}
	return false
}

func (e *Engine) applySessionStart(v event.SessionStart) bool {
	var sess *session.Session
	if _, ok := e.store.Get(v.SessionID); ok {
		// A restarted session under the same external id must not merge
		// history with the prior run.
		log.Printf("Session %s restarted, resetting state", v.SessionID)
		sess = e.store.Reset(v.SessionID, v.Time, v.Source)
	} else {
		sess = e.store.GetOrCreate(v.SessionID, v.Time, v.Source)
	}
	metrics.SessionsCreated.Inc()
	if v.Model != "" {
		sess.Model = v.Model
	}
	sess.LastActivityAt = v.Time
	sess.AppendTimeline(session.TimelineEntry{
		Time:      v.Time,
		SessionID: sess.ID,
		Kind:      "session_start",
	}, e.cfg.Core.MaxTimeline)
	return true
}

func (e *Engine) applySessionEnd(v event.SessionEnd) bool {
	sess, ok := e.store.Get(v.SessionID)
	if !ok {
		// Ending an unknown session is a no-op; a session is never created
		// just to be ended.
		return false
	}
	if sess.Status == session.Ended {
		return false
	}
	e.endSession(sess, v.Time)
	sess.AppendTimeline(session.TimelineEntry{
		Time:      v.Time,
		SessionID: sess.ID,
		Kind:      "session_end",
		Summary:   v.Reason,
	}, e.cfg.Core.MaxTimeline)
	return true
}

func (e *Engine) applyPreToolUse(v event.PreToolUse) bool {
	sess := e.ensureSession(v.SessionID, v.Time, v.Source)
	if v.Model != "" {
		sess.Model = v.Model
	}

	agent := sess.ActiveAgent()
	if agent == nil {
		agent = e.store.EnsureMain(sess, v.Time)
	}
	if agent.Model == "" && v.Model != "" {
		agent.Model = v.Model
	}

	tcID := v.ToolUseID
	if tcID == "" {
		tcID = uuid.NewString()
	}
	tc := &session.ToolCall{
		ID:        tcID,
		AgentID:   agent.ID,
		Tool:      v.ToolName,
		Input:     session.Summarize(v.ToolInput, summaryLen),
		Status:    session.CallExecuting,
		StartedAt: v.Time,
	}
	agent.ToolCalls = append(agent.ToolCalls, tc)
	agent.ToolCallCount++
	sess.RegisterPending(tc, v.ToolUseID)

	sess.Stats.ToolCalls++
	sess.Stats.Tokens += session.EstimateTokens(v.ToolInput)
	if path := session.FilePathFromInput(v.ToolName, v.ToolInput); path != "" {
		if sess.TouchFile(path, v.Time) {
			sess.Stats.FilesAccessed++
		}
	}
	added, removed := session.LineDelta(v.ToolName, v.ToolInput)
	sess.Stats.LinesAdded += added
	sess.Stats.LinesRemoved += removed

	sess.AppendTimeline(session.TimelineEntry{
		Time:      v.Time,
		SessionID: sess.ID,
		AgentID:   agent.ID,
		Kind:      "tool_start",
		Tool:      v.ToolName,
		Summary:   tc.Input,
	}, e.cfg.Core.MaxTimeline)

	// A Task invocation spawns a subagent under the agent that issued it.
	if v.ToolName == "Task" {
		sub := e.store.SpawnSubagent(sess, agent, v.ToolInput, v.Time)
		sess.AppendTimeline(session.TimelineEntry{
			Time:      v.Time,
			SessionID: sess.ID,
			AgentID:   sub.ID,
			Kind:      "agent_spawn",
			Summary:   sub.Name,
		}, e.cfg.Core.MaxTimeline)
	}
	return true
}

func (e *Engine) applyPostToolUse(v event.PostToolUse) bool {
	sess := e.ensureSession(v.SessionID, v.Time, v.Source)

	sess.Stats.Tokens += session.EstimateTokens(v.ToolResponse)

	tc := sess.MatchPending(v.ToolName, v.ToolUseID)
	if tc != nil {
		t := v.Time
		tc.CompletedAt = &t
		tc.Output = session.Summarize(v.ToolResponse, summaryLen)
		kind := "tool_end"
		if session.DetectError(v.ToolResponse) {
			tc.Status = session.CallErrored
			sess.Stats.Errors++
			kind = "tool_error"
		} else {
			tc.Status = session.CallCompleted
		}
		sess.AppendTimeline(session.TimelineEntry{
			Time:      v.Time,
			SessionID: sess.ID,
			AgentID:   tc.AgentID,
			Kind:      kind,
			Tool:      v.ToolName,
		}, e.cfg.Core.MaxTimeline)
	}

	// A completed Task means its subagent finished: the most recently
	// spawned still-active subagent is the one that just returned.
	if v.ToolName == "Task" {
		if sub := lastActiveSubagent(sess); sub != nil {
			sub.Complete(v.Time)
			sess.AppendTimeline(session.TimelineEntry{
				Time:      v.Time,
				SessionID: sess.ID,
				AgentID:   sub.ID,
				Kind:      "agent_complete",
				Summary:   sub.Name,
			}, e.cfg.Core.MaxTimeline)
		}
	}
	return true
}

func (e *Engine) applyNotification(v event.Notification) bool {
	sess := e.ensureSession(v.SessionID, v.Time, v.Source)
	if v.Model != "" {
		sess.Model = v.Model
	}
	sess.Stats.Turns++
	sess.AppendTimeline(session.TimelineEntry{
		Time:      v.Time,
		SessionID: sess.ID,
		Kind:      "notification",
		Summary:   session.Summarize(v.Message, summaryLen),
	}, e.cfg.Core.MaxTimeline)
	return true
}

// ensureSession resolves the session for a tool/notification event,
// creating it implicitly for unseen ids (events may legitimately race
// ahead of session_start) and reactivating it if it had ended.
func (e *Engine) ensureSession(id string, ts time.Time, source event.Source) *session.Session {
	sess, existed := e.store.Get(id)
	if !existed {
		sess = e.store.GetOrCreate(id, ts, source)
		metrics.SessionsCreated.Inc()
	}
	e.store.Reactivate(sess, ts)
	return sess
}

// endSession marks a session ended and completes every agent still active
// in it, all stamped with the same timestamp.
func (e *Engine) endSession(sess *session.Session, ts time.Time) {
	sess.Status = session.Ended
	t := ts
	sess.EndedAt = &t
	for _, a := range sess.Agents {
		if a.Status == session.AgentActive {
			a.Complete(ts)
		}
	}
}

// DisconnectSource ends every session tagged with the given source, leaving
// sessions from other platforms untouched. Returns the number of sessions
// ended. Used when one platform's supervisor detaches.
func (e *Engine) DisconnectSource(src event.Source) int {
	now := time.Now()

	e.mu.Lock()
	count := 0
	for _, sess := range e.store.All() {
		if sess.Source != src || sess.Status != session.Active {
			continue
		}
		e.endSession(sess, now)
		count++
	}
	var snap *Snapshot
	if count > 0 {
		snap = e.snapshotLocked(now)
	}
	metrics.ActiveSessions.Set(float64(e.store.ActiveCount()))
	e.mu.Unlock()

	if count > 0 {
		log.Printf("Disconnected %d session(s) for source %s", count, src)
		if e.pub != nil {
			e.pub.PublishState(snap)
		}
	}
	return count
}

func lastActiveSubagent(sess *session.Session) *session.Agent {
	for i := len(sess.Agents) - 1; i >= 0; i-- {
		a := sess.Agents[i]
		if a.Type == session.Subagent && a.Status == session.AgentActive {
			return a
		}
	}
	return nil
}
