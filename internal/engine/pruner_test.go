package engine

import (
	"testing"
	"time"

	"github.com/agent-observatory/backend/internal/event"
	"github.com/agent-observatory/backend/internal/session"
)

func TestSweepDiscardsGhost(t *testing.T) {
	e, st, pub := newTestEngine(nil)

	// Notification-only session: zero tool calls makes it a ghost candidate.
	e.Process(event.Notification{Meta: meta("ghost", t0)})

	e.Sweep(t0.Add(31 * time.Second))

	if _, ok := st.Get("ghost"); ok {
		t.Error("ghost session still present after sweep")
	}
	if got := st.CarryOver(); got.Turns != 0 || got.Tokens != 0 {
		t.Errorf("ghost stats folded into carry-over: %+v", got)
	}
	if len(pub.states) != 1 {
		t.Errorf("state broadcasts = %d, want 1", len(pub.states))
	}
}

func TestSweepKeepsRecentGhostCandidate(t *testing.T) {
	e, st, pub := newTestEngine(nil)

	e.Process(event.Notification{Meta: meta("young", t0)})

	e.Sweep(t0.Add(10 * time.Second))

	if _, ok := st.Get("young"); !ok {
		t.Error("session within ghost timeout was removed")
	}
	if len(pub.states) != 0 {
		t.Errorf("state broadcasts = %d, want 0 when nothing changed", len(pub.states))
	}
}

func TestSweepMarksStale(t *testing.T) {
	e, st, pub := newTestEngine(nil)

	// Two sessions with tool activity, both idle past the stale timeout.
	for _, id := range []string{"s1", "s2"} {
		e.Process(event.PreToolUse{Meta: meta(id, t0), ToolName: "Task",
			ToolInput: map[string]any{"description": "work"}})
	}

	swept := t0.Add(6 * time.Minute)
	e.Sweep(swept)

	for _, id := range []string{"s1", "s2"} {
		sess, ok := st.Get(id)
		if !ok {
			t.Fatalf("stale session %s was deleted, want ended", id)
		}
		if sess.Status != session.Ended {
			t.Errorf("%s status = %s, want ended", id, sess.Status)
		}
		if sess.EndedAt == nil || !sess.EndedAt.Equal(swept) {
			t.Errorf("%s EndedAt = %v, want sweep time", id, sess.EndedAt)
		}
		for _, a := range sess.Agents {
			if a.Status != session.AgentCompleted {
				t.Errorf("%s agent %s still active after stale end", id, a.ID)
			}
		}
	}
	// One coalesced broadcast regardless of how many sessions expired.
	if len(pub.states) != 1 {
		t.Errorf("state broadcasts = %d, want 1", len(pub.states))
	}
}

func TestSweepRetentionFoldsIntoCarryOver(t *testing.T) {
	e, st, pub := newTestEngine(nil)

	e.Process(event.SessionStart{Meta: meta("s1", t0)})
	e.Process(event.PreToolUse{Meta: meta("s1", t0.Add(time.Second)), ToolName: "Bash"})
	ended := t0.Add(2 * time.Second)
	e.Process(event.SessionEnd{Meta: meta("s1", ended)})

	// Within retention: the ended session stays visible.
	e.Sweep(ended.Add(30 * time.Second))
	if _, ok := st.Get("s1"); !ok {
		t.Fatal("ended session deleted before retention elapsed")
	}

	// Past retention: deleted, statistics folded.
	e.Sweep(ended.Add(61 * time.Second))
	if _, ok := st.Get("s1"); ok {
		t.Error("ended session still present after retention elapsed")
	}
	if got := st.CarryOver().ToolCalls; got != 1 {
		t.Errorf("carry-over toolCalls = %d, want 1", got)
	}
	if len(pub.states) != 1 {
		t.Errorf("state broadcasts = %d, want 1 (only the deleting sweep)", len(pub.states))
	}
}

func TestSweepLeavesActiveRecentAlone(t *testing.T) {
	e, st, pub := newTestEngine(nil)

	e.Process(event.PreToolUse{Meta: meta("busy", t0), ToolName: "Bash"})

	e.Sweep(t0.Add(time.Minute))

	sess, ok := st.Get("busy")
	if !ok || sess.Status != session.Active {
		t.Error("recently active session disturbed by sweep")
	}
	if len(pub.states) != 0 {
		t.Errorf("state broadcasts = %d, want 0", len(pub.states))
	}
}
