package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/agent-observatory/backend/internal/event"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testStore() *Store {
	return NewStoreWithRand(rand.New(rand.NewSource(1)))
}

func TestGetOrCreate(t *testing.T) {
	s := testStore()

	sess := s.GetOrCreate("s1", t0, event.SourceClaude)
	if sess == nil {
		t.Fatal("GetOrCreate returned nil")
	}
	if sess.Status != Active {
		t.Errorf("status = %s, want active", sess.Status)
	}
	if !sess.StartedAt.Equal(t0) {
		t.Errorf("StartedAt = %s, want %s", sess.StartedAt, t0)
	}
	if sess.Source != event.SourceClaude {
		t.Errorf("source = %s, want claude", sess.Source)
	}

	again := s.GetOrCreate("s1", t0.Add(time.Minute), event.SourceCodex)
	if again != sess {
		t.Error("GetOrCreate created a second session for the same id")
	}
	if again.Source != event.SourceClaude {
		t.Errorf("existing source overwritten: got %s", again.Source)
	}
}

func TestGetOrCreateBackfillsSource(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("s1", t0, "")
	s.GetOrCreate("s1", t0, event.SourceCodex)
	if sess.Source != event.SourceCodex {
		t.Errorf("source = %q, want backfilled codex", sess.Source)
	}
}

func TestReactivateEndedSession(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("s1", t0, event.SourceClaude)
	main := s.EnsureMain(sess, t0)

	end := t0.Add(time.Minute)
	sess.Status = Ended
	sess.EndedAt = &end
	main.Complete(end)

	s.Reactivate(sess, t0.Add(2*time.Minute))

	if sess.Status != Active {
		t.Errorf("status = %s, want active", sess.Status)
	}
	if sess.EndedAt != nil {
		t.Error("EndedAt not cleared on reactivation")
	}
	if main.Status != AgentActive {
		t.Errorf("main agent status = %s, want active", main.Status)
	}
	if main.CompletedAt != nil {
		t.Error("main agent CompletedAt not cleared")
	}
}

func TestReactivateLeavesSubagentsCompleted(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("s1", t0, event.SourceClaude)
	main := s.EnsureMain(sess, t0)
	sub := s.SpawnSubagent(sess, main, map[string]any{"description": "explore"}, t0)

	end := t0.Add(time.Minute)
	sess.Status = Ended
	sess.EndedAt = &end
	main.Complete(end)
	sub.Complete(end)

	s.Reactivate(sess, t0.Add(2*time.Minute))

	if sub.Status != AgentCompleted {
		t.Errorf("subagent status = %s, want completed (only main revives)", sub.Status)
	}
	if main.Status != AgentActive {
		t.Errorf("main status = %s, want active", main.Status)
	}
}

func TestReactivateActiveSessionIsNoop(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("s1", t0, event.SourceClaude)
	s.EnsureMain(sess, t0)

	later := t0.Add(time.Minute)
	s.Reactivate(sess, later)

	if sess.Status != Active {
		t.Errorf("status = %s, want active", sess.Status)
	}
	if sess.EndedAt != nil {
		t.Error("EndedAt set on active session")
	}
	if !sess.LastActivityAt.Equal(later) {
		t.Errorf("LastActivityAt = %s, want %s", sess.LastActivityAt, later)
	}
}

func TestDeleteFoldsIntoCarryOver(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("s1", t0, event.SourceClaude)
	sess.Stats.ToolCalls = 5
	sess.Stats.Errors = 1
	sess.Stats.Tokens = 1234

	s.Delete("s1")

	if _, ok := s.Get("s1"); ok {
		t.Error("session still present after Delete")
	}
	carry := s.CarryOver()
	if carry.ToolCalls != 5 {
		t.Errorf("carry-over toolCalls = %d, want 5", carry.ToolCalls)
	}
	if carry.Errors != 1 {
		t.Errorf("carry-over errors = %d, want 1", carry.Errors)
	}
	if carry.Tokens != 1234 {
		t.Errorf("carry-over tokens = %d, want 1234", carry.Tokens)
	}

	// A fresh session under the same id starts from zero.
	fresh := s.GetOrCreate("s1", t0.Add(time.Hour), event.SourceClaude)
	if fresh.Stats.ToolCalls != 0 {
		t.Errorf("fresh session toolCalls = %d, want 0", fresh.Stats.ToolCalls)
	}
}

func TestDeleteReleasesMainAgentName(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("s1", t0, event.SourceClaude)
	main := s.EnsureMain(sess, t0)
	name := main.Name

	if !s.names.InUse(name) {
		t.Fatalf("name %q not marked in use after EnsureMain", name)
	}
	s.Delete("s1")
	if s.names.InUse(name) {
		t.Errorf("name %q still in use after Delete", name)
	}
}

func TestDiscardDoesNotFold(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("ghost", t0, event.SourceClaude)
	sess.Stats.Turns = 3 // notifications only; no tool calls

	s.Discard("ghost")

	if _, ok := s.Get("ghost"); ok {
		t.Error("session still present after Discard")
	}
	if got := s.CarryOver().Turns; got != 0 {
		t.Errorf("carry-over turns = %d, want 0 (ghosts never fold)", got)
	}
}

func TestResetFoldsAndStartsFresh(t *testing.T) {
	s := testStore()
	sess := s.GetOrCreate("s1", t0, event.SourceClaude)
	sess.Stats.ToolCalls = 7

	fresh := s.Reset("s1", t0.Add(time.Hour), event.SourceClaude)

	if fresh == sess {
		t.Fatal("Reset returned the old session")
	}
	if fresh.Stats.ToolCalls != 0 {
		t.Errorf("fresh toolCalls = %d, want 0", fresh.Stats.ToolCalls)
	}
	if got := s.CarryOver().ToolCalls; got != 7 {
		t.Errorf("carry-over toolCalls = %d, want 7", got)
	}
	if s.Len() != 1 {
		t.Errorf("store has %d sessions after Reset, want 1", s.Len())
	}
}

func TestActiveCount(t *testing.T) {
	s := testStore()
	s.GetOrCreate("a", t0, event.SourceClaude)
	b := s.GetOrCreate("b", t0, event.SourceClaude)
	end := t0.Add(time.Minute)
	b.Status = Ended
	b.EndedAt = &end

	if got := s.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount = %d, want 1", got)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := testStore()
	s.Delete("nope")
	s.Discard("nope")
	if got := s.CarryOver().ToolCalls; got != 0 {
		t.Errorf("carry-over toolCalls = %d, want 0", got)
	}
}
