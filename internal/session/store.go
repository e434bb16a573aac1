package session

import (
	"math/rand"
	"time"

	"github.com/agent-observatory/backend/internal/event"
)

// Store owns the session map, the display-name pool, the agent-ID counter
// and the carry-over accumulator — the core's only shared mutable state.
// It is NOT safe for concurrent use: the engine serializes every access, so
// each event is processed run-to-completion against consistent state.
type Store struct {
	sessions    map[string]*Session
	names       *NamePool
	nextAgentID int
	carry       Stats
}

func NewStore() *Store {
	return NewStoreWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewStoreWithRand allows tests to pin the name/color/shape draws.
func NewStoreWithRand(rng *rand.Rand) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		names:    NewNamePool(rng),
	}
}

func (s *Store) Get(id string) (*Session, bool) {
	sess, ok := s.sessions[id]
	return sess, ok
}

// All returns the live sessions in no particular order.
func (s *Store) All() []*Session {
	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess)
	}
	return result
}

func (s *Store) Len() int { return len(s.sessions) }

// ActiveCount reports sessions not yet ended.
func (s *Store) ActiveCount() int {
	count := 0
	for _, sess := range s.sessions {
		if sess.Status == Active {
			count++
		}
	}
	return count
}

// CarryOver returns the accumulated totals of deleted sessions.
func (s *Store) CarryOver() Stats { return s.carry }

// GetOrCreate returns the session for id, creating it active when unseen.
// An existing session with no recorded source gets it backfilled.
func (s *Store) GetOrCreate(id string, ts time.Time, source event.Source) *Session {
	if sess, ok := s.sessions[id]; ok {
		if sess.Source == "" {
			sess.Source = source
		}
		return sess
	}
	sess := &Session{
		ID:             id,
		Source:         source,
		Status:         Active,
		StartedAt:      ts,
		LastActivityAt: ts,
		Files:          make(map[string]*FileAccess),
		Stats:          Stats{StartedAt: ts},
		pending:        make(map[string]*ToolCall),
	}
	s.sessions[id] = sess
	return sess
}

// Reactivate flips an ended session back to active: producers may keep
// sending tool events after a soft session end, and the dashboard should
// show renewed activity rather than a dead agent receiving tool calls.
// Only the completed main agent is revived; completed subagents stay
// completed (their delegated tasks already finished). Last-activity is
// updated unconditionally; on an already-active session everything else is
// untouched.
func (s *Store) Reactivate(sess *Session, ts time.Time) {
	sess.LastActivityAt = ts
	if sess.Status != Ended {
		return
	}
	sess.Status = Active
	sess.EndedAt = nil
	if main := sess.Main(); main != nil && main.Status == AgentCompleted {
		main.Status = AgentActive
		main.CompletedAt = nil
	}
}

// Delete removes a session permanently: its statistics fold additively into
// the carry-over bucket and its main agent's display name returns to the
// pool for reuse.
func (s *Store) Delete(id string) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	s.carry.Add(sess.Stats)
	s.releaseName(sess)
	delete(s.sessions, id)
}

// Discard removes a session without folding its statistics. Used for ghost
// sessions that never recorded any work.
func (s *Store) Discard(id string) {
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	s.releaseName(sess)
	delete(s.sessions, id)
}

// Reset handles a session_start for an id that already exists: the prior
// run's stats fold into carry-over and a fresh session takes its place. A
// restarted session must not silently merge history with the previous run.
func (s *Store) Reset(id string, ts time.Time, source event.Source) *Session {
	s.Delete(id)
	return s.GetOrCreate(id, ts, source)
}

func (s *Store) releaseName(sess *Session) {
	if main := sess.Main(); main != nil {
		s.names.Release(main.Name)
	}
}
