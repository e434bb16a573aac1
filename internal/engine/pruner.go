package engine

import (
	"context"
	"log"
	"time"

	"github.com/agent-observatory/backend/internal/metrics"
	"github.com/agent-observatory/backend/internal/session"
)

// Run drives the lifecycle pruner until ctx is cancelled. Each tick performs
// one synchronous sweep; the timer is re-armed with the current config's
// interval afterwards, so interval changes apply without a restart.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("Pruner started (interval %s)", e.Config().Core.PruneInterval)
	timer := time.NewTimer(e.Config().Core.PruneInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Pruner stopped")
			return
		case now := <-timer.C:
			e.Sweep(now)
			timer.Reset(e.Config().Core.PruneInterval)
		}
	}
}

// Sweep runs one pruner pass:
//
//  1. ended sessions past the retention window are deleted, folding their
//     statistics into carry-over;
//  2. active sessions with zero tool calls idle past the ghost threshold
//     are removed without folding — false starts never reach the totals;
//  3. active sessions idle past the stale timeout are marked ended, with
//     every still-active agent completed at the same timestamp.
//
// If anything changed, a single coalesced state broadcast fires — never one
// per session.
func (e *Engine) Sweep(now time.Time) {
	e.mu.Lock()
	changed := 0
	for _, sess := range e.store.All() {
		idle := now.Sub(sess.LastActivityAt)
		switch {
		case sess.Status == session.Ended && sess.EndedAt != nil && now.Sub(*sess.EndedAt) > e.cfg.Core.Retention:
			log.Printf("Pruner: removing ended session %s (retention elapsed)", sess.ID)
			e.store.Delete(sess.ID)
			metrics.SessionsPruned.WithLabelValues("retired").Inc()
			changed++

		case sess.Status == session.Active && sess.Stats.ToolCalls == 0 && idle > e.cfg.Core.GhostTimeout:
			log.Printf("Pruner: discarding ghost session %s (no tool calls, idle %s)", sess.ID, idle.Round(time.Second))
			e.store.Discard(sess.ID)
			metrics.SessionsPruned.WithLabelValues("ghost").Inc()
			changed++

		case sess.Status == session.Active && idle > e.cfg.Core.StaleTimeout:
			log.Printf("Pruner: marking session %s stale (idle %s)", sess.ID, idle.Round(time.Second))
			e.endSession(sess, now)
			sess.AppendTimeline(session.TimelineEntry{
				Time:      now,
				SessionID: sess.ID,
				Kind:      "session_end",
				Summary:   "stale",
			}, e.cfg.Core.MaxTimeline)
			metrics.SessionsPruned.WithLabelValues("stale").Inc()
			changed++
		}
	}
	var snap *Snapshot
	if changed > 0 {
		snap = e.snapshotLocked(now)
	}
	metrics.ActiveSessions.Set(float64(e.store.ActiveCount()))
	e.mu.Unlock()

	if changed > 0 && e.pub != nil {
		e.pub.PublishState(snap)
	}
}
