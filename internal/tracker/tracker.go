// Package tracker records every research attempt in a session and answers
// the question: did retrying actually help? It is purely an observability
// layer for threshold tuning; it never influences routing.
package tracker

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/model"
)

// Thresholds for calling a retry worthwhile.
const (
	MinConfidenceImprovement = 0.5
	MinGapResolutionRate     = 0.3
)

// Tracker keeps per-session append-only attempt logs. Entries are only
// appended by the session that owns them; the mutex exists so independent
// sessions can record in parallel.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string][]model.Attempt
	history  []Report
	now      func() time.Time // injectable for testing
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string][]model.Attempt),
		now:      time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// RecordAttempt appends an attempt to the session log. For second and later
// attempts it diffs the gap list against the immediately preceding attempt:
// any previous gap absent from the current gap text (case-insensitive
// substring check) is marked addressed. Sequence numbers are coerced to the
// append position so they stay strictly increasing from 1.
func (t *Tracker) RecordAttempt(sessionID string, sequence int, breakdown model.ConfidenceBreakdown, verdict model.Verdict, gaps []string, feedback string) model.Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.sessions[sessionID]
	want := len(prev) + 1
	if sequence != want {
		zap.L().Warn("tracker: out-of-order sequence, coercing",
			zap.String("session_id", sessionID),
			zap.Int("got", sequence),
			zap.Int("want", want),
		)
		sequence = want
	}

	attempt := model.Attempt{
		Sequence:  sequence,
		Timestamp: t.now(),
		Breakdown: breakdown,
		Verdict:   verdict,
		Gaps:      gaps,
		Feedback:  feedback,
	}

	if len(prev) > 0 {
		prevGaps := prev[len(prev)-1].Gaps
		attempt.GapsFromPrevious = prevGaps

		// A previous gap that no longer appears in the current gap text
		// counts as fixed.
		currentGapText := strings.ToLower(strings.Join(gaps, " "))
		for _, g := range prevGaps {
			if !strings.Contains(currentGapText, strings.ToLower(g)) {
				attempt.GapsAddressed = append(attempt.GapsAddressed, g)
			}
		}
	}

	t.sessions[sessionID] = append(prev, attempt)

	zap.L().Info("tracker: recorded attempt",
		zap.String("session_id", sessionID),
		zap.Int("sequence", attempt.Sequence),
		zap.Float64("confidence", attempt.Confidence()),
		zap.String("verdict", string(verdict)),
		zap.Int("gaps", len(gaps)),
	)

	return attempt
}

// Attempts returns a copy of the session's attempt log.
func (t *Tracker) Attempts(sessionID string) []model.Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	attempts := t.sessions[sessionID]
	out := make([]model.Attempt, len(attempts))
	copy(out, attempts)
	return out
}

// ClearSession forgets a session's attempt log. Historical reports already
// generated are kept.
func (t *Tracker) ClearSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}
