package model

import "time"

// Session is the full retry history for one user-facing question. One
// session exists per conversation thread; it is created on the first attempt
// and lives until explicitly discarded.
type Session struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Question  string    `json:"question"`
	Attempts  []Attempt `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FirstConfidence returns the confidence of the first attempt, or 0 when
// the session has none.
func (s *Session) FirstConfidence() float64 {
	if len(s.Attempts) == 0 {
		return 0
	}
	return s.Attempts[0].Confidence()
}

// LastConfidence returns the confidence of the most recent attempt, or 0
// when the session has none.
func (s *Session) LastConfidence() float64 {
	if len(s.Attempts) == 0 {
		return 0
	}
	return s.Attempts[len(s.Attempts)-1].Confidence()
}

// ResolvedGapCount returns how many distinct gaps were addressed across all
// attempts.
func (s *Session) ResolvedGapCount() int {
	seen := make(map[string]bool)
	for _, a := range s.Attempts {
		for _, g := range a.GapsAddressed {
			seen[g] = true
		}
	}
	return len(seen)
}
