package tracker

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/model"
)

// Report summarizes how well the retries worked for one session.
type Report struct {
	SessionID         string          `json:"session_id"`
	Subject           string          `json:"subject"`
	TotalAttempts     int             `json:"total_attempts"`
	InitialConfidence float64         `json:"initial_confidence"`
	FinalConfidence   float64         `json:"final_confidence"`
	ConfidenceDelta   float64         `json:"confidence_delta"`
	TotalGaps         int             `json:"total_gaps"`
	GapsResolved      int             `json:"gaps_resolved"`
	ResolutionRate    float64         `json:"resolution_rate"`
	Worthwhile        bool            `json:"worthwhile"`
	Attempts          []model.Attempt `json:"attempts,omitempty"`
	Recommendations   []string        `json:"recommendations,omitempty"`
}

// GenerateReport crunches the session's attempt log into an effectiveness
// report and archives it for historical stats.
func (t *Tracker) GenerateReport(sessionID, subject string) Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempts := t.sessions[sessionID]
	if len(attempts) == 0 {
		return Report{
			SessionID:       sessionID,
			Subject:         subject,
			Recommendations: []string{"no attempts recorded"},
		}
	}

	initial := attempts[0].Confidence()
	final := attempts[len(attempts)-1].Confidence()
	delta := final - initial

	allGaps := make(map[string]bool)
	resolved := make(map[string]bool)
	for _, a := range attempts {
		for _, g := range a.Gaps {
			allGaps[g] = true
		}
		for _, g := range a.GapsAddressed {
			resolved[g] = true
		}
	}

	rate := 1.0 // no gaps means nothing needed resolving
	if len(allGaps) > 0 {
		rate = float64(len(resolved)) / float64(len(allGaps))
	}

	report := Report{
		SessionID:         sessionID,
		Subject:           subject,
		TotalAttempts:     len(attempts),
		InitialConfidence: initial,
		FinalConfidence:   final,
		ConfidenceDelta:   delta,
		TotalGaps:         len(allGaps),
		GapsResolved:      len(resolved),
		ResolutionRate:    rate,
		Worthwhile:        delta >= MinConfidenceImprovement || rate >= MinGapResolutionRate,
		Attempts:          append([]model.Attempt(nil), attempts...),
	}
	report.Recommendations = recommendations(attempts, delta, rate)

	t.history = append(t.history, report)

	zap.L().Info("tracker: generated report",
		zap.String("session_id", sessionID),
		zap.Bool("worthwhile", report.Worthwhile),
		zap.Float64("confidence_delta", delta),
		zap.Float64("resolution_rate", rate),
	)

	return report
}

// recommendations derives qualitative flags from the attempt history.
func recommendations(attempts []model.Attempt, delta, rate float64) []string {
	var recs []string

	if len(attempts) == 1 {
		return []string{"single attempt - no retry analysis available"}
	}

	switch {
	case monotonicDecline(attempts):
		recs = append(recs, "confidence declined monotonically across retries - consider stopping earlier")
	case delta < 0:
		recs = append(recs, "confidence decreased across retries - consider stopping earlier")
	case delta < MinConfidenceImprovement:
		recs = append(recs, "minimal confidence improvement - retry may not be cost-effective")
	}

	if rate < MinGapResolutionRate {
		recs = append(recs, "low gap resolution rate - feedback may not be actionable")
	}

	// Up-then-down patterns suggest retries are adding noise.
	if len(attempts) >= 3 {
		c0, c1, c2 := attempts[0].Confidence(), attempts[1].Confidence(), attempts[2].Confidence()
		if c1 > c0 && c2 < c1 {
			recs = append(recs, "confidence oscillated - retries may be introducing noise")
		}
	}

	if hasFeedback(attempts) && rate < 0.5 {
		recs = append(recs, "validation feedback not effectively addressing gaps")
	}

	if len(recs) == 0 {
		recs = append(recs, "retry strategy appears effective")
	}

	return recs
}

func monotonicDecline(attempts []model.Attempt) bool {
	for i := 1; i < len(attempts); i++ {
		if attempts[i].Confidence() >= attempts[i-1].Confidence() {
			return false
		}
	}
	return len(attempts) > 1
}

func hasFeedback(attempts []model.Attempt) bool {
	for _, a := range attempts {
		if a.Feedback != "" {
			return true
		}
	}
	return false
}

// HistoricalStats aggregates every report generated so far.
type HistoricalStats struct {
	TotalSessions      int     `json:"total_sessions"`
	WorthwhileSessions int     `json:"worthwhile_sessions"`
	WorthwhileRate     float64 `json:"worthwhile_rate"`
	AvgConfidenceDelta float64 `json:"avg_confidence_delta"`
	StdConfidenceDelta float64 `json:"std_confidence_delta"`
	AvgResolutionRate  float64 `json:"avg_resolution_rate"`
	AvgAttempts        float64 `json:"avg_attempts"`
}

// HistoricalStats summarizes all generated reports, for tuning thresholds
// across many sessions. Returns the zero value when no reports exist.
func (t *Tracker) HistoricalStats() HistoricalStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.history)
	if n == 0 {
		return HistoricalStats{}
	}

	var stats HistoricalStats
	stats.TotalSessions = n

	var deltaSum, rateSum, attemptSum float64
	for _, r := range t.history {
		if r.Worthwhile {
			stats.WorthwhileSessions++
		}
		deltaSum += r.ConfidenceDelta
		rateSum += r.ResolutionRate
		attemptSum += float64(r.TotalAttempts)
	}

	stats.WorthwhileRate = float64(stats.WorthwhileSessions) / float64(n)
	stats.AvgConfidenceDelta = deltaSum / float64(n)
	stats.AvgResolutionRate = rateSum / float64(n)
	stats.AvgAttempts = attemptSum / float64(n)

	if n > 1 {
		var sq float64
		for _, r := range t.history {
			d := r.ConfidenceDelta - stats.AvgConfidenceDelta
			sq += d * d
		}
		stats.StdConfidenceDelta = math.Sqrt(sq / float64(n-1))
	}

	return stats
}
