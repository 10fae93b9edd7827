package tracker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/evidence-cli/internal/model"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}
}

func bd(finalScore float64) model.ConfidenceBreakdown {
	return model.ConfidenceBreakdown{FinalScore: finalScore}
}

func TestRecordAttempt_GapDiffing(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())

	first := trk.RecordAttempt("s1", 1, bd(3.0),
		model.VerdictInsufficient, []string{"missing metrics", "timeline sparse"}, "")
	assert.Empty(t, first.GapsAddressed)
	assert.Empty(t, first.GapsFromPrevious)

	second := trk.RecordAttempt("s1", 2, bd(4.0),
		model.VerdictInsufficient, []string{"timeline sparse"}, "add metrics")
	assert.Equal(t, []string{"missing metrics", "timeline sparse"}, second.GapsFromPrevious)
	assert.Equal(t, []string{"missing metrics"}, second.GapsAddressed)
}

func TestRecordAttempt_SequenceCoercion(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())

	first := trk.RecordAttempt("s1", 5, bd(3.0), model.VerdictInsufficient, nil, "")
	assert.Equal(t, 1, first.Sequence)

	second := trk.RecordAttempt("s1", 1, bd(3.5), model.VerdictSufficient, nil, "")
	assert.Equal(t, 2, second.Sequence)

	attempts := trk.Attempts("s1")
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].Sequence)
	assert.Equal(t, 2, attempts[1].Sequence)
}

func TestGenerateReport_NoProgressNotWorthwhile(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())
	gaps := []string{"missing metrics", "timeline sparse"}

	trk.RecordAttempt("s1", 1, bd(3.0), model.VerdictInsufficient, gaps, "")
	trk.RecordAttempt("s1", 2, bd(3.0), model.VerdictInsufficient, gaps, "")

	report := trk.GenerateReport("s1", "Acme")

	assert.Equal(t, 2, report.TotalAttempts)
	assert.Zero(t, report.ConfidenceDelta)
	assert.Equal(t, 2, report.TotalGaps)
	assert.Zero(t, report.GapsResolved)
	assert.Zero(t, report.ResolutionRate)
	assert.False(t, report.Worthwhile)
	assert.Contains(t, report.Recommendations,
		"minimal confidence improvement - retry may not be cost-effective")
	assert.Contains(t, report.Recommendations,
		"low gap resolution rate - feedback may not be actionable")
}

func TestGenerateReport_EffectiveRetry(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())

	trk.RecordAttempt("s1", 1, bd(3.0), model.VerdictInsufficient, []string{"missing metrics"}, "")
	trk.RecordAttempt("s1", 2, bd(6.0), model.VerdictSufficient, nil, "")

	report := trk.GenerateReport("s1", "Acme")

	assert.InDelta(t, 3.0, report.ConfidenceDelta, 1e-9)
	assert.InDelta(t, 1.0, report.ResolutionRate, 1e-9)
	assert.True(t, report.Worthwhile)
	assert.Equal(t, []string{"retry strategy appears effective"}, report.Recommendations)
}

func TestGenerateReport_SingleAttempt(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())
	trk.RecordAttempt("s1", 1, bd(7.5), model.VerdictSufficient, nil, "")

	report := trk.GenerateReport("s1", "Acme")
	assert.Equal(t, []string{"single attempt - no retry analysis available"}, report.Recommendations)
}

func TestGenerateReport_MonotonicDecline(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())
	for i, score := range []float64{5.0, 4.0, 3.0} {
		trk.RecordAttempt("s1", i+1, bd(score), model.VerdictInsufficient, nil, "")
	}

	report := trk.GenerateReport("s1", "Acme")
	assert.Contains(t, report.Recommendations,
		"confidence declined monotonically across retries - consider stopping earlier")
}

func TestGenerateReport_Oscillation(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())
	for i, score := range []float64{3.0, 6.0, 4.0} {
		trk.RecordAttempt("s1", i+1, bd(score), model.VerdictInsufficient, nil, "")
	}

	report := trk.GenerateReport("s1", "Acme")
	assert.Contains(t, report.Recommendations,
		"confidence oscillated - retries may be introducing noise")
}

func TestGenerateReport_IneffectiveFeedback(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())
	gaps := []string{"missing metrics", "timeline sparse", "too generic"}

	trk.RecordAttempt("s1", 1, bd(3.0), model.VerdictInsufficient, gaps, "")
	trk.RecordAttempt("s1", 2, bd(4.0), model.VerdictInsufficient, gaps, "gather timelines")

	report := trk.GenerateReport("s1", "Acme")
	assert.Contains(t, report.Recommendations,
		"validation feedback not effectively addressing gaps")
}

func TestGenerateReport_EmptySession(t *testing.T) {
	trk := NewTracker()
	report := trk.GenerateReport("missing", "Acme")

	assert.Zero(t, report.TotalAttempts)
	assert.Equal(t, []string{"no attempts recorded"}, report.Recommendations)
}

func TestHistoricalStats(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())

	// Session one improves by 1.0 with its gap resolved.
	trk.RecordAttempt("s1", 1, bd(4.0), model.VerdictInsufficient, []string{"missing metrics"}, "")
	trk.RecordAttempt("s1", 2, bd(5.0), model.VerdictSufficient, nil, "")
	trk.GenerateReport("s1", "Acme")

	// Session two goes nowhere.
	trk.RecordAttempt("s2", 1, bd(3.0), model.VerdictInsufficient, []string{"too generic"}, "")
	trk.RecordAttempt("s2", 2, bd(3.0), model.VerdictInsufficient, []string{"too generic"}, "")
	trk.GenerateReport("s2", "Beta Corp")

	stats := trk.HistoricalStats()

	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.WorthwhileSessions)
	assert.InDelta(t, 0.5, stats.WorthwhileRate, 1e-9)
	assert.InDelta(t, 0.5, stats.AvgConfidenceDelta, 1e-9)
	assert.InDelta(t, math.Sqrt(0.5), stats.StdConfidenceDelta, 1e-9)
	assert.InDelta(t, 0.5, stats.AvgResolutionRate, 1e-9)
	assert.InDelta(t, 2.0, stats.AvgAttempts, 1e-9)
}

func TestHistoricalStats_Empty(t *testing.T) {
	assert.Zero(t, NewTracker().HistoricalStats())
}

func TestClearSession_KeepsHistory(t *testing.T) {
	trk := NewTracker().WithNow(fixedClock())
	trk.RecordAttempt("s1", 1, bd(5.0), model.VerdictSufficient, nil, "")
	trk.GenerateReport("s1", "Acme")

	trk.ClearSession("s1")

	assert.Empty(t, trk.Attempts("s1"))
	assert.Equal(t, 1, trk.HistoricalStats().TotalSessions)
}
