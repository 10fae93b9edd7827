package model

import "time"

// Verdict is the two-valued sufficiency judgement on an evidence bundle,
// plus the state before any judgement has run.
type Verdict string

const (
	VerdictSufficient   Verdict = "sufficient"
	VerdictInsufficient Verdict = "insufficient"
	VerdictNotEvaluated Verdict = "not evaluated"
)

// ConfidenceBreakdown itemizes the weighted trust score for a bundle.
// All factor scores are bounded to [0,10]; FinalScore is the blend of the
// weighted rule score and the optional external opinion adjustment.
type ConfidenceBreakdown struct {
	Completeness  float64 `json:"completeness"`
	Freshness     float64 `json:"freshness"`
	Relevance     float64 `json:"relevance"`
	Specificity   float64 `json:"specificity"`
	SourceQuality float64 `json:"source_quality"`

	// OpinionAdjustment is the clamped [-2,+2] nudge from the external
	// opinion score, zero when no opinion was supplied.
	OpinionAdjustment float64 `json:"opinion_adjustment"`

	RuleScore  float64 `json:"rule_score"`
	FinalScore float64 `json:"final_score"`

	Explanations map[string]string `json:"explanations,omitempty"`
	Gaps         []string          `json:"gaps,omitempty"`
}

// Attempt records one gather-score-(validate) cycle within a session.
// Attempts are append-only; sequence numbers start at 1 and increase
// strictly within a session.
type Attempt struct {
	Sequence         int                 `json:"sequence"`
	Timestamp        time.Time           `json:"timestamp"`
	Breakdown        ConfidenceBreakdown `json:"breakdown"`
	Verdict          Verdict             `json:"verdict"`
	Gaps             []string            `json:"gaps,omitempty"`
	GapsFromPrevious []string            `json:"gaps_from_previous,omitempty"`
	GapsAddressed    []string            `json:"gaps_addressed,omitempty"`
	Feedback         string              `json:"feedback,omitempty"`
}

// Confidence is shorthand for the attempt's final blended score.
func (a Attempt) Confidence() float64 {
	return a.Breakdown.FinalScore
}
