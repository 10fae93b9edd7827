// Package confidence implements the hybrid evidence scorer: five rule-based
// heuristics blended with an optional external opinion score. Rules are
// consistent but miss context; the opinion catches nuance but drifts. The
// blend keeps the rules in the majority.
package confidence

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/config"
	"github.com/sells-group/evidence-cli/internal/model"
)

// Maximum nudge the external opinion can apply in either direction.
const maxOpinionAdjustment = 2.0

// Scorer turns an evidence bundle plus the original question into a
// ConfidenceBreakdown. It is stateless and safe for concurrent use.
type Scorer struct {
	cfg config.ScoringConfig
	now time.Time // injectable for testing
}

// NewScorer creates a Scorer with the given weights.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg, now: time.Now()}
}

// WithNow sets a fixed time for testing; freshness scoring depends on the
// current year.
func (s *Scorer) WithNow(t time.Time) *Scorer {
	s.now = t
	return s
}

// Score runs all five heuristics and combines them into a final score.
// Pass a non-nil opinion with its rationale when one is available from the
// reasoner; otherwise the weighted rule score is used alone. The call has
// no side effects beyond logging and is idempotent for a given bundle,
// question, and clock.
func (s *Scorer) Score(bundle model.EvidenceBundle, question string, opinion *float64, rationale string) model.ConfidenceBreakdown {
	completeness := scoreCompleteness(bundle)
	freshness := scoreFreshness(bundle, s.now.Year())
	relevance := scoreRelevance(bundle, question)
	specificity := scoreSpecificity(bundle)
	sourceQuality := scoreSourceQuality(bundle)

	breakdown := model.ConfidenceBreakdown{
		Completeness:  completeness.Score,
		Freshness:     freshness.Score,
		Relevance:     relevance.Score,
		Specificity:   specificity.Score,
		SourceQuality: sourceQuality.Score,
		Explanations: map[string]string{
			"completeness":   completeness.Explanation,
			"freshness":      freshness.Explanation,
			"relevance":      relevance.Explanation,
			"specificity":    specificity.Explanation,
			"source_quality": sourceQuality.Explanation,
		},
	}
	for _, f := range []factorResult{completeness, freshness, relevance, specificity, sourceQuality} {
		breakdown.Gaps = append(breakdown.Gaps, f.Gaps...)
	}

	breakdown.RuleScore = completeness.Score*s.cfg.CompletenessWeight +
		freshness.Score*s.cfg.FreshnessWeight +
		relevance.Score*s.cfg.RelevanceWeight +
		specificity.Score*s.cfg.SpecificityWeight +
		sourceQuality.Score*s.cfg.SourceQualityWeight

	if opinion != nil {
		if *opinion < 0 || *opinion > 10 || math.IsNaN(*opinion) {
			// Malformed opinion: fall back to the rule-only score.
			zap.L().Warn("confidence: ignoring malformed opinion score",
				zap.Float64("opinion", *opinion),
			)
			opinion = nil
		}
	}

	if opinion != nil {
		raw := (*opinion - breakdown.RuleScore) * 0.5
		breakdown.OpinionAdjustment = clamp(raw, -maxOpinionAdjustment, maxOpinionAdjustment)
		if rationale != "" {
			breakdown.Explanations["opinion_rationale"] = rationale
		}
	}

	breakdown.FinalScore = clamp(
		breakdown.RuleScore*s.cfg.RuleWeight+
			(breakdown.RuleScore+breakdown.OpinionAdjustment)*s.cfg.OpinionWeight,
		0, 10,
	)

	zap.L().Debug("confidence: scored bundle",
		zap.String("subject", bundle.Subject),
		zap.Float64("rule_score", breakdown.RuleScore),
		zap.Float64("final_score", breakdown.FinalScore),
		zap.Int("gaps", len(breakdown.Gaps)),
	)

	return breakdown
}
