package loop

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/config"
	"github.com/sells-group/evidence-cli/internal/model"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

// Source fetches an evidence bundle for one attempt. Feedback from a prior
// insufficient attempt guides the next fetch.
type Source interface {
	Fetch(ctx context.Context, subject, question, feedback string) (model.EvidenceBundle, error)
}

// Scorer turns a bundle and question into a confidence breakdown.
type Scorer interface {
	Score(bundle model.EvidenceBundle, question string, opinion *float64, rationale string) model.ConfidenceBreakdown
}

// Validator checks a narrative against the evidence it claims to summarize.
type Validator interface {
	Validate(narrative string, bundle model.EvidenceBundle, strict bool) model.GroundingResult
}

// Reasoner covers the three LLM roles. Optional: a nil Reasoner runs the
// loop rule-only with a template narrative.
type Reasoner interface {
	Judge(ctx context.Context, bundle model.EvidenceBundle, question string) (float64, string, error)
	JudgeSufficiency(ctx context.Context, bundle model.EvidenceBundle, question string, confidence float64) (model.Verdict, string, error)
	Synthesize(ctx context.Context, bundle model.EvidenceBundle, question string, confidence float64, gaps []string) (string, error)
}

// Result is the outcome of one full loop run.
type Result struct {
	SessionID string `json:"session_id"`
	Subject   string `json:"subject"`
	Question  string `json:"question"`

	FinalConfidence float64                   `json:"final_confidence"`
	Breakdown       model.ConfidenceBreakdown `json:"breakdown"`
	Narrative       string                    `json:"narrative"`
	Grounding       model.GroundingResult     `json:"grounding"`
	AttemptsUsed    int                       `json:"attempts_used"`
	ShortCircuited  bool                      `json:"short_circuited"`
	Attempts        []model.Attempt           `json:"attempts"`
	Report          tracker.Report            `json:"report"`
}

// Orchestrator drives the gather-score-validate loop for one session at a
// time. Independent sessions may share an Orchestrator; all per-run state
// lives on the stack.
type Orchestrator struct {
	source    Source
	scorer    Scorer
	validator Validator
	reasoner  Reasoner
	tracker   *tracker.Tracker
	cfg       config.LoopConfig
}

// New constructs an Orchestrator. reasoner may be nil; everything else is
// required. Zero-valued loop settings fall back to threshold 6.0 and 3
// attempts.
func New(source Source, scorer Scorer, validator Validator, reasoner Reasoner, trk *tracker.Tracker, cfg config.LoopConfig) *Orchestrator {
	if cfg.SufficiencyThreshold <= 0 {
		cfg.SufficiencyThreshold = 6.0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Orchestrator{
		source:    source,
		scorer:    scorer,
		validator: validator,
		reasoner:  reasoner,
		tracker:   trk,
		cfg:       cfg,
	}
}

// Run executes the loop until acceptance or attempt exhaustion, then
// synthesizes a narrative and validates its grounding. Cancellation aborts
// the loop and returns the best result gathered so far; it only errors when
// cancelled before the first attempt completes.
func (o *Orchestrator) Run(ctx context.Context, sessionID, subject, question string) (*Result, error) {
	result := &Result{
		SessionID: sessionID,
		Subject:   subject,
		Question:  question,
	}

	var (
		state      = StateGathering
		seq        = 1
		feedback   string
		bundle     model.EvidenceBundle
		breakdown  model.ConfidenceBreakdown
		bestBundle model.EvidenceBundle
		bestScore  = -1.0
	)

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			if result.AttemptsUsed == 0 {
				return nil, eris.Wrap(err, "loop: cancelled before first attempt")
			}
			zap.L().Warn("loop: cancelled, returning partial result",
				zap.String("session_id", sessionID),
				zap.Int("attempts_used", result.AttemptsUsed),
			)
			break
		}

		switch state {
		case StateGathering:
			var err error
			bundle, err = o.source.Fetch(ctx, subject, question, feedback)
			if err != nil {
				zap.L().Warn("loop: evidence fetch failed, degrading to empty bundle",
					zap.String("subject", subject),
					zap.Int("sequence", seq),
					zap.Error(err),
				)
				bundle = model.EmptyBundle(subject)
			}
			state = o.transition(sessionID, state, StateScored)

		case StateScored:
			var opinion *float64
			rationale := ""
			if o.reasoner != nil {
				op, rat, err := o.reasoner.Judge(ctx, bundle, question)
				if err != nil {
					zap.L().Warn("loop: opinion judge failed, scoring rule-only",
						zap.String("subject", subject),
						zap.Error(err),
					)
				} else {
					opinion = &op
					rationale = rat
				}
			}
			breakdown = o.scorer.Score(bundle, question, opinion, rationale)

			if breakdown.FinalScore >= o.cfg.SufficiencyThreshold {
				// Short-circuit: confidence alone clears the bar, skip the
				// explicit sufficiency judgement.
				result.ShortCircuited = true
				o.record(result, sessionID, seq, breakdown, model.VerdictSufficient, feedback)
				if breakdown.FinalScore > bestScore {
					bestScore, bestBundle = breakdown.FinalScore, bundle
					result.Breakdown = breakdown
				}
				state = o.transition(sessionID, state, StateAccepted)
				continue
			}
			state = o.transition(sessionID, state, StateValidating)

		case StateValidating:
			verdict := model.VerdictInsufficient
			nextFeedback := ""
			if o.reasoner != nil {
				v, f, err := o.reasoner.JudgeSufficiency(ctx, bundle, question, breakdown.FinalScore)
				if err != nil {
					zap.L().Warn("loop: sufficiency judge failed, treating as insufficient",
						zap.String("subject", subject),
						zap.Error(err),
					)
					verdict = model.VerdictNotEvaluated
				} else {
					verdict, nextFeedback = v, f
				}
			}

			o.record(result, sessionID, seq, breakdown, verdict, feedback)
			if breakdown.FinalScore > bestScore {
				bestScore, bestBundle = breakdown.FinalScore, bundle
				result.Breakdown = breakdown
			}

			if verdict == model.VerdictSufficient || seq >= o.cfg.MaxAttempts {
				// Exhaustion resolves to acceptance so the loop always
				// terminates, even on permanently insufficient evidence.
				state = o.transition(sessionID, state, StateAccepted)
				continue
			}
			feedback = accumulateFeedback(feedback, nextFeedback)
			state = o.transition(sessionID, state, StateRetry)

		case StateRetry:
			seq++
			state = o.transition(sessionID, state, StateGathering)

		case StateAccepted:
			o.finish(ctx, result, bestBundle, question, bestScore)
			state = o.transition(sessionID, state, StateDone)
		}
	}

	// Cancelled mid-loop: finish with what we have.
	if result.Narrative == "" && result.AttemptsUsed > 0 {
		o.finish(ctx, result, bestBundle, question, bestScore)
	}

	result.Report = o.tracker.GenerateReport(sessionID, subject)
	return result, nil
}

// record emits an attempt to the tracker and mirrors it onto the result.
func (o *Orchestrator) record(result *Result, sessionID string, seq int, breakdown model.ConfidenceBreakdown, verdict model.Verdict, feedback string) {
	att := o.tracker.RecordAttempt(sessionID, seq, breakdown, verdict, breakdown.Gaps, feedback)
	result.Attempts = append(result.Attempts, att)
	result.AttemptsUsed = seq
}

// finish synthesizes the narrative from the best bundle and runs the
// grounding gate. Synthesis failure degrades to a template narrative; the
// grounding verdict is surfaced as a flag, never an error.
func (o *Orchestrator) finish(ctx context.Context, result *Result, bundle model.EvidenceBundle, question string, confidence float64) {
	result.FinalConfidence = confidence

	narrative := ""
	if o.reasoner != nil && ctx.Err() == nil {
		var err error
		narrative, err = o.reasoner.Synthesize(ctx, bundle, question, confidence, result.Breakdown.Gaps)
		if err != nil {
			zap.L().Warn("loop: synthesis failed, using template narrative",
				zap.String("subject", bundle.Subject),
				zap.Error(err),
			)
			narrative = ""
		}
	}
	if narrative == "" {
		narrative = templateNarrative(bundle, confidence)
	}
	result.Narrative = narrative
	result.Grounding = o.validator.Validate(narrative, bundle, o.cfg.StrictGrounding)

	if !result.Grounding.Grounded {
		zap.L().Warn("loop: narrative failed grounding gate",
			zap.String("subject", bundle.Subject),
			zap.Float64("ratio", result.Grounding.Ratio),
			zap.Int("ungrounded", len(result.Grounding.UngroundedClaims)),
		)
	}
}

// transition logs and returns the next state.
func (o *Orchestrator) transition(sessionID string, from, to State) State {
	zap.L().Debug("loop: state transition",
		zap.String("session_id", sessionID),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return to
}

// accumulateFeedback threads feedback from every failed attempt into the
// next fetch.
func accumulateFeedback(prev, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return prev
	}
	if prev == "" {
		return next
	}
	return prev + "; " + next
}

// templateNarrative assembles an answer straight from the bundle fields when
// no reasoner is available or synthesis failed. Everything in it comes from
// the evidence, so it grounds trivially.
func templateNarrative(bundle model.EvidenceBundle, confidence float64) string {
	var parts []string
	if bundle.Summary != "" {
		parts = append(parts, bundle.Summary)
	}
	if bundle.Metrics != "" {
		parts = append(parts, bundle.Metrics)
	}
	if bundle.Timeline != "" {
		parts = append(parts, bundle.Timeline)
	}
	if len(parts) == 0 {
		return "No evidence was gathered for " + bundle.Subject + "."
	}
	return strings.Join(parts, "\n\n")
}
