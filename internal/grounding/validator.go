// Package grounding is the hallucination gate: it extracts verifiable
// micro-claims from a narrative and checks each one against the evidence
// bundle it was supposedly synthesized from. It runs on every narrative
// before release and reports exactly which claims failed, not just a
// pass/fail bit, so claims can be audited or stripped.
package grounding

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/evidence-cli/internal/config"
	"github.com/sells-group/evidence-cli/internal/model"
)

// Validator checks narratives against evidence. Stateless; safe for
// concurrent use.
type Validator struct {
	cfg  config.GroundingConfig
	fold cases.Caser
}

// NewValidator creates a Validator with the given thresholds.
func NewValidator(cfg config.GroundingConfig) *Validator {
	if cfg.RatioThreshold == 0 {
		cfg.RatioThreshold = 0.7
	}
	if cfg.NumberTolerance == 0 {
		cfg.NumberTolerance = 0.01
	}
	if cfg.MinQuoteLength == 0 {
		cfg.MinQuoteLength = 10
	}
	return &Validator{cfg: cfg, fold: cases.Fold()}
}

// Validate checks every concrete claim in the narrative against the
// flattened evidence corpus. Strict mode passes only when nothing is
// ungrounded; otherwise the configured ratio threshold applies. Malformed
// input never panics; an empty narrative yields an empty, passing result.
func (v *Validator) Validate(narrative string, bundle model.EvidenceBundle, strict bool) model.GroundingResult {
	var result model.GroundingResult

	corpus := bundle.FlattenText()
	corpusFolded := v.fold.String(corpus)

	v.checkNumbers(narrative, corpus, &result)
	v.checkDates(narrative, corpus, corpusFolded, &result)
	v.checkQuotes(narrative, corpusFolded, &result)
	v.checkPersons(narrative, corpus, &result)
	v.checkFactualSentences(narrative, corpusFolded, &result)

	total := result.CheckedClaimCount()
	if total > 0 {
		result.Ratio = float64(len(result.GroundedClaims)) / float64(total)
	} else {
		result.Ratio = 1.0 // nothing to check
	}

	if strict {
		result.Grounded = len(result.UngroundedClaims) == 0
	} else {
		result.Grounded = result.Ratio >= v.cfg.RatioThreshold
	}

	if !result.Grounded {
		result.Recommendations = append(result.Recommendations,
			"review and remove or verify ungrounded claims before release")
	}
	if len(result.Warnings) > 0 {
		result.Recommendations = append(result.Recommendations,
			"consider rephrasing claims that could not be verified")
	}

	zap.L().Debug("grounding: validated narrative",
		zap.String("subject", bundle.Subject),
		zap.Int("grounded", len(result.GroundedClaims)),
		zap.Int("ungrounded", len(result.UngroundedClaims)),
		zap.Float64("ratio", result.Ratio),
		zap.Bool("passed", result.Grounded),
	)

	return result
}

// checkNumbers verifies numeric claims by exact normalized match or
// near-equal magnitude within the configured tolerance.
func (v *Validator) checkNumbers(narrative, corpus string, result *model.GroundingResult) {
	sourceNumbers := extractNumbers(corpus)

	for _, number := range extractNumbers(narrative) {
		normalized := normalizeNumber(number)

		found := false
		for _, src := range sourceNumbers {
			srcNormalized := normalizeNumber(src)
			if strings.EqualFold(normalized, srcNormalized) {
				found = true
				break
			}
			nv, ok1 := numericValue(normalized)
			sv, ok2 := numericValue(srcNormalized)
			if ok1 && ok2 && math.Abs(nv-sv) < v.cfg.NumberTolerance {
				found = true
				break
			}
		}

		claim := model.Claim{Class: model.ClaimNumber, Text: number}
		if found {
			result.GroundedClaims = append(result.GroundedClaims, claim)
		} else {
			result.UngroundedClaims = append(result.UngroundedClaims, claim)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("number %q not found in evidence", number))
		}
	}
}

// checkDates verifies date claims exactly, falling back to a year-only
// partial match that grounds with a warning.
func (v *Validator) checkDates(narrative, corpus, corpusFolded string, result *model.GroundingResult) {
	sourceDates := make(map[string]bool)
	for _, d := range extractDates(corpus) {
		sourceDates[d] = true
	}

	for _, date := range extractDates(narrative) {
		claim := model.Claim{Class: model.ClaimDate, Text: date}

		if sourceDates[date] || strings.Contains(corpusFolded, v.fold.String(date)) {
			result.GroundedClaims = append(result.GroundedClaims, claim)
			continue
		}

		if year, ok := yearOf(date); ok && strings.Contains(corpus, year) {
			claim.Note = "year verified"
			result.GroundedClaims = append(result.GroundedClaims, claim)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("full date %q not verified, but year found", date))
			continue
		}

		result.UngroundedClaims = append(result.UngroundedClaims, claim)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("date %q not found in evidence", date))
	}
}

// checkQuotes verifies quoted substrings verbatim (case-insensitive).
// Quotes never produce hard failures; paraphrase is expected.
func (v *Validator) checkQuotes(narrative, corpusFolded string, result *model.GroundingResult) {
	for _, quote := range extractQuotes(narrative, v.cfg.MinQuoteLength) {
		if strings.Contains(corpusFolded, v.fold.String(quote)) {
			result.GroundedClaims = append(result.GroundedClaims, model.Claim{
				Class: model.ClaimQuote,
				Text:  truncate(quote, 30),
			})
		} else {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("quote not found verbatim: %q", truncate(quote, 30)))
		}
	}
}

// checkPersons verifies names introduced by leadership markers against the
// corpus and the leadership attribute.
func (v *Validator) checkPersons(narrative, corpus string, result *model.GroundingResult) {
	for _, name := range extractPersons(narrative) {
		claim := model.Claim{Class: model.ClaimPerson, Text: name}
		if strings.Contains(corpus, name) {
			result.GroundedClaims = append(result.GroundedClaims, claim)
		} else {
			result.UngroundedClaims = append(result.UngroundedClaims, claim)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("name %q not verified in evidence", name))
		}
	}
}

// checkFactualSentences tokenizes indicator-verb sentences into content
// words and grounds those with at least half their words present in the
// corpus.
func (v *Validator) checkFactualSentences(narrative, corpusFolded string, result *model.GroundingResult) {
	for _, sentence := range factualSentences(narrative) {
		words := contentWords(sentence)
		if len(words) == 0 {
			continue
		}

		found := 0
		for _, w := range words {
			if strings.Contains(corpusFolded, w) {
				found++
			}
		}

		claim := model.Claim{Class: model.ClaimFactual, Text: truncate(sentence, 50)}
		if float64(found)/float64(len(words)) >= 0.5 {
			result.GroundedClaims = append(result.GroundedClaims, claim)
		} else {
			result.UngroundedClaims = append(result.UngroundedClaims, claim)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("claim may be embellished: %q", truncate(sentence, 50)))
		}
	}
}
