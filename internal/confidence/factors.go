package confidence

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/evidence-cli/internal/model"
)

// factorResult is the output of a single scoring heuristic.
type factorResult struct {
	Score       float64
	Explanation string
	Gaps        []string
}

// Per-attribute completeness sub-scores, capped in aggregate at 2.5.
var auxWeights = map[string]float64{
	"competitors":  0.75,
	"leadership":   0.5,
	"industry":     0.5,
	"headquarters": 0.25,
	"founded":      0.25,
	"employees":    0.25,
}

const defaultAuxWeight = 0.25

// scoreCompleteness rewards populated primary fields (2.5 each, 7.5 max)
// plus up to 2.5 for auxiliary attributes. Missing primary field names are
// recorded verbatim as gaps.
func scoreCompleteness(bundle model.EvidenceBundle) factorResult {
	var res factorResult
	var missing []string

	for _, f := range []struct {
		name  string
		value string
	}{
		{"summary", bundle.Summary},
		{"metrics", bundle.Metrics},
		{"timeline", bundle.Timeline},
	} {
		if f.value != "" {
			res.Score += 2.5
		} else {
			missing = append(missing, f.name)
		}
	}

	var auxScore float64
	for key, value := range bundle.Attributes {
		if !populated(value) {
			continue
		}
		w, ok := auxWeights[key]
		if !ok {
			w = defaultAuxWeight
		}
		auxScore += w
	}
	res.Score += math.Min(2.5, auxScore)

	if len(missing) > 0 {
		res.Gaps = missing
		res.Explanation = "missing: " + strings.Join(missing, ", ")
	} else {
		res.Explanation = "all primary evidence fields present"
	}

	res.Score = math.Min(10, res.Score)
	return res
}

func populated(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case []string:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// Words that suggest recent information.
var freshnessKeywords = []string{
	"recent", "latest", "new", "just", "announced", "launched",
	"q1", "q2", "q3", "q4",
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{4}\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{4}\b`),
	regexp.MustCompile(`(?i)\bq[1-4]\s*\d{4}\b`),
}

// scoreFreshness looks for year mentions and temporal keywords, with a
// penalty when stale years (2-5 years back) appear.
func scoreFreshness(bundle model.EvidenceBundle, currentYear int) factorResult {
	var res factorResult
	text := strings.ToLower(bundle.FlattenText())

	switch {
	case strings.Contains(text, strconv.Itoa(currentYear)):
		res.Score += 5
		res.Explanation = fmt.Sprintf("contains %d data", currentYear)
	case strings.Contains(text, strconv.Itoa(currentYear-1)):
		res.Score += 3
		res.Explanation = fmt.Sprintf("contains %d data", currentYear-1)
	}

	for _, kw := range freshnessKeywords {
		if strings.Contains(text, kw) {
			res.Score += 2
			break
		}
	}

	for _, p := range datePatterns {
		if p.MatchString(text) {
			res.Score++
			break
		}
	}

	// Stale window: mentions of years 2-5 years back cost a point.
	for y := currentYear - 5; y <= currentYear-2; y++ {
		if strings.Contains(text, strconv.Itoa(y)) {
			res.Score--
			res.Gaps = append(res.Gaps, "contains potentially outdated information")
			break
		}
	}

	if res.Explanation == "" {
		switch {
		case res.Score >= 5:
			res.Explanation = "evidence appears current"
		case res.Score >= 2:
			res.Explanation = "evidence freshness moderate"
		default:
			res.Explanation = "evidence freshness uncertain"
			res.Gaps = append(res.Gaps, "freshness of evidence unclear")
		}
	}

	res.Score = clamp(res.Score, 0, 10)
	return res
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "shall": true, "about": true, "for": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "by": true,
	"with": true, "tell": true, "me": true, "what": true, "how": true,
	"why": true, "when": true, "where": true, "which": true, "who": true,
	"their": true, "them": true, "they": true, "this": true, "that": true,
	"these": true, "those": true,
}

// Inferred question topic to evidence keyword table.
var intentKeywords = map[string][]string{
	"stock":      {"stock", "trading", "price", "share", "$"},
	"news":       {"news", "announced", "launched", "released"},
	"competitor": {"competitor", "rival", "competing", "versus"},
	"financial":  {"revenue", "profit", "earnings", "growth", "ytd"},
	"product":    {"development", "product", "launched", "released", "new"},
	"leadership": {"ceo", "chief", "executive", "leader"},
}

// scoreRelevance checks whether the evidence actually addresses the
// question: keyword overlap, intent coverage, and subject match.
func scoreRelevance(bundle model.EvidenceBundle, question string) factorResult {
	var res factorResult
	text := strings.ToLower(bundle.FlattenText())
	questionLower := strings.ToLower(question)

	matches := 0
	for _, word := range strings.Fields(questionLower) {
		word = strings.Trim(word, ".,?!\"'")
		if len(word) <= 2 || stopwords[word] {
			continue
		}
		if strings.Contains(text, word) {
			matches++
		}
	}
	keywordScore := math.Min(4, float64(matches))
	res.Score += keywordScore

	for _, keywords := range intentKeywords {
		if !anyContained(questionLower, keywords) {
			continue
		}
		if anyContained(text, keywords) {
			res.Score += 2
			break
		}
	}

	for _, word := range strings.Fields(strings.ToLower(bundle.Subject)) {
		if strings.Contains(questionLower, word) {
			res.Score += 2
			break
		}
	}

	if keywordScore >= 2 {
		res.Explanation = fmt.Sprintf("good keyword match (%d terms found)", matches)
	} else {
		res.Explanation = "limited keyword match"
		res.Gaps = append(res.Gaps, "evidence may not fully address question")
	}

	res.Score = math.Min(10, res.Score)
	return res
}

func anyContained(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\d+`),
	regexp.MustCompile(`\d+%`),
	regexp.MustCompile(`(?i)\d+\s*(billion|million|thousand)`),
	regexp.MustCompile(`\d+\.\d+`),
}

var capitalizedPattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

var entityExclusions = map[string]bool{
	"the": true, "a": true, "an": true, "inc": true, "corp": true,
	"ltd": true, "llc": true, "co": true,
}

var launchVerbs = []string{"launched", "released", "introduced", "announced", "unveiled"}

// scoreSpecificity distinguishes concrete facts from vague fluff: numbers,
// named entities, launch verbs, and a concretely identified subject.
func scoreSpecificity(bundle model.EvidenceBundle) factorResult {
	var res factorResult
	text := bundle.FlattenText()

	numberCount := 0
	for _, p := range numberPatterns {
		numberCount += len(p.FindAllString(text, -1))
	}
	res.Score += math.Min(3, float64(numberCount)*0.5)

	entities := make(map[string]bool)
	for _, w := range capitalizedPattern.FindAllString(text, -1) {
		if !entityExclusions[strings.ToLower(w)] {
			entities[w] = true
		}
	}
	res.Score += math.Min(3, float64(len(entities))*0.3)

	if anyContained(strings.ToLower(text), launchVerbs) {
		res.Score += 2
	}

	if subjectIdentified(bundle.Subject) {
		res.Score += 2
	} else {
		res.Gaps = append(res.Gaps, "subject not specifically identified")
	}

	switch {
	case res.Score >= 7:
		res.Explanation = "highly specific evidence with concrete facts"
	case res.Score >= 4:
		res.Explanation = "moderately specific evidence"
	default:
		res.Explanation = "evidence lacks specificity"
		res.Gaps = append(res.Gaps, "evidence is too generic")
	}

	res.Score = math.Min(10, res.Score)
	return res
}

func subjectIdentified(subject string) bool {
	switch strings.ToLower(strings.TrimSpace(subject)) {
	case "", "unknown", "unknown company", "unknown subject":
		return false
	}
	return true
}

// scoreSourceQuality starts at a neutral 5 and adjusts for citation count,
// provenance, and whether any primary fields came back at all.
func scoreSourceQuality(bundle model.EvidenceBundle) factorResult {
	res := factorResult{Score: 5}

	switch {
	case len(bundle.Citations) >= 3:
		res.Score += 2
	case len(bundle.Citations) >= 2:
		res.Score++
	}

	switch bundle.Provenance {
	case model.ProvenanceLive:
		res.Score += 2
		res.Explanation = "live API evidence source"
	case model.ProvenanceCached:
		res.Score++
		res.Explanation = "cached/offline evidence source"
	default:
		res.Explanation = "source type unclear"
	}

	switch bundle.PrimaryFieldCount() {
	case 3:
		res.Score++
	case 0:
		res.Score -= 2
		res.Gaps = append(res.Gaps, "no primary evidence fields populated")
	}

	res.Score = clamp(res.Score, 0, 10)
	return res
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
