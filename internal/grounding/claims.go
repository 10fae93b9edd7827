package grounding

import (
	"regexp"
	"strconv"
	"strings"
)

// Extraction patterns for the verifiable claim classes. Regex-based, so not
// perfect, but it catches the obvious fabrications.
var (
	numberPattern = regexp.MustCompile(`\$[\d,]+(?:\.\d+)?(?:\s*(?:billion|million|thousand))?|\d+(?:\.\d+)?%|\d+(?:,\d{3})+`)
	datePattern   = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}\b|\bQ[1-4]\s*\d{4}\b|\b20\d{2}\b`)
	quotePattern  = regexp.MustCompile(`"([^"]+)"`)
	yearPattern   = regexp.MustCompile(`20\d{2}`)
	personPattern = regexp.MustCompile(`(?:CEO|chief executive|led by|headed by)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)+)`)

	// Verbs that usually precede a factual claim.
	claimIndicatorPattern = regexp.MustCompile(`(?i)\b(announced|reported|stated|confirmed|revealed|launched|released|introduced|achieved|reached)\b`)

	sentenceSplit      = regexp.MustCompile(`[.!?]`)
	contentWordPattern = regexp.MustCompile(`\b[a-z]{4,}\b`)
)

// Filler words excluded from factual-sentence content words.
var fillerWords = map[string]bool{
	"that": true, "this": true, "have": true, "been": true,
	"with": true, "from": true, "they": true, "their": true,
}

// extractNumbers returns the distinct numeric claims in the text.
func extractNumbers(text string) []string {
	return dedupe(numberPattern.FindAllString(text, -1))
}

// extractDates returns the distinct date claims in the text.
func extractDates(text string) []string {
	return dedupe(datePattern.FindAllString(text, -1))
}

// extractQuotes returns quoted substrings longer than minLen.
func extractQuotes(text string, minLen int) []string {
	var quotes []string
	for _, m := range quotePattern.FindAllStringSubmatch(text, -1) {
		if len(m[1]) > minLen {
			quotes = append(quotes, m[1])
		}
	}
	return quotes
}

// extractPersons returns person names introduced by leadership markers.
func extractPersons(text string) []string {
	var names []string
	for _, m := range personPattern.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return dedupe(names)
}

// factualSentences returns sentences containing a claim-indicator verb.
func factualSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" && claimIndicatorPattern.MatchString(s) {
			out = append(out, s)
		}
	}
	return out
}

// contentWords returns the lowercase words of at least four letters in the
// sentence, filler words removed.
func contentWords(sentence string) []string {
	words := contentWordPattern.FindAllString(strings.ToLower(sentence), -1)
	var out []string
	for _, w := range words {
		if !fillerWords[w] {
			out = append(out, w)
		}
	}
	return dedupe(out)
}

// normalizeNumber strips grouping commas and surrounding whitespace so
// "$10,000" and "$10000" compare equal.
func normalizeNumber(n string) string {
	return strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
}

// numericValue parses the magnitude of a numeric claim, ignoring currency
// and percent markers. Returns false for non-parseable claims such as
// "$10 billion".
func numericValue(n string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.Trim(normalizeNumber(n), "$%"))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// yearOf returns the 4-digit year inside a date claim, if any.
func yearOf(date string) (string, bool) {
	y := yearPattern.FindString(date)
	return y, y != ""
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// truncate shortens claim text for result lists.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
