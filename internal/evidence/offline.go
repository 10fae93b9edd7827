package evidence

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/model"
)

// offlineRecord is one canned evidence record.
type offlineRecord struct {
	Summary    string
	Metrics    string
	Timeline   string
	Attributes map[string]any
	Citations  []string
}

// A small offline dataset so the loop runs without API keys. Cached
// provenance keeps source-quality scores honest about where it came from.
var offlineData = map[string]offlineRecord{
	"Apple": {
		Summary:  "Launched Vision Pro follow-up hardware and expanded services revenue. On-device intelligence features announced across the 2026 OS lineup.",
		Metrics:  "Trading near $245, up 18% YTD. Market cap above $3 trillion. Services revenue reported at $27 billion for the quarter.",
		Timeline: "Q2 2026 earnings released in April 2026. New silicon generation introduced. Manufacturing expansion in India continued through 2025.",
		Attributes: map[string]any{
			"competitors":  []string{"Microsoft", "Google", "Samsung"},
			"industry":     "Technology",
			"founded":      "1976",
			"leadership":   "Tim Cook",
			"headquarters": "Cupertino",
		},
		Citations: []string{
			"https://example.com/apple-earnings",
			"https://example.com/apple-hardware",
			"https://example.com/apple-services",
		},
	},
	"Tesla": {
		Summary:  "Announced next-generation vehicle platform. Energy storage deployments reached record levels in recent quarters.",
		Metrics:  "Trading near $260, volatile quarter. Energy business grew 40% year over year with revenue of $3.5 billion.",
		Timeline: "Q1 2026 deliveries reported in April 2026. Robotaxi program expanded to new cities during 2025.",
		Attributes: map[string]any{
			"competitors": []string{"Ford", "GM", "Rivian", "BYD"},
			"industry":    "Automotive/Energy",
			"founded":     "2003",
			"leadership":  "Elon Musk",
		},
		Citations: []string{
			"https://example.com/tesla-deliveries",
			"https://example.com/tesla-energy",
		},
	},
	"Microsoft": {
		Summary:  "Copilot integration launched across the productivity suite. Cloud revenue growth reported above expectations.",
		Metrics:  "Trading near $470, steady growth. Cloud segment revenue of $38 billion, up 21%.",
		Timeline: "Q3 fiscal 2026 results announced in April 2026. Datacenter capacity expansion continued from 2025.",
		Attributes: map[string]any{
			"competitors": []string{"Apple", "Google", "Amazon"},
			"industry":    "Technology",
			"founded":     "1975",
			"leadership":  "Satya Nadella",
		},
		Citations: []string{
			"https://example.com/msft-earnings",
			"https://example.com/msft-cloud",
			"https://example.com/msft-copilot",
		},
	},
}

// Canonical name lookup for common aliases.
var subjectAliases = map[string]string{
	"apple inc":  "Apple",
	"apple inc.": "Apple",
	"aapl":       "Apple",
	"tesla inc":  "Tesla",
	"tsla":       "Tesla",
	"msft":       "Microsoft",
	"microsoft corporation": "Microsoft",
}

// OfflineSource serves the built-in dataset. Unknown subjects yield an
// empty bundle, never an error.
type OfflineSource struct{}

// NewOfflineSource creates an offline evidence source.
func NewOfflineSource() *OfflineSource {
	return &OfflineSource{}
}

// Fetch looks the subject up in the offline dataset, resolving common
// aliases and corporate suffixes.
func (s *OfflineSource) Fetch(_ context.Context, subject, question, _ string) (model.EvidenceBundle, error) {
	canonical := resolveSubject(subject)
	rec, ok := offlineData[canonical]
	if !ok {
		zap.L().Info("evidence: no offline data for subject",
			zap.String("subject", subject),
		)
		return model.EmptyBundle(subject), nil
	}

	attrs := make(map[string]any, len(rec.Attributes)+1)
	for k, v := range rec.Attributes {
		attrs[k] = v
	}
	attrs["question"] = question

	return model.EvidenceBundle{
		Subject:    canonical,
		Summary:    rec.Summary,
		Metrics:    rec.Metrics,
		Timeline:   rec.Timeline,
		Attributes: attrs,
		Provenance: model.ProvenanceCached,
		Citations:  append([]string(nil), rec.Citations...),
	}, nil
}

// Subjects returns the canonical subjects in the offline dataset.
func (s *OfflineSource) Subjects() []string {
	subjects := make([]string, 0, len(offlineData))
	for k := range offlineData {
		subjects = append(subjects, k)
	}
	return subjects
}

// resolveSubject maps a raw subject string to its canonical dataset key.
func resolveSubject(subject string) string {
	normalized := strings.ToLower(strings.TrimSpace(subject))

	if canonical, ok := subjectAliases[normalized]; ok {
		return canonical
	}

	// Strip common corporate suffixes for matching.
	for _, suffix := range []string{" inc.", " inc", " corp.", " corp", " corporation"} {
		normalized = strings.TrimSuffix(normalized, suffix)
	}
	if canonical, ok := subjectAliases[normalized]; ok {
		return canonical
	}

	for key := range offlineData {
		if strings.EqualFold(key, normalized) {
			return key
		}
	}

	return strings.TrimSpace(subject)
}
