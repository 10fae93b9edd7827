package model

// Provenance describes where an evidence bundle came from.
type Provenance string

const (
	// ProvenanceLive marks evidence fetched from a live search API.
	ProvenanceLive Provenance = "live"
	// ProvenanceCached marks evidence served from a cache or the built-in
	// offline dataset.
	ProvenanceCached Provenance = "cached"
)

// EvidenceBundle holds the structured facts gathered about a subject in a
// single attempt. Bundles are immutable once built; each retry produces a
// fresh one.
type EvidenceBundle struct {
	Subject string `json:"subject"`

	// The three primary fields every attempt tries to populate.
	Summary  string `json:"summary,omitempty"`
	Metrics  string `json:"metrics,omitempty"`
	Timeline string `json:"timeline,omitempty"`

	// Attributes carries open-ended auxiliary facts (competitors, leadership,
	// industry, headquarters and so on). Values may be strings, nested maps,
	// or lists of either.
	Attributes map[string]any `json:"attributes,omitempty"`

	Provenance Provenance `json:"provenance"`
	Citations  []string   `json:"citations,omitempty"`
}

// EmptyBundle returns the degraded bundle used when the evidence source
// fails. It scores low on completeness but flows through the loop normally.
func EmptyBundle(subject string) EvidenceBundle {
	return EvidenceBundle{
		Subject:    subject,
		Provenance: ProvenanceCached,
	}
}

// PrimaryFieldCount returns how many of the three primary fields are populated.
func (b EvidenceBundle) PrimaryFieldCount() int {
	n := 0
	if b.Summary != "" {
		n++
	}
	if b.Metrics != "" {
		n++
	}
	if b.Timeline != "" {
		n++
	}
	return n
}
