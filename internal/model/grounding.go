package model

// ClaimClass identifies the kind of verifiable claim extracted from a
// narrative.
type ClaimClass string

const (
	ClaimNumber  ClaimClass = "number"
	ClaimDate    ClaimClass = "date"
	ClaimQuote   ClaimClass = "quote"
	ClaimPerson  ClaimClass = "person"
	ClaimFactual ClaimClass = "factual"
)

// Claim is a single checked item from a narrative.
type Claim struct {
	Class ClaimClass `json:"class"`
	Text  string     `json:"text"`
	// Note carries extra detail, e.g. "year verified" for a partially
	// matched date.
	Note string `json:"note,omitempty"`
}

// GroundingResult reports whether a narrative's concrete claims are
// traceable to the evidence bundle. Computed once per narrative; not
// persisted beyond the release decision.
type GroundingResult struct {
	Grounded         bool     `json:"grounded"`
	Ratio            float64  `json:"ratio"`
	GroundedClaims   []Claim  `json:"grounded_claims,omitempty"`
	UngroundedClaims []Claim  `json:"ungrounded_claims,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

// CheckedClaimCount returns the number of claims that entered the ratio.
func (r GroundingResult) CheckedClaimCount() int {
	return len(r.GroundedClaims) + len(r.UngroundedClaims)
}
