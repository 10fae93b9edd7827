package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenText(t *testing.T) {
	tests := []struct {
		name   string
		bundle EvidenceBundle
		want   string
	}{
		{
			name:   "empty bundle",
			bundle: EvidenceBundle{},
			want:   "",
		},
		{
			name: "primary fields in order",
			bundle: EvidenceBundle{
				Subject:  "Acme",
				Summary:  "summary",
				Metrics:  "metrics",
				Timeline: "timeline",
			},
			want: "Acme summary metrics timeline",
		},
		{
			name: "attribute keys visited sorted",
			bundle: EvidenceBundle{
				Subject: "Acme",
				Attributes: map[string]any{
					"industry":    "widgets",
					"competitors": []string{"Beta", "Gamma"},
				},
			},
			want: "Acme Beta Gamma widgets",
		},
		{
			name: "nested maps and mixed lists",
			bundle: EvidenceBundle{
				Attributes: map[string]any{
					"financials": map[string]any{
						"revenue": "$5 billion",
						"margin":  12.5,
					},
					"products": []any{"Widget", map[string]any{"name": "Gadget"}},
				},
			},
			want: "12.5 $5 billion Widget Gadget",
		},
		{
			name: "citations appended last",
			bundle: EvidenceBundle{
				Summary:   "summary",
				Citations: []string{"https://example.com/a", "https://example.com/b"},
			},
			want: "summary https://example.com/a https://example.com/b",
		},
		{
			name: "empty strings skipped",
			bundle: EvidenceBundle{
				Subject: "Acme",
				Attributes: map[string]any{
					"blank": "",
					"tags":  []string{"", "real"},
				},
			},
			want: "Acme real",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bundle.FlattenText())
		})
	}
}

func TestFlattenText_Deterministic(t *testing.T) {
	bundle := EvidenceBundle{
		Attributes: map[string]any{
			"a": "1", "b": "2", "c": "3", "d": "4", "e": "5",
		},
	}
	first := bundle.FlattenText()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, bundle.FlattenText())
	}
}

func TestEmptyBundle(t *testing.T) {
	b := EmptyBundle("Acme")
	assert.Equal(t, "Acme", b.Subject)
	assert.Equal(t, ProvenanceCached, b.Provenance)
	assert.Zero(t, b.PrimaryFieldCount())
}

func TestPrimaryFieldCount(t *testing.T) {
	assert.Equal(t, 3, EvidenceBundle{Summary: "s", Metrics: "m", Timeline: "t"}.PrimaryFieldCount())
	assert.Equal(t, 1, EvidenceBundle{Metrics: "m"}.PrimaryFieldCount())
}
