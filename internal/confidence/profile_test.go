package confidence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProfile(t *testing.T) {
	path := writeProfile(t, `profile:
  name: recall-heavy
  scoring:
    completeness_weight: 0.35
    freshness_weight: 0.10
    relevance_weight: 0.25
    specificity_weight: 0.15
    source_quality_weight: 0.15
    rule_weight: 0.7
    opinion_weight: 0.3
`)

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "recall-heavy", p.Name)
	assert.InDelta(t, 0.35, p.Scoring.CompletenessWeight, 1e-9)
	assert.InDelta(t, 0.3, p.Scoring.OpinionWeight, 1e-9)
}

func TestLoadProfile_InvalidWeights(t *testing.T) {
	path := writeProfile(t, `profile:
  name: broken
  scoring:
    completeness_weight: 0.5
    freshness_weight: 0.5
    relevance_weight: 0.5
    specificity_weight: 0.0
    source_quality_weight: 0.0
    rule_weight: 0.6
    opinion_weight: 0.4
`)

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factor weights")
}

func TestLoadProfile_MissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadProfile_MalformedYAML(t *testing.T) {
	path := writeProfile(t, "profile: [not a map")
	_, err := LoadProfile(path)
	require.Error(t, err)
}
