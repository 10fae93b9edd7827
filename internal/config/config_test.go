package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.Store.Driver)
	assert.Equal(t, "evidence.db", cfg.Store.Path)
	assert.Equal(t, "https://api.tavily.com", cfg.Tavily.BaseURL)
	assert.Equal(t, "advanced", cfg.Tavily.SearchDepth)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.JudgeModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.SynthModel)
	assert.InDelta(t, 6.0, cfg.Loop.SufficiencyThreshold, 1e-9)
	assert.Equal(t, 3, cfg.Loop.MaxAttempts)
	assert.False(t, cfg.Loop.StrictGrounding)
	assert.InDelta(t, 0.7, cfg.Grounding.RatioThreshold, 1e-9)
	assert.Equal(t, "exports", cfg.Export.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestScoringConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultScoringConfig().Validate())

	bad := DefaultScoringConfig()
	bad.FreshnessWeight = 0.5
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factor weights")

	blend := DefaultScoringConfig()
	blend.OpinionWeight = 0.9
	err = blend.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blend weights")
}
