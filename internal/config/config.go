package config

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Tavily    TavilyConfig    `yaml:"tavily" mapstructure:"tavily"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Loop      LoopConfig      `yaml:"loop" mapstructure:"loop"`
	Grounding GroundingConfig `yaml:"grounding" mapstructure:"grounding"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the session persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite", "postgres", or "" for none
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// TavilyConfig holds Tavily Search API settings.
type TavilyConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	SearchDepth string  `yaml:"search_depth" mapstructure:"search_depth"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// AnthropicConfig holds Anthropic API settings for the reasoner.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	JudgeModel string `yaml:"judge_model" mapstructure:"judge_model"`
	SynthModel string `yaml:"synth_model" mapstructure:"synth_model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ScoringConfig holds the evidence scorer weights. Weights must sum to 1.0.
type ScoringConfig struct {
	CompletenessWeight  float64 `yaml:"completeness_weight" mapstructure:"completeness_weight"`
	FreshnessWeight     float64 `yaml:"freshness_weight" mapstructure:"freshness_weight"`
	RelevanceWeight     float64 `yaml:"relevance_weight" mapstructure:"relevance_weight"`
	SpecificityWeight   float64 `yaml:"specificity_weight" mapstructure:"specificity_weight"`
	SourceQualityWeight float64 `yaml:"source_quality_weight" mapstructure:"source_quality_weight"`

	// RuleWeight and OpinionWeight blend the rule score with the
	// opinion-adjusted score. They must also sum to 1.0.
	RuleWeight    float64 `yaml:"rule_weight" mapstructure:"rule_weight"`
	OpinionWeight float64 `yaml:"opinion_weight" mapstructure:"opinion_weight"`
}

// LoopConfig configures the retry orchestrator.
type LoopConfig struct {
	SufficiencyThreshold float64 `yaml:"sufficiency_threshold" mapstructure:"sufficiency_threshold"`
	MaxAttempts          int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	StrictGrounding      bool    `yaml:"strict_grounding" mapstructure:"strict_grounding"`
}

// GroundingConfig configures the hallucination gate.
type GroundingConfig struct {
	RatioThreshold   float64 `yaml:"ratio_threshold" mapstructure:"ratio_threshold"`
	NumberTolerance  float64 `yaml:"number_tolerance" mapstructure:"number_tolerance"`
	MinQuoteLength   int     `yaml:"min_quote_length" mapstructure:"min_quote_length"`
}

// ExportConfig configures report export.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultScoringConfig returns the hand-tuned factor weights.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		CompletenessWeight:  0.25,
		FreshnessWeight:     0.15,
		RelevanceWeight:     0.25,
		SpecificityWeight:   0.20,
		SourceQualityWeight: 0.15,
		RuleWeight:          0.6,
		OpinionWeight:       0.4,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EVIDENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "")
	v.SetDefault("store.path", "evidence.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.search_depth", "advanced")
	v.SetDefault("tavily.max_results", 3)
	v.SetDefault("tavily.rate_per_sec", 2)
	v.SetDefault("anthropic.judge_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.synth_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("scoring.completeness_weight", 0.25)
	v.SetDefault("scoring.freshness_weight", 0.15)
	v.SetDefault("scoring.relevance_weight", 0.25)
	v.SetDefault("scoring.specificity_weight", 0.20)
	v.SetDefault("scoring.source_quality_weight", 0.15)
	v.SetDefault("scoring.rule_weight", 0.6)
	v.SetDefault("scoring.opinion_weight", 0.4)
	v.SetDefault("loop.sufficiency_threshold", 6.0)
	v.SetDefault("loop.max_attempts", 3)
	v.SetDefault("loop.strict_grounding", false)
	v.SetDefault("grounding.ratio_threshold", 0.7)
	v.SetDefault("grounding.number_tolerance", 0.01)
	v.SetDefault("grounding.min_quote_length", 10)
	v.SetDefault("export.dir", "exports")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the scoring weight invariants.
func (c ScoringConfig) Validate() error {
	factorSum := c.CompletenessWeight + c.FreshnessWeight + c.RelevanceWeight +
		c.SpecificityWeight + c.SourceQualityWeight
	if math.Abs(factorSum-1.0) > 1e-9 {
		return eris.Errorf("config: factor weights sum to %.4f, want 1.0", factorSum)
	}
	blendSum := c.RuleWeight + c.OpinionWeight
	if math.Abs(blendSum-1.0) > 1e-9 {
		return eris.Errorf("config: blend weights sum to %.4f, want 1.0", blendSum)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
