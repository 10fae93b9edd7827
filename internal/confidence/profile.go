package confidence

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/evidence-cli/internal/config"
)

// Profile is a named, tunable set of scoring weights loaded from YAML.
// The weights were hand-tuned; profiles let operators experiment without
// rebuilding.
type Profile struct {
	Name    string               `yaml:"name"`
	Scoring config.ScoringConfig `yaml:"scoring"`
}

// LoadProfile reads a scoring profile from a YAML file and validates its
// weight invariants. Files have a top-level "profile" key.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "confidence: read profile %s", path)
	}

	var wrapper struct {
		Profile Profile `yaml:"profile"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "confidence: parse profile")
	}

	p := &wrapper.Profile
	if err := p.Scoring.Validate(); err != nil {
		return nil, eris.Wrapf(err, "confidence: profile %s", p.Name)
	}

	return p, nil
}
