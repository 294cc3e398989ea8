package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/forcegraph/internal/dynamo"
)

// Settings is a partial update applied to a running session. Nil sections
// are left untouched. Simulator values are in client (slider) form, keyed by
// algorithm and then parameter name.
type Settings struct {
	Simulator  map[string]map[string]any `yaml:"simulator,omitempty" json:"simulator,omitempty"`
	Locks      *dynamo.Locks             `yaml:"locks,omitempty" json:"locks,omitempty"`
	Visible    *dynamo.Visibility        `yaml:"visible,omitempty" json:"visible,omitempty"`
	TimeSubset *dynamo.TimeSubset        `yaml:"timeSubset,omitempty" json:"timeSubset,omitempty"`
}

func (s *Settings) IsEmpty() bool {
	return s == nil || (len(s.Simulator) == 0 && s.Locks == nil && s.Visible == nil && s.TimeSubset == nil)
}

// LoadSettings reads a YAML (or JSON) settings file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return &s, nil
}
