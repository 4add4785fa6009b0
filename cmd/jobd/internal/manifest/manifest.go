// Package manifest parses the YAML job manifest the run command enqueues
// at startup.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Job is one manifest entry. Kind selects a registered factory; Params are
// passed to it untouched. ID is optional and is generated when empty.
type Job struct {
	ID     string         `yaml:"id"`
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
}

// Manifest is the top-level document shape.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// Load reads and validates a manifest file.
func Load(path string) ([]Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(m.Jobs))
	for i, job := range m.Jobs {
		if job.Kind == "" {
			return nil, fmt.Errorf("manifest job %d: missing kind", i)
		}
		if job.ID != "" {
			if _, dup := seen[job.ID]; dup {
				return nil, fmt.Errorf("manifest job %d: duplicate id %q", i, job.ID)
			}
			seen[job.ID] = struct{}{}
		}
	}
	return m.Jobs, nil
}
