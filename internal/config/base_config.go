package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CheckBaseConfig verifies that the base site configuration exists and is a
// YAML mapping. The file is copied into workspaces verbatim, so a broken file
// would otherwise only surface as a generator failure on every job.
func CheckBaseConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read base config: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse base config YAML: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("base config %s is empty", path)
	}
	return nil
}
