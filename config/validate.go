package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Document kinds reported by ValidateFile.
const (
	DocumentAgent         = "agent"
	DocumentGoalGenerator = "goal_generator"
	DocumentVirtualUser   = "virtual_user"
)

// ValidateFile detects the kind of a configuration document from its
// templates and fully validates it.
func ValidateFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ConfigError{Path: path, Err: err}
	}
	var probe struct {
		Templates map[string]any `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return "", &ConfigError{Path: path, Err: err}
	}

	switch {
	case has(probe.Templates, "role_and_task_prompt"):
		_, err = ParseVirtualUserConfig(data, path)
		return DocumentVirtualUser, err
	case has(probe.Templates, "user_prompt"):
		_, err = ParseGoalGeneratorConfig(data, path)
		return DocumentGoalGenerator, err
	default:
		_, err = ParseAgentConfig(data, path)
		return DocumentAgent, err
	}
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
