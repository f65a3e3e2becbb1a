package config

import (
	"embed"
	"os"
	"time"

	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/prompt"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// RetryPolicy mirrors a retries.<name> block.
type RetryPolicy struct {
	MaxAttempts    int     `yaml:"max_attempts"`
	BackoffSeconds float64 `yaml:"backoff_seconds"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// Backoff returns the initial backoff interval.
func (p RetryPolicy) Backoff() time.Duration {
	return time.Duration(p.BackoffSeconds * float64(time.Second))
}

// Timeout returns the per-attempt timeout, zero when unset.
func (p RetryPolicy) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds * float64(time.Second))
}

func (p RetryPolicy) validate(path, key string) error {
	switch {
	case p.MaxAttempts < 0:
		return invalid(path, key+".max_attempts", errNegative)
	case p.BackoffSeconds < 0:
		return invalid(path, key+".backoff_seconds", errNegative)
	case p.TimeoutSeconds < 0:
		return invalid(path, key+".timeout_seconds", errNegative)
	}
	return nil
}

// GoalGeneratorConfig holds the goal generation prompts and policy.
type GoalGeneratorConfig struct {
	LLM core.LLMConfig
	// SystemPrompt receives num_goals, num_good_faith and num_bad_faith.
	SystemPrompt *prompt.Template
	// UserPrompt receives persona variables plus agent_name,
	// agent_description and agent_sys_prompt.
	UserPrompt *prompt.Template
	Retry      RetryPolicy
}

// VirtualUserConfig holds the persona side prompts and policy.
type VirtualUserConfig struct {
	LLM            core.LLMConfig
	RoleAndTask    *prompt.Template
	TargetGoal     *prompt.Template
	JobDescription *prompt.Template
	// UserPrompt is the opening instruction; receives agent_sys_prompt and goal.
	UserPrompt *prompt.Template
	// Retry applies to every persona turn.
	Retry RetryPolicy
}

type simulationDocument struct {
	Metadata  *Metadata              `yaml:"metadata"`
	LLM       *llmDocument           `yaml:"llm"`
	Templates map[string]string      `yaml:"templates"`
	Retries   map[string]RetryPolicy `yaml:"retries"`
}

// LoadGoalGeneratorConfig reads a goal generator configuration file.
func LoadGoalGeneratorConfig(path string) (*GoalGeneratorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return ParseGoalGeneratorConfig(data, path)
}

// ParseGoalGeneratorConfig decodes a goal generator document.
func ParseGoalGeneratorConfig(data []byte, path string) (*GoalGeneratorConfig, error) {
	var doc simulationDocument
	if err := decodeStrict(data, &doc); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	llm, err := doc.LLM.resolve(path)
	if err != nil {
		return nil, err
	}
	cfg := &GoalGeneratorConfig{LLM: llm, Retry: doc.Retries["goal_generation"]}
	if err := cfg.Retry.validate(path, "retries.goal_generation"); err != nil {
		return nil, err
	}
	if cfg.SystemPrompt, err = requireTemplate(path, doc.Templates, "system_prompt"); err != nil {
		return nil, err
	}
	if cfg.UserPrompt, err = requireTemplate(path, doc.Templates, "user_prompt"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadVirtualUserConfig reads a virtual user configuration file.
func LoadVirtualUserConfig(path string) (*VirtualUserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return ParseVirtualUserConfig(data, path)
}

// ParseVirtualUserConfig decodes a virtual user document.
func ParseVirtualUserConfig(data []byte, path string) (*VirtualUserConfig, error) {
	var doc simulationDocument
	if err := decodeStrict(data, &doc); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	llm, err := doc.LLM.resolve(path)
	if err != nil {
		return nil, err
	}
	cfg := &VirtualUserConfig{LLM: llm, Retry: doc.Retries["turn"]}
	if err := cfg.Retry.validate(path, "retries.turn"); err != nil {
		return nil, err
	}
	for _, t := range []struct {
		key string
		dst **prompt.Template
	}{
		{"role_and_task_prompt", &cfg.RoleAndTask},
		{"target_goal", &cfg.TargetGoal},
		{"job_description_prompt", &cfg.JobDescription},
		{"user_prompt", &cfg.UserPrompt},
	} {
		if *t.dst, err = requireTemplate(path, doc.Templates, t.key); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// DefaultGoalGeneratorConfig returns the built-in goal generator configuration.
func DefaultGoalGeneratorConfig() *GoalGeneratorConfig {
	cfg, err := ParseGoalGeneratorConfig(mustReadDefault("goal_generator.yaml"), "defaults/goal_generator.yaml")
	if err != nil {
		panic(err)
	}
	return cfg
}

// DefaultVirtualUserConfig returns the built-in virtual user configuration.
func DefaultVirtualUserConfig() *VirtualUserConfig {
	cfg, err := ParseVirtualUserConfig(mustReadDefault("virtual_user.yaml"), "defaults/virtual_user.yaml")
	if err != nil {
		panic(err)
	}
	return cfg
}

func mustReadDefault(name string) []byte {
	data, err := defaultsFS.ReadFile("defaults/" + name)
	if err != nil {
		panic(err)
	}
	return data
}
