package config

import (
	"os"
	"strconv"
	"time"
)

// Settings are process level options read from the environment.
type Settings struct {
	LogLevel  string
	LogFormat string
	// AgentDir holds agent configuration documents.
	AgentDir string
	// GoalGeneratorConfig and VirtualUserConfig override the built-in defaults when set.
	GoalGeneratorConfig string
	VirtualUserConfig   string
	// Database is the SQLite persona store path; empty selects the in-memory store.
	Database string
	// ResultsDir is where batch results are written; empty keeps them in memory.
	ResultsDir     string
	Addr           string
	Concurrency    int
	RateLimit      float64
	SessionTimeout time.Duration
}

// DefaultSettings returns the settings used when no variable is set.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:    "info",
		LogFormat:   "json",
		AgentDir:    "configs/agents",
		Addr:        ":8080",
		Concurrency: 4,
	}
}

// LoadSettings applies PERSONASIM_* environment overrides to the defaults.
// Unparseable numeric values are ignored.
func LoadSettings() Settings {
	s := DefaultSettings()
	if v := os.Getenv("PERSONASIM_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv("PERSONASIM_LOG_FORMAT"); v != "" {
		s.LogFormat = v
	}
	if v := os.Getenv("PERSONASIM_AGENT_DIR"); v != "" {
		s.AgentDir = v
	}
	if v := os.Getenv("PERSONASIM_GOAL_GENERATOR_CONFIG"); v != "" {
		s.GoalGeneratorConfig = v
	}
	if v := os.Getenv("PERSONASIM_VIRTUAL_USER_CONFIG"); v != "" {
		s.VirtualUserConfig = v
	}
	if v := os.Getenv("PERSONASIM_DB"); v != "" {
		s.Database = v
	}
	if v := os.Getenv("PERSONASIM_RESULTS_DIR"); v != "" {
		s.ResultsDir = v
	}
	if v := os.Getenv("PERSONASIM_ADDR"); v != "" {
		s.Addr = v
	}
	if v := os.Getenv("PERSONASIM_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.Concurrency = n
		}
	}
	if v := os.Getenv("PERSONASIM_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			s.RateLimit = f
		}
	}
	if v := os.Getenv("PERSONASIM_SESSION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.SessionTimeout = d
		}
	}
	return s
}

// GoalGenerator loads the configured goal generator document or the default.
func (s Settings) GoalGenerator() (*GoalGeneratorConfig, error) {
	if s.GoalGeneratorConfig == "" {
		return DefaultGoalGeneratorConfig(), nil
	}
	return LoadGoalGeneratorConfig(s.GoalGeneratorConfig)
}

// VirtualUser loads the configured virtual user document or the default.
func (s Settings) VirtualUser() (*VirtualUserConfig, error) {
	if s.VirtualUserConfig == "" {
		return DefaultVirtualUserConfig(), nil
	}
	return LoadVirtualUserConfig(s.VirtualUserConfig)
}
