package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/prompt"
	"gopkg.in/yaml.v3"
)

// Metadata identifies a configuration document.
type Metadata struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

type llmDocument struct {
	Hub       string       `yaml:"hub"`
	Model     string       `yaml:"model"`
	BaseURL   string       `yaml:"base_url"`
	APIKeyEnv string       `yaml:"api_key_env"`
	Params    *core.Params `yaml:"params"`
}

type agentDocument struct {
	Metadata  *Metadata         `yaml:"metadata"`
	LLM       *llmDocument      `yaml:"llm"`
	Templates map[string]string `yaml:"templates"`
}

// LoadAgentConfig reads and validates an agent configuration file. When
// metadata.id is empty the file stem becomes the id.
func LoadAgentConfig(path string) (*core.AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	cfg, err := ParseAgentConfig(data, path)
	if err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = stem(path)
	}
	return cfg, nil
}

// ParseAgentConfig decodes an agent configuration document. path is only
// used in error messages.
func ParseAgentConfig(data []byte, path string) (*core.AgentConfig, error) {
	var doc agentDocument
	if err := decodeStrict(data, &doc); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if doc.Metadata == nil {
		return nil, missing(path, "metadata")
	}
	llm, err := doc.LLM.resolve(path)
	if err != nil {
		return nil, err
	}
	system, err := requireTemplate(path, doc.Templates, "system_prompt")
	if err != nil {
		return nil, err
	}

	name := doc.Metadata.Name
	if name == "" {
		name = doc.Metadata.ID
	}
	return &core.AgentConfig{
		ID:           doc.Metadata.ID,
		Name:         name,
		Description:  doc.Metadata.Description,
		LLM:          llm,
		SystemPrompt: system.String(),
	}, nil
}

func (d *llmDocument) resolve(path string) (core.LLMConfig, error) {
	if d == nil {
		return core.LLMConfig{}, missing(path, "llm")
	}
	if strings.TrimSpace(d.Hub) == "" {
		return core.LLMConfig{}, missing(path, "llm.hub")
	}
	if strings.TrimSpace(d.Model) == "" {
		return core.LLMConfig{}, missing(path, "llm.model")
	}
	if d.Params == nil {
		return core.LLMConfig{}, missing(path, "llm.params")
	}
	if d.Params.Temperature < 0 || d.Params.Temperature > 2 {
		return core.LLMConfig{}, invalid(path, "llm.params.temperature", fmt.Errorf("%v outside [0, 2]", d.Params.Temperature))
	}
	return core.LLMConfig{
		Hub:       strings.ToLower(strings.TrimSpace(d.Hub)),
		Model:     d.Model,
		BaseURL:   d.BaseURL,
		APIKeyEnv: d.APIKeyEnv,
		Params:    *d.Params,
	}, nil
}

// requireTemplate fetches a non-empty template and checks its syntax.
func requireTemplate(path string, templates map[string]string, key string) (*prompt.Template, error) {
	full := "templates." + key
	if templates == nil {
		return nil, missing(path, "templates")
	}
	text, ok := templates[key]
	if !ok || strings.TrimSpace(text) == "" {
		return nil, missing(path, full)
	}
	tmpl, err := prompt.Parse(text)
	if err != nil {
		return nil, invalid(path, full, err)
	}
	return tmpl, nil
}

// decodeStrict rejects unknown top-level keys so typos surface as errors.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parsing yaml: %w", err)
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
