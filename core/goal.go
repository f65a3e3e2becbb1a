package core

import (
	"fmt"
	"strings"
)

// FaithType classifies the intent behind a Goal.
type FaithType string

const (
	// GoodFaith marks a genuine objective.
	GoodFaith FaithType = "good-faith"
	// BadFaith marks an adversarial or probing objective.
	BadFaith FaithType = "bad-faith"
)

// Valid reports whether f is one of the two known classifications.
func (f FaithType) Valid() bool { return f == GoodFaith || f == BadFaith }

// ParseFaithType accepts "good"/"bad" and the suffixed spellings
// ("good-faith", "good_faith", "Good Faith"), case-insensitively.
func ParseFaithType(s string) (FaithType, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("_", "-", " ", "-").Replace(n)
	n = strings.TrimSuffix(n, "-faith")
	switch n {
	case "good":
		return GoodFaith, nil
	case "bad":
		return BadFaith, nil
	default:
		return "", fmt.Errorf("unknown faith type %q", s)
	}
}

// Goal is one conversation objective for a persona/agent pair.
type Goal struct {
	ID            string    `json:"id"`
	Index         int       `json:"index"`
	Text          string    `json:"text"`
	FaithType     FaithType `json:"faith_type"`
	PersonaID     string    `json:"persona_id,omitempty"`
	AgentConfigID string    `json:"agent_config_id,omitempty"`
}
