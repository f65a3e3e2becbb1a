package conversation

import (
	"strings"

	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/internal/util"
)

// DefaultStopToken ends a conversation when emitted by either speaker.
const DefaultStopToken = "[END_CONVERSATION]"

// stopSignal reports whether text ends the conversation.
func stopSignal(token string, speaker core.Speaker, text string) bool {
	if token != "" && strings.Contains(text, token) {
		return true
	}
	return speaker == core.SpeakerPersona && goalAchieved(text)
}

// goalAchieved detects a persona verdict such as {"goal_achieved": true}.
func goalAchieved(text string) bool {
	if !strings.Contains(text, "goal_achieved") {
		return false
	}
	var verdict struct {
		GoalAchieved bool `json:"goal_achieved"`
	}
	if err := util.DecodeJSONObject(text, &verdict); err != nil {
		return false
	}
	return verdict.GoalAchieved
}

// unwrapSeed returns the seed_prompt of an opening answer shaped as
// {"seed_prompt": "..."} and the trimmed text otherwise.
func unwrapSeed(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, "seed_prompt") {
		return trimmed
	}
	var seed struct {
		SeedPrompt string `json:"seed_prompt"`
	}
	if err := util.DecodeJSONObject(trimmed, &seed); err != nil || strings.TrimSpace(seed.SeedPrompt) == "" {
		return trimmed
	}
	return strings.TrimSpace(seed.SeedPrompt)
}
