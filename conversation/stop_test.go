package conversation

import (
	"testing"

	"github.com/hupe1980/personasim/core"
	"github.com/stretchr/testify/assert"
)

func TestStopSignal(t *testing.T) {
	tests := []struct {
		name    string
		speaker core.Speaker
		text    string
		want    bool
	}{
		{"token from persona", core.SpeakerPersona, "ok bye [END_CONVERSATION]", true},
		{"token from agent", core.SpeakerAgent, "[END_CONVERSATION]", true},
		{"verdict from persona", core.SpeakerPersona, `{"goal_achieved": true}`, true},
		{"verdict in prose", core.SpeakerPersona, "Done here.\n```json\n{\"goal_achieved\": true, \"reason\": \"answered\"}\n```", true},
		{"negative verdict", core.SpeakerPersona, `{"goal_achieved": false}`, false},
		{"verdict from agent ignored", core.SpeakerAgent, `{"goal_achieved": true}`, false},
		{"mention without json", core.SpeakerPersona, "is the goal_achieved yet?", false},
		{"plain text", core.SpeakerPersona, "Tell me more.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stopSignal(DefaultStopToken, tt.speaker, tt.text))
		})
	}

	assert.False(t, stopSignal("", core.SpeakerAgent, "[END_CONVERSATION]"))
}

func TestUnwrapSeed(t *testing.T) {
	assert.Equal(t, "Habari", unwrapSeed(`{"seed_prompt": "Habari"}`))
	assert.Equal(t, "Habari", unwrapSeed("Sure:\n{\"seed_prompt\": \" Habari \"}"))
	assert.Equal(t, "Hello there", unwrapSeed("  Hello there "))
	assert.Equal(t, `{"seed_prompt": ""}`, unwrapSeed(`{"seed_prompt": ""}`))
	assert.Equal(t, "my seed_prompt is broken {", unwrapSeed("my seed_prompt is broken {"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "persona_turn", StatePersonaTurn.String())
	assert.Equal(t, "agent_turn", StateAgentTurn.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
