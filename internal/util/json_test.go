package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`, true},
		{"surrounding whitespace", "\n  {\"a\": 1}\n", `{"a": 1}`, true},
		{"fenced", "Here you go:\n```json\n{\"goals\": []}\n```\nThanks", `{"goals": []}`, true},
		{"prose", `Sure! {"seed_prompt": "Habari"} Hope that helps.`, `{"seed_prompt": "Habari"}`, true},
		{"braces in strings", `note {"text": "use } and { freely"} end`, `{"text": "use } and { freely"}`, true},
		{"escaped quote", `{"text": "say \"hi\" {"}`, `{"text": "say \"hi\" {"}`, true},
		{"nested", `x {"a": {"b": [1, 2]}} y`, `{"a": {"b": [1, 2]}}`, true},
		{"invalid first candidate", `{not json} {"ok": true}`, `{"ok": true}`, true},
		{"none", "no json here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeJSONObject(t *testing.T) {
	var out struct {
		GoalAchieved bool `json:"goal_achieved"`
	}
	require.NoError(t, DecodeJSONObject("I am done. {\"goal_achieved\": true}", &out))
	assert.True(t, out.GoalAchieved)

	assert.ErrorIs(t, DecodeJSONObject("nothing", &out), ErrNoJSON)

	var wrongType struct {
		GoalAchieved bool `json:"goal_achieved"`
	}
	err := DecodeJSONObject(`{"goal_achieved": "yes"}`, &wrongType)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoJSON)
}
