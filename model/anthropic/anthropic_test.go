package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/personasim/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageJSON = `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-test",
  "content": [{"type": "text", "text": "Habari"}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 5, "output_tokens": 3}
}`

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewModel(func(o *Options) {
		o.APIKey = "test-key"
		o.BaseURL = srv.URL
		o.Model = "claude-test"
	})
}

func TestModel_Complete(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, messageJSON)
	})

	resp, err := m.Complete(context.Background(), model.Request{
		SystemPrompt: "system text",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "Hello"},
			{Role: model.RoleAssistant, Content: ""},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Habari", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, 8, resp.Usage.TotalTokens)

	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1, "empty messages are dropped")
	assert.NotNil(t, body["system"])
}

func TestModel_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   string
	}{
		{http.StatusTooManyRequests, model.KindRateLimited},
		{http.StatusUnauthorized, model.KindAuthFailure},
		{529, model.KindUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "x", "message": "nope"}}`)
			})

			_, err := m.Complete(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "x"}}})
			var pe *model.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind())
			assert.Equal(t, "anthropic", pe.Provider)
		})
	}
}

func TestModel_NoText(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"m","type":"message","role":"assistant","model":"c","content":[],"stop_reason":"max_tokens","usage":{"input_tokens":1,"output_tokens":0}}`)
	})
	_, err := m.Complete(context.Background(), model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, model.ErrMalformedResponse)
}
