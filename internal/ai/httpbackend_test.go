package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackend_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  Karibu!  "}}]}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(BackendQuality, srv.URL+"/v1", "sk-test", "gpt-test", srv.Client())
	out, err := b.Complete(context.Background(), Prompt{
		System:   "You are a shop assistant",
		Messages: []Message{{Role: "user", Content: "Habari"}},
		JSON:     true,
	})

	require.NoError(t, err)
	assert.Equal(t, "Karibu!", out)
	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "gpt-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "Habari", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
}

func TestHTTPBackend_AcceptsFullEndpointURL(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"sawa"}}]}`))
	}))
	defer srv.Close()

	out, err := NewHTTPBackend(BackendFast, srv.URL+"/v1/chat/completions/", "", "m", srv.Client()).
		Complete(context.Background(), Prompt{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "sawa", out)
	assert.Equal(t, "/v1/chat/completions", path)
}

func TestHTTPBackend_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusBadGateway, body: `upstream down`},
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key","type":"invalid_request_error"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, want: ErrEmptyCompletion},
		{name: "not json", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPBackend(BackendFast, srv.URL, "", "", srv.Client()).Complete(context.Background(), Prompt{})
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestHTTPBackend_NotConfigured(t *testing.T) {
	_, err := NewHTTPBackend(BackendFast, "", "", "", nil).Complete(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
