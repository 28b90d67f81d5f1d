package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsAppClient_SendText(t *testing.T) {
	var (
		path string
		got  textMessage
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	c := NewWhatsAppClient(srv.URL+"/", "token-1", srv.Client())
	require.NoError(t, c.SendText(context.Background(), "10001", "254712345678", "Asante!"))

	assert.Equal(t, "/10001/messages", path)
	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "254712345678", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "Asante!", got.Text.Body)
}

func TestWhatsAppClient_GraphError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100}}`))
	}))
	defer srv.Close()

	err := NewWhatsAppClient(srv.URL, "token-1", srv.Client()).SendText(context.Background(), "10001", "2547", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid parameter")
	assert.Contains(t, err.Error(), "code 100")
}

func TestWhatsAppClient_NotConfigured(t *testing.T) {
	err := NewWhatsAppClient("https://graph.example", "", nil).SendText(context.Background(), "10001", "2547", "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
