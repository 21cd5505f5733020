package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripFences(tt.in))
	}
}

func TestGenerateDocumentDisabled(t *testing.T) {
	c := NewClient("https://api.openai.com/v1", "", "gpt-4o", zerolog.Nop())
	_, err := c.GenerateDocument(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestGenerateDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "```json\n{\"version\":\"1.0\"}\n```"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", zerolog.Nop())
	doc, err := c.GenerateDocument(context.Background(), []byte("fake-image"), "image/png")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.0"}`, string(doc))
}

func TestGenerateDocumentModelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "rate limited upstream"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", zerolog.Nop())
	_, err := c.GenerateDocument(context.Background(), []byte("fake-image"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited upstream")
}
