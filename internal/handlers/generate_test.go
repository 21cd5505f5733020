package handlers

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uidraft/backend/internal/ratelimit"
	"github.com/uidraft/backend/internal/vision"
)

func newGenerateHandler() *GenerateHandler {
	return NewGenerateHandler(
		vision.NewClient("https://api.openai.com/v1", "", "gpt-4o", zerolog.Nop()),
		nil,
		ratelimit.NewLimiter(nil),
		zerolog.Nop(),
	)
}

func TestFlutterExport(t *testing.T) {
	h := newGenerateHandler()

	body := `{"room":{"name":"demo","views":[{"id":"v1","name":"home","components":[
		{"id":"c1","type":"text","x":0,"y":0,"width":100,"height":30,"properties":{"text":"Hi"}}
	]}]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/flutter/generate-flutter", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Flutter(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)

	var paths []string
	for _, f := range zr.File {
		paths = append(paths, f.Name)
	}
	assert.ElementsMatch(t, []string{"lib/home.dart", "lib/main.dart", "pubspec.yaml"}, paths)
}

func TestFlutterExportValidation(t *testing.T) {
	h := newGenerateHandler()

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"no views", `{"room":{"name":"demo"}}`},
		{"empty views", `{"room":{"views":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/flutter/generate-flutter", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Flutter(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestJSONRequiresVision(t *testing.T) {
	h := newGenerateHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/generate/generate-json", nil)
	rec := httptest.NewRecorder()

	h.JSON(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
