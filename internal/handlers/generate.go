package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/uidraft/backend/internal/auth"
	"github.com/uidraft/backend/internal/codegen"
	"github.com/uidraft/backend/internal/models"
	"github.com/uidraft/backend/internal/ratelimit"
	"github.com/uidraft/backend/internal/storage"
	"github.com/uidraft/backend/internal/vision"
)

const maxUploadSize = 10 << 20

type GenerateHandler struct {
	vision  *vision.Client
	storage *storage.Service
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

func NewGenerateHandler(visionClient *vision.Client, store *storage.Service, limiter *ratelimit.Limiter, logger zerolog.Logger) *GenerateHandler {
	return &GenerateHandler{
		vision:  visionClient,
		storage: store,
		limiter: limiter,
		logger:  logger.With().Str("handler", "generate").Logger(),
	}
}

// Flutter renders the posted document as a Flutter project and streams it
// back as a zip archive.
func (h *GenerateHandler) Flutter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Room struct {
			Name  string        `json:"name"`
			Views []models.View `json:"views"`
		} `json:"room"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Room.Views) == 0 {
		writeError(w, http.StatusBadRequest, "room.views is required")
		return
	}

	files, err := codegen.GenerateProject(req.Room.Views)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := codegen.WriteArchive(&buf, files); err != nil {
		h.logger.Error().Err(err).Msg("archive generation failed")
		writeError(w, http.StatusInternalServerError, "failed to generate project")
		return
	}

	if h.storage != nil {
		name := fmt.Sprintf("%s_%d.zip", req.Room.Name, time.Now().UnixMilli())
		data := make([]byte, buf.Len())
		copy(data, buf.Bytes())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			h.storage.PutExport(ctx, name, data)
		}()
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="flutter_generated_app.zip"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	io.Copy(w, &buf)
}

// JSON turns an uploaded UI screenshot into the editor's document JSON via
// the vision model.
func (h *GenerateHandler) JSON(w http.ResponseWriter, r *http.Request) {
	if !h.vision.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "image generation is not configured")
		return
	}

	userID, _ := auth.UserID(r.Context())
	if err := h.limiter.Check(r.Context(), "vision", userID.String(), ratelimit.VisionLimit()); err != nil {
		writeError(w, http.StatusTooManyRequests, "too many generation requests")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("ui")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image is required (form field name: ui)")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	contentType := header.Header.Get("Content-Type")

	doc, err := h.vision.GenerateDocument(r.Context(), image, contentType)
	if err != nil {
		if errors.Is(err, vision.ErrDisabled) {
			writeError(w, http.StatusServiceUnavailable, "image generation is not configured")
			return
		}
		h.logger.Error().Err(err).Msg("vision generation failed")
		writeError(w, http.StatusInternalServerError, "failed to generate JSON from image")
		return
	}

	if h.storage != nil {
		name := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), header.Filename)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			h.storage.PutScreenshot(ctx, name, image, contentType)
		}()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(doc)
}
