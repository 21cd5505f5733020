// Package vision calls an OpenAI-compatible vision model to turn a UI
// screenshot into the document JSON the editor consumes. The call is
// stateless: one image in, one JSON document out.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrDisabled = errors.New("vision generation is not configured")

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     zerolog.Logger
}

func NewClient(baseURL, apiKey, model string, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		logger:     logger.With().Str("component", "vision").Logger(),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type imageContent struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateDocument sends the screenshot to the model and returns the
// document JSON it produces.
func (c *Client) GenerateDocument(ctx context.Context, image []byte, contentType string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if contentType == "" {
		contentType = "image/png"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: documentPrompt},
			{Role: "user", Content: []imageContent{{
				Type:     "image_url",
				ImageURL: imageURL{URL: dataURL},
			}}},
		},
		Temperature: 0,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("vision model error: %s", parsed.Error.Message)
		}
		return nil, fmt.Errorf("vision model returned status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}

	c.logger.Info().Dur("elapsed", time.Since(start)).Int("imageBytes", len(image)).Msg("document generated")
	return []byte(StripFences(parsed.Choices[0].Message.Content)), nil
}

// StripFences removes a markdown code fence the model sometimes wraps the
// JSON in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const documentPrompt = `Given a wireframe image of a user interface, generate a JSON representation of its views and components.

Rules:
- Create one "view" object per distinct screen, with a descriptive name and a unique string id.
- Create one "component" object per discernible UI element, with a unique string id and a type chosen only from: text, button, image, container, table, checkbox, listbox, edittext, ellipse.
- Estimate x and y (top-left corner), width and height in conceptual pixels, origin at the top left.
- Populate "properties" from the visual attributes: text, placeholder, color, backgroundColor, fontSize, padding, src, checked, items, rows, columns, borderColor, borderWidth, textColor.

Output only JSON with this structure:
{
  "version": "1.0",
  "room": {
    "id": "...",
    "name": "...",
    "views": [
      {"id": "...", "name": "...", "components": [
        {"id": "...", "type": "...", "x": 0, "y": 0, "width": 0, "height": 0, "properties": {}}
      ]}
    ]
  }
}`
