// Package labeler asks a local Ollama vision model which project category
// best describes a polygon region.
package labeler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/geometry"
)

// ErrNoCategories is returned when there is nothing to choose from.
var ErrNoCategories = errors.New("project has no categories")

// cropPadding widens the polygon's bounding box on every side, as a
// fraction of its size, so the model sees some context.
const cropPadding = 0.1

// Suggestion is the model's answer. ClassName is empty when the answer does
// not name one of the project's categories.
type Suggestion struct {
	ClassName string `json:"className"`
	Raw       string `json:"raw"`
}

// Client talks to a local Ollama instance.
type Client struct {
	api    *api.Client
	model  string
	logger *slog.Logger
}

// New creates a Client for the Ollama server at baseURL using the given
// vision model.
func New(baseURL, model string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama URL %q", baseURL)
	}
	return &Client{
		api:    api.NewClient(&url.URL{Scheme: u.Scheme, Host: u.Host}, http.DefaultClient),
		model:  model,
		logger: slog.Default(),
	}, nil
}

// Model returns the vision model name.
func (c *Client) Model() string { return c.model }

// IsRunning reports whether the Ollama server answers.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.api.Heartbeat(ctx) == nil
}

// HasModel reports whether name is present locally.
func (c *Client) HasModel(ctx context.Context, name string) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := c.api.List(ctx)
	if err != nil {
		return false
	}
	for _, m := range resp.Models {
		// Ollama may return "llava:latest"; match without the tag suffix.
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true
		}
	}
	return false
}

// Suggest crops img around polygon and asks the model to pick one of
// categories.
func (c *Client) Suggest(ctx context.Context, img image.Image, polygon []annotation.Point, categories []annotation.Category) (Suggestion, error) {
	if len(categories) == 0 {
		return Suggestion{}, ErrNoCategories
	}
	if len(polygon) < annotation.MinPolygonPoints {
		return Suggestion{}, geometry.ErrDegenerate
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 120*time.Second)
		defer cancel()
	}

	crop := cropRegion(img, geometry.Bounds(polygon))
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, crop, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return Suggestion{}, fmt.Errorf("encoding crop: %w", err)
	}

	names := make([]string, len(categories))
	for i, cat := range categories {
		names[i] = cat.Name
	}

	stream := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: buildPrompt(names),
			Images:  []api.ImageData{api.ImageData(buf.Bytes())},
		}},
		Stream:  &stream,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": 0},
	}

	var content string
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("ollama chat: %w", err)
	}

	s := Suggestion{Raw: content, ClassName: matchCategory(content, names)}
	c.logger.Debug("label suggested", "model", c.model, "class", s.ClassName, "raw", content)
	return s, nil
}

func buildPrompt(names []string) string {
	var b strings.Builder
	b.WriteString("You are labelling objects for a computer vision dataset. ")
	b.WriteString("The image is a crop around one object. Choose the single best matching label from this list:\n")
	for _, n := range names {
		b.WriteString("- ")
		b.WriteString(n)
		b.WriteByte('\n')
	}
	b.WriteString(`Respond with JSON only, in the form {"className": "<label>"}. Use a label from the list verbatim.`)
	return b.String()
}

// cropRegion returns the padded bounding box of the polygon, clipped to img.
func cropRegion(img image.Image, box geometry.Box) image.Image {
	padX := int(float64(box.Width())*cropPadding) + 1
	padY := int(float64(box.Height())*cropPadding) + 1
	r := image.Rect(box.MinX-padX, box.MinY-padY, box.MaxX+padX+1, box.MaxY+padY+1)
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return img
	}
	return imaging.Crop(img, r)
}

// matchCategory extracts the className from the model output and maps it
// onto a known category, ignoring case and surrounding whitespace.
func matchCategory(content string, names []string) string {
	var parsed struct {
		ClassName string `json:"className"`
		Label     string `json:"label"`
	}
	answer := strings.TrimSpace(content)
	if start, end := strings.Index(answer, "{"), strings.LastIndex(answer, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(answer[start:end+1]), &parsed); err == nil {
			answer = parsed.ClassName
			if answer == "" {
				answer = parsed.Label
			}
		}
	}
	answer = strings.Trim(strings.TrimSpace(answer), `"'.`)

	for _, n := range names {
		if strings.EqualFold(n, answer) {
			return n
		}
	}
	return ""
}
