package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/imageio"
	"github.com/maulik225/NotumAi/internal/segment"
)

var errLabelerDisabled = errors.New("label assist is disabled")

type loadImagePathRequest struct {
	Path string `json:"path"`
}

// wirePoint accepts fractional coordinates from the front-end's canvas.
type wirePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type segmentRequest struct {
	Points    []wirePoint `json:"points"`
	ImageName string      `json:"image_name,omitempty"`
}

type suggestLabelRequest struct {
	ProjectID int64       `json:"project_id"`
	ImageName string      `json:"image_name"`
	Points    []wirePoint `json:"points"`
}

func toPoints(in []wirePoint) []annotation.Point {
	pts := make([]annotation.Point, len(in))
	for i, p := range in {
		pts[i] = annotation.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
	}
	return pts
}

// segmentMessage maps service errors onto the strings the front-end shows.
func segmentMessage(err error) error {
	switch {
	case errors.Is(err, segment.ErrNoPoints):
		return errors.New("No points provided")
	case errors.Is(err, segment.ErrNoImage):
		return errors.New("Image not set in predictor")
	}
	return err
}

func handleLoadImagePath(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loadImagePathRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if deps.Segmenter == nil {
			structuredError(w, nil, segment.ErrNoImage)
			return
		}
		info, err := deps.Segmenter.LoadImagePath(r.Context(), req.Path)
		if err != nil {
			slog.Warn("loading image failed", "path", req.Path, "error", err)
			structuredError(w, nil, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleLoadImage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, _, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "reading upload: %v", err)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "reading upload: %v", err)
			return
		}
		if deps.Segmenter == nil {
			structuredError(w, nil, segment.ErrNoImage)
			return
		}
		info, err := deps.Segmenter.Encode(r.Context(), data)
		if err != nil {
			slog.Warn("encoding upload failed", "bytes", len(data), "error", err)
			structuredError(w, nil, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func handleSegment(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req segmentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		emptyPolygon := map[string]any{"polygon": []annotation.Point{}}
		if deps.Segmenter == nil {
			structuredError(w, emptyPolygon, segmentMessage(segment.ErrNoImage))
			return
		}

		res, err := deps.Segmenter.Segment(r.Context(), toPoints(req.Points))
		if err != nil {
			structuredError(w, emptyPolygon, segmentMessage(err))
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleSuggestLabel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req suggestLabelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if deps.Labeler == nil {
			structuredError(w, nil, errLabelerDisabled)
			return
		}

		ctx := r.Context()
		paths, err := deps.Store.ImagePaths(ctx, req.ProjectID)
		if err != nil {
			structuredError(w, nil, err)
			return
		}
		path, ok := paths[req.ImageName]
		if !ok {
			structuredError(w, nil, fmt.Errorf("image %q is not part of project %d", req.ImageName, req.ProjectID))
			return
		}
		img, err := imageio.Open(path)
		if err != nil {
			structuredError(w, nil, err)
			return
		}
		cats, err := deps.Store.Categories(ctx, req.ProjectID)
		if err != nil {
			structuredError(w, nil, err)
			return
		}

		s, err := deps.Labeler.Suggest(ctx, img, toPoints(req.Points), cats)
		if err != nil {
			slog.Warn("label suggestion failed", "project_id", req.ProjectID, "image", req.ImageName, "error", err)
			structuredError(w, nil, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
