package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/maulik225/NotumAi/internal/annotation"
	"github.com/maulik225/NotumAi/internal/storage"
)

type createProjectRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type saveAnnotationRequest struct {
	ProjectID   int64                   `json:"project_id"`
	ImageName   string                  `json:"image_name"`
	Annotations []annotation.Annotation `json:"annotations"`
}

func handleListProjects(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := deps.Store.ListProjects(r.Context())
		if err != nil {
			storeError(w, "listing projects", err)
			return
		}
		if projects == nil {
			projects = []storage.Project{}
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

func handleCreateProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httpError(w, http.StatusBadRequest, "name is required")
			return
		}

		p, err := deps.Store.CreateProject(r.Context(), req.Name, req.Path)
		if err != nil {
			storeError(w, "creating project", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// handleDeleteProject is idempotent: deleting a missing project still
// reports success.
func handleDeleteProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		if err := deps.Store.DeleteProject(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			storeError(w, "deleting project", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleGetState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		st, err := deps.Store.GetProjectState(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		if err != nil {
			storeError(w, "loading project state", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleSaveState(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		var u storage.StateUpdate
		if !decodeBody(w, r, &u) {
			return
		}
		if !u.Empty() {
			if err := deps.Store.SaveProjectState(r.Context(), id, u); err != nil {
				storeError(w, "saving project state", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := projectID(w, r)
		if !ok {
			return
		}
		stats, err := deps.Store.Stats(r.Context(), id)
		if err != nil {
			storeError(w, "computing stats", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleSaveAnnotation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req saveAnnotationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ImageName == "" {
			httpError(w, http.StatusBadRequest, "image_name is required")
			return
		}
		if err := deps.Store.SaveAnnotations(r.Context(), req.ProjectID, req.ImageName, req.Annotations); err != nil {
			storeError(w, "saving annotations", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

func handleLoadAnnotation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		id, err := strconv.ParseInt(q.Get("project_id"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid project_id %q", q.Get("project_id"))
			return
		}
		name := q.Get("image_name")
		if name == "" {
			httpError(w, http.StatusBadRequest, "image_name is required")
			return
		}

		anns, err := deps.Store.LoadAnnotations(r.Context(), id, name)
		if err != nil {
			storeError(w, "loading annotations", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"annotations": anns})
	}
}
