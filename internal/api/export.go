package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maulik225/NotumAi/internal/export"
)

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := deps.Exporter.Export(r.Context(), req)
		if err != nil {
			if errors.Is(err, export.ErrUnsupportedFormat) {
				err = fmt.Errorf("Unsupported format: %s", req.Format)
			} else {
				slog.Error("export failed", "project_id", req.ProjectID, "format", req.Format, "error", err)
			}
			structuredError(w, nil, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
