package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/manasamancharla/deployly/internal/api/types"
	"github.com/manasamancharla/deployly/internal/services"
)

type ProjectsHandler struct {
	svc services.DeploymentService
}

func NewProjectsHandler(svc services.DeploymentService) *ProjectsHandler {
	return &ProjectsHandler{svc: svc}
}

// Get returns a project with its deployment history, newest first.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	project, deployments, err := h.svc.GetProject(r.Context(), slug)
	if err != nil {
		writeError(w, types.StatusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]any{
		"project":     project,
		"deployments": deployments,
	}})
}
