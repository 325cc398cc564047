package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/manasamancharla/deployly/internal/api/types"
	"github.com/manasamancharla/deployly/internal/api/validators"
	"github.com/manasamancharla/deployly/internal/services"
)

// DeployHandler accepts deploy requests and acknowledges them immediately;
// the build happens on the worker after dispatch.
type DeployHandler struct {
	svc services.DeploymentService
}

func NewDeployHandler(svc services.DeploymentService) *DeployHandler {
	return &DeployHandler{svc: svc}
}

func (h *DeployHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req types.DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validators.New().Struct(req); err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.CreateDeployment(r.Context(), &services.CreateDeploymentInput{
		GitURL: req.GitURL,
		Slug:   req.Slug,
	})
	if err != nil {
		writeError(w, types.StatusOf(err), err)
		return
	}

	writeJSON(w, http.StatusOK, types.DeployAck{
		Status: "queued",
		Data: types.DeployData{
			ProjectSlug: res.Project.Slug,
			Project:     res.Project,
			Deployment:  res.Deployment,
			URL:         res.URL,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, types.APIResponse{Success: false, Error: types.FromAppError(err)})
}

func writeErrorStr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.APIResponse{Success: false, Error: &types.APIError{Code: "invalid", Message: msg}})
}
