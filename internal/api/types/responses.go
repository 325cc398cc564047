package types

import "github.com/manasamancharla/deployly/internal/models"

// DeployAck is the immediate acknowledgment for POST /deploy. The build
// outcome is never returned synchronously; callers observe it through the
// deployment record endpoints.
type DeployAck struct {
	Status string     `json:"status"`
	Data   DeployData `json:"data"`
}

type DeployData struct {
	ProjectSlug string             `json:"projectSlug"`
	Project     *models.Project    `json:"project"`
	Deployment  *models.Deployment `json:"deployment"`
	URL         string             `json:"url"`
}

// APIResponse is the envelope for the observation endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
