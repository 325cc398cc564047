package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/manasamancharla/deployly/internal/api/handlers"
	mw "github.com/manasamancharla/deployly/internal/api/middleware"
)

type Dependencies struct {
	DeployHandler      *handlers.DeployHandler
	ProjectsHandler    *handlers.ProjectsHandler
	DeploymentsHandler *handlers.DeploymentsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	hh := handlers.NewHealthHandler()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	r.Post("/deploy", dep.DeployHandler.Deploy)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/projects/{slug}", dep.ProjectsHandler.Get)
		api.Route("/deployments", func(dr chi.Router) {
			dr.Get("/{id}", dep.DeploymentsHandler.Get)
			dr.Get("/{id}/logs", dep.DeploymentsHandler.Logs)
		})
	})

	return r
}
