package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps collects the handlers mounted under /api/v1. Each handler
// registers its own routes on a sub-router.
type RouterDeps struct {
	Tools    RouteRegistrar
	Jobs     RouteRegistrar
	Projects RouteRegistrar
}

type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/tools", deps.Tools.RegisterRoutes)
		v1.Route("/jobs", deps.Jobs.RegisterRoutes)
		v1.Route("/projects", deps.Projects.RegisterRoutes)
	})

	return r
}
