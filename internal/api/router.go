package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-insights-pipeline/docs"
	"go-insights-pipeline/internal/api/handler"
	"go-insights-pipeline/internal/metrics"
	"go-insights-pipeline/pkg/router"
)

// RegisterRoutes mounts the service, job, metrics and documentation routes
func RegisterRoutes(r *router.Router, h *handler.Handler, m *metrics.Collector) {
	if m != nil {
		r.Use(m.Middleware)
	}

	r.GET("/", h.Welcome)
	r.GET("/info", h.Info)

	r.Route("/api/v1/pipelines", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/", h.CreatePipeline)
		r.Get("/", h.ListPipelines)
		r.Get("/{id}", h.GetPipeline)
		r.Get("/{id}/results", h.GetPipelineResults)
		r.Get("/{id}/errors", h.GetPipelineErrors)
		r.Get("/{id}/report", h.GetPipelineReport)
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	r.Handle("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
