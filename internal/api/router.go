package api

import (
	"net/http"
	"time"
	"visit-scheduling-service/internal/api/handlers"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
	"visit-scheduling-service/internal/ports"
	"visit-scheduling-service/internal/services"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Engine       *services.Engine
	Properties   ports.PropertyRepository
	Appointments ports.AppointmentRepository
	// Optional. Without it, commit requests are refused.
	Plans ports.PlanRepository
	Depot *domain.Coordinate
	Now   func() time.Time
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	priorityHandler := &handlers.PriorityHandler{Properties: d.Properties, Engine: d.Engine, Now: d.Now}
	routeHandler := &handlers.RouteHandler{Engine: d.Engine, DefaultOrigin: d.Depot, Now: d.Now}
	scheduleHandler := &handlers.ScheduleHandler{
		Planner: &services.DayPlanner{
			Engine:       d.Engine,
			Properties:   d.Properties,
			Appointments: d.Appointments,
		},
		Plans: d.Plans,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/priorities", priorityHandler.List)
	mux.HandleFunc("/routes/optimize", routeHandler.Optimize)
	mux.HandleFunc("/schedules", scheduleHandler.Schedule)

	routes := map[string]bool{
		"/health":          true,
		"/metrics":         true,
		"/priorities":      true,
		"/routes/optimize": true,
		"/schedules":       true,
	}

	return requestIDMiddleware(loggingMiddleware(routes, mux))
}
