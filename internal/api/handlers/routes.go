package handlers

import (
	"net/http"
	"time"
	"visit-scheduling-service/internal/api/dto"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/services"
)

// RouteHandler optimizes an explicit list of stops.
type RouteHandler struct {
	Engine *services.Engine
	// Used when a request has no origin.
	DefaultOrigin *domain.Coordinate
	Now           func() time.Time
}

func (h *RouteHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.OptimizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Stops) > 200 {
		writeError(w, r, http.StatusBadRequest, "at most 200 stops per request")
		return
	}

	var origin domain.Coordinate
	switch {
	case req.Origin != nil:
		origin = domain.Coordinate{Lat: req.Origin.Lat, Lon: req.Origin.Lon}
	case h.DefaultOrigin != nil:
		origin = *h.DefaultOrigin
	default:
		writeError(w, r, http.StatusBadRequest, "origin is required")
		return
	}

	depart := time.Now()
	if h.Now != nil {
		depart = h.Now()
	}
	if req.DepartAt != nil {
		depart = *req.DepartAt
	}

	defaultService := h.Engine.Config().DefaultServiceMinutes
	stops := make([]domain.Stop, 0, len(req.Stops))
	for _, s := range req.Stops {
		stop := domain.Stop{
			PropertyID:     s.PropertyID,
			Coordinate:     domain.Coordinate{Lat: s.Lat, Lon: s.Lon},
			ServiceMinutes: defaultService,
			Fixed:          s.Fixed,
		}
		if s.ServiceMinutes != nil {
			stop.ServiceMinutes = *s.ServiceMinutes
		}
		switch {
		case s.WindowStart != nil && s.WindowEnd != nil:
			stop.TimeWindow = &domain.TimeWindow{Earliest: *s.WindowStart, Latest: *s.WindowEnd}
		case s.WindowStart != nil || s.WindowEnd != nil:
			writeError(w, r, http.StatusBadRequest, "window_start and window_end must be given together")
			return
		}
		stops = append(stops, stop)
	}

	plan, err := h.Engine.Optimize(r.Context(), services.OptimizeRequest{
		TechnicianID: req.TechnicianID,
		DepartAt:     depart,
		Origin:       origin,
		Stops:        stops,
	})
	if err != nil {
		writeServiceError(w, r, "optimize route", err)
		return
	}

	writeJSON(w, r, http.StatusOK, planResponse(plan, ""))
}
