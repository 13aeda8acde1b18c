package handlers

import (
	"math"
	"net/http"
	"time"
	"visit-scheduling-service/internal/api/dto"
	"visit-scheduling-service/internal/ports"
	"visit-scheduling-service/internal/services"
)

// PriorityHandler exposes the ranked visit queue.
type PriorityHandler struct {
	Properties ports.PropertyRepository
	Engine     *services.Engine
	Now        func() time.Time
}

// List ranks all properties as of ?as_of=YYYY-MM-DD (today in UTC by default).
func (h *PriorityHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	asOf := h.now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = d
	}

	props, err := h.Properties.ListProperties(r.Context())
	if err != nil {
		writeServiceError(w, r, "list properties", err)
		return
	}

	scores, err := h.Engine.Rank(props, asOf)
	if err != nil {
		writeServiceError(w, r, "rank properties", err)
		return
	}

	names := make(map[int64]string, len(props))
	for _, p := range props {
		names[p.ID] = p.Name
	}

	res := dto.ListPrioritiesResponse{
		AsOf:       asOf.Format(time.DateOnly),
		Priorities: make([]dto.PriorityResponse, 0, len(scores)),
	}
	for _, s := range scores {
		item := dto.PriorityResponse{
			PropertyID:         s.PropertyID,
			Name:               names[s.PropertyID],
			DaysSinceLastVisit: s.DaysSinceLastVisit,
			VisitFrequencyDays: s.VisitFrequencyDays,
			NeverVisited:       s.NeverVisited(),
			Bucket:             string(s.Bucket),
		}
		if !math.IsInf(s.UrgencyRatio, 0) {
			ratio := s.UrgencyRatio
			item.UrgencyRatio = &ratio
		}
		res.Priorities = append(res.Priorities, item)
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *PriorityHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
