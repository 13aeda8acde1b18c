package handlers

import (
	"net/http"
	"time"
	"visit-scheduling-service/internal/api/dto"
	"visit-scheduling-service/internal/ports"
	"visit-scheduling-service/internal/services"
)

const planStatusCommitted = "committed"

// ScheduleHandler plans a technician's day from stored properties and
// appointments, optionally committing the result.
type ScheduleHandler struct {
	Planner *services.DayPlanner
	Plans   ports.PlanRepository
}

func (h *ScheduleHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.TechnicianID <= 0 {
		writeError(w, r, http.StatusBadRequest, "technician_id is required")
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if req.ServiceMinutes < 0 || req.ServiceMinutes > 8*60 {
		writeError(w, r, http.StatusBadRequest, "service_minutes must be between 0 and 480")
		return
	}
	if req.Commit && h.Plans == nil {
		writeError(w, r, http.StatusNotImplemented, "plan storage is not configured")
		return
	}

	plan, err := h.Planner.PlanDay(r.Context(), services.PlanDayRequest{
		TechnicianID:    req.TechnicianID,
		Date:            date,
		ServiceMinutes:  req.ServiceMinutes,
		IncludeUpcoming: req.IncludeUpcoming,
	})
	if err != nil {
		writeServiceError(w, r, "schedule day", err)
		return
	}

	status := ""
	if req.Commit {
		plan.AssignID()
		if err := h.Plans.SavePlan(r.Context(), plan, planStatusCommitted); err != nil {
			writeServiceError(w, r, "save plan", err)
			return
		}
		status = planStatusCommitted
	}

	writeJSON(w, r, http.StatusOK, planResponse(plan, status))
}
