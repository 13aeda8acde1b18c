package handlers

import (
	"fmt"
	"time"
	"visit-scheduling-service/internal/api/dto"
	"visit-scheduling-service/internal/domain"

	"github.com/google/uuid"
)

func planResponse(p *domain.RoutePlan, status string) dto.PlanResponse {
	res := dto.PlanResponse{
		TechnicianID:         p.TechnicianID,
		DepartAt:             p.DepartAt,
		Origin:               dto.Coordinate{Lat: p.Origin.Lat, Lon: p.Origin.Lon},
		TotalDistanceMiles:   p.TotalDistanceMiles,
		TotalDurationMinutes: p.TotalDurationMinutes,
		TravelMinutes:        p.TravelMinutes,
		ServiceMinutes:       p.ServiceMinutes,
		WaitMinutes:          p.WaitMinutes,
		Estimated:            p.Estimated,
		OverCapacity:         p.OverCapacity,
		Stops:                make([]dto.PlanStopResponse, 0, len(p.OrderedStops)),
		Legs:                 make([]dto.LegResponse, 0, len(p.Legs)),
		DroppedPropertyIDs:   nonNil(p.DroppedPropertyIDs),
		SkippedPropertyIDs:   nonNil(p.SkippedPropertyIDs),
		Warnings:             planWarnings(p),
		Status:               status,
	}
	if !p.Date.IsZero() {
		res.Date = p.Date.Format(time.DateOnly)
	}

	for _, s := range p.OrderedStops {
		stop := dto.PlanStopResponse{
			PropertyID:     s.PropertyID,
			Lat:            s.Coordinate.Lat,
			Lon:            s.Coordinate.Lon,
			Fixed:          s.Fixed,
			Infeasible:     s.Infeasible,
			ArriveAt:       s.ArriveAt,
			StartAt:        s.StartAt,
			DepartAt:       s.DepartAt,
			WaitMinutes:    s.WaitMinutes,
			ServiceMinutes: s.ServiceMinutes,
		}
		if s.TimeWindow != nil {
			start, end := s.TimeWindow.Earliest, s.TimeWindow.Latest
			stop.WindowStart, stop.WindowEnd = &start, &end
		}
		res.Stops = append(res.Stops, stop)
	}
	for _, l := range p.Legs {
		res.Legs = append(res.Legs, dto.LegResponse{
			FromStopIndex:   l.FromStopIndex,
			ToStopIndex:     l.ToStopIndex,
			DistanceMiles:   l.DistanceMiles,
			DurationMinutes: l.DurationMinutes,
		})
	}
	if p.ID != uuid.Nil {
		res.PlanID = p.ID.String()
	}
	return res
}

// planWarnings describes conditions the caller should review before dispatch.
func planWarnings(p *domain.RoutePlan) []string {
	warnings := []string{}
	if p.OverCapacity {
		warnings = append(warnings, "fixed appointments exceed the technician's capacity or working hours")
	}
	if ids := p.InfeasibleStops(); len(ids) > 0 {
		warnings = append(warnings, fmt.Sprintf("time window cannot be met for properties %v", ids))
	}
	if p.Estimated {
		warnings = append(warnings, "routing provider unavailable; distances and durations are estimates")
	}
	if len(p.DroppedPropertyIDs) > 0 {
		warnings = append(warnings, fmt.Sprintf("dropped to fit the day: properties %v", p.DroppedPropertyIDs))
	}
	if len(p.SkippedPropertyIDs) > 0 {
		warnings = append(warnings, fmt.Sprintf("no coordinate: properties %v", p.SkippedPropertyIDs))
	}
	return warnings
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
