package dto

import "time"

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type StopRequest struct {
	PropertyID     int64      `json:"property_id"`
	Lat            float64    `json:"lat"`
	Lon            float64    `json:"lon"`
	ServiceMinutes *float64   `json:"service_minutes"`
	WindowStart    *time.Time `json:"window_start"`
	WindowEnd      *time.Time `json:"window_end"`
	Fixed          bool       `json:"fixed"`
}

type OptimizeRequest struct {
	TechnicianID int64         `json:"technician_id"`
	Origin       *Coordinate   `json:"origin"`
	DepartAt     *time.Time    `json:"depart_at"`
	Stops        []StopRequest `json:"stops"`
}

type ScheduleRequest struct {
	TechnicianID    int64   `json:"technician_id"`
	Date            string  `json:"date"`
	ServiceMinutes  float64 `json:"service_minutes"`
	IncludeUpcoming bool    `json:"include_upcoming"`
	Commit          bool    `json:"commit"`
}

type PlanStopResponse struct {
	PropertyID     int64      `json:"property_id"`
	Lat            float64    `json:"lat"`
	Lon            float64    `json:"lon"`
	Fixed          bool       `json:"fixed"`
	Infeasible     bool       `json:"infeasible"`
	WindowStart    *time.Time `json:"window_start,omitempty"`
	WindowEnd      *time.Time `json:"window_end,omitempty"`
	ArriveAt       time.Time  `json:"arrive_at"`
	StartAt        time.Time  `json:"start_at"`
	DepartAt       time.Time  `json:"depart_at"`
	WaitMinutes    float64    `json:"wait_minutes"`
	ServiceMinutes float64    `json:"service_minutes"`
}

type LegResponse struct {
	FromStopIndex   int     `json:"from_stop_index"`
	ToStopIndex     int     `json:"to_stop_index"`
	DistanceMiles   float64 `json:"distance_miles"`
	DurationMinutes float64 `json:"duration_minutes"`
}

type PlanResponse struct {
	PlanID               string             `json:"plan_id,omitempty"`
	TechnicianID         int64              `json:"technician_id"`
	Date                 string             `json:"date,omitempty"`
	DepartAt             time.Time          `json:"depart_at"`
	Origin               Coordinate         `json:"origin"`
	TotalDistanceMiles   float64            `json:"total_distance_miles"`
	TotalDurationMinutes float64            `json:"total_duration_minutes"`
	TravelMinutes        float64            `json:"travel_minutes"`
	ServiceMinutes       float64            `json:"service_minutes"`
	WaitMinutes          float64            `json:"wait_minutes"`
	Estimated            bool               `json:"estimated"`
	OverCapacity         bool               `json:"over_capacity"`
	Stops                []PlanStopResponse `json:"stops"`
	Legs                 []LegResponse      `json:"legs"`
	DroppedPropertyIDs   []int64            `json:"dropped_property_ids"`
	SkippedPropertyIDs   []int64            `json:"skipped_property_ids"`
	Warnings             []string           `json:"warnings"`
	Status               string             `json:"status,omitempty"`
}
