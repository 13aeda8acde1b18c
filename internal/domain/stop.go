package domain

import (
	"fmt"
	"time"
)

// Earliest/latest allowed service start at a stop.
type TimeWindow struct {
	Earliest time.Time
	Latest   time.Time
}

func (w TimeWindow) Validate() error {
	if w.Latest.Before(w.Earliest) {
		return fmt.Errorf("%w: time window latest %s before earliest %s",
			ErrInvalidInput, w.Latest.Format(time.RFC3339), w.Earliest.Format(time.RFC3339))
	}
	return nil
}

// Represents a single location a technician must visit on a given day.
//
// A Fixed stop is a confirmed appointment: it keeps its window and is never
// reordered away from it or dropped. Non-fixed stops may be repositioned.
// ArriveAt, StartAt, DepartAt, WaitMinutes and Infeasible are filled in by the
// optimizer when the stop is placed in a RoutePlan.
type Stop struct {
	PropertyID     int64
	Coordinate     Coordinate
	ServiceMinutes float64
	TimeWindow     *TimeWindow
	Fixed          bool

	Infeasible  bool
	ArriveAt    time.Time
	StartAt     time.Time
	DepartAt    time.Time
	WaitMinutes float64
}

// Validate checks caller-supplied fields only.
func (s Stop) Validate() error {
	if err := s.Coordinate.Validate(); err != nil {
		return fmt.Errorf("stop property_id=%d: %w", s.PropertyID, err)
	}
	if s.ServiceMinutes < 0 {
		return fmt.Errorf("%w: stop property_id=%d has negative service minutes %v",
			ErrInvalidInput, s.PropertyID, s.ServiceMinutes)
	}
	if s.TimeWindow != nil {
		if err := s.TimeWindow.Validate(); err != nil {
			return fmt.Errorf("stop property_id=%d: %w", s.PropertyID, err)
		}
	}
	return nil
}

// Working day window of a technician.
type WorkingHours struct {
	Start time.Time
	End   time.Time
}

func (w WorkingHours) Minutes() float64 {
	return w.End.Sub(w.Start).Minutes()
}

func (w WorkingHours) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: working hours must have a start and an end", ErrInvalidInput)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: working hours window is empty", ErrInvalidInput)
	}
	return nil
}
