package domain

import (
	"strings"
	"time"
)

// NormalizeAddress case-folds and collapses whitespace. The result is the
// geocode cache key.
func NormalizeAddress(address string) string {
	return strings.Join(strings.Fields(strings.ToLower(address)), " ")
}

// Represents a customer property under a home-watch contract.
// Coordinate is nil until the address has been geocoded.
// The engine treats properties as read-only input.
type Property struct {
	ID                 int64
	Name               string
	Address            string
	Coordinate         *Coordinate
	VisitFrequencyDays int
	LastVisitDate      *time.Time
}

// Technician is a field technician with a home base and a working day.
// WorkStartMinute and WorkEndMinute are minutes after local midnight.
type Technician struct {
	ID              int64
	Name            string
	Origin          Coordinate
	WorkStartMinute int
	WorkEndMinute   int
	CapacityMinutes int
}

// WorkingHours returns the technician's working window on the given date.
func (t Technician) WorkingHours(date time.Time) WorkingHours {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return WorkingHours{
		Start: day.Add(time.Duration(t.WorkStartMinute) * time.Minute),
		End:   day.Add(time.Duration(t.WorkEndMinute) * time.Minute),
	}
}
