package services

import (
	"slices"
	"visit-scheduling-service/internal/domain"
)

// AssignCandidates splits a ranked pool across technicians so that no
// property is offered to two technicians on the same day.
//
// Each geocoded candidate goes to the technician whose origin is nearest by
// great-circle distance, ties to the lower technician id. Rank order is kept
// within each pool. Candidates without a coordinate are returned separately.
func AssignCandidates(
	technicians []domain.Technician,
	pool []domain.Candidate,
) (map[int64][]domain.Candidate, []domain.Candidate) {
	techs := slices.Clone(technicians)
	slices.SortFunc(techs, func(a, b domain.Technician) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	out := make(map[int64][]domain.Candidate, len(techs))
	for _, t := range techs {
		out[t.ID] = []domain.Candidate{}
	}
	unlocated := []domain.Candidate{}
	if len(techs) == 0 {
		return out, unlocated
	}

	for _, c := range pool {
		if !c.Geocoded {
			unlocated = append(unlocated, c)
			continue
		}
		best := techs[0]
		bestMiles := domain.HaversineMiles(best.Origin, c.Stop.Coordinate)
		for _, t := range techs[1:] {
			if d := domain.HaversineMiles(t.Origin, c.Stop.Coordinate); d < bestMiles {
				best, bestMiles = t, d
			}
		}
		out[best.ID] = append(out[best.ID], c)
	}
	return out, unlocated
}
