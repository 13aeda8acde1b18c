package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Sources      []int       `json:"sources"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// fetchMatrix retrieves origin x destination distance and duration in a single
// call to the OpenRouteService matrix endpoint. Repeated coordinates are sent
// once and referenced by index.
func (o *ORSClient) fetchMatrix(
	ctx context.Context,
	origins []domain.Coordinate,
	destinations []domain.Coordinate,
) (_ domain.CostMatrix, err error) {
	defer obs.Time(ctx, "ors.fetchMatrix")(&err)

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	locations := make([][]float64, 0, len(origins)+len(destinations))
	index := make(map[string]int, len(origins)+len(destinations))
	locate := func(c domain.Coordinate) int {
		if i, ok := index[c.Key()]; ok {
			return i
		}
		index[c.Key()] = len(locations)
		locations = append(locations, c.CoordsToList())
		return len(locations) - 1
	}

	sources := make([]int, 0, len(origins))
	for _, c := range origins {
		sources = append(sources, locate(c))
	}
	destIdx := make([]int, 0, len(destinations))
	for _, c := range destinations {
		destIdx = append(destIdx, locate(c))
	}

	if len(locations) < 2 {
		// Every point is the same location; nothing to ask ORS.
		return zeroMatrix(len(origins), len(destinations)), nil
	}

	payload, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Destinations: destIdx,
		Metrics:      []string{"distance", "duration"},
		Sources:      sources,
	})
	if err != nil {
		return domain.CostMatrix{}, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, "matrix", func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return domain.CostMatrix{}, providerError("ors matrix", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return domain.CostMatrix{}, &domain.ProviderError{Op: "ors matrix", Err: fmt.Errorf("decode matrix response: %w", err)}
	}

	if len(mr.Distances) != len(origins) || len(mr.Durations) != len(origins) {
		return domain.CostMatrix{}, &domain.ProviderError{Op: "ors matrix", Err: fmt.Errorf(
			"expected %d source rows; got distances=%d durations=%d",
			len(origins), len(mr.Distances), len(mr.Durations),
		)}
	}

	out := zeroMatrix(len(origins), len(destinations))
	for i := range origins {
		if len(mr.Distances[i]) != len(destinations) || len(mr.Durations[i]) != len(destinations) {
			return domain.CostMatrix{}, &domain.ProviderError{Op: "ors matrix", Err: fmt.Errorf(
				"row %d lengths do not match destinations: distances=%d durations=%d destinations=%d",
				i, len(mr.Distances[i]), len(mr.Durations[i]), len(destinations),
			)}
		}
		for j := range destinations {
			meters, seconds := mr.Distances[i][j], mr.Durations[i][j]
			if meters == nil || seconds == nil {
				return domain.CostMatrix{}, &domain.ProviderError{
					Op:  "ors matrix",
					Err: errors.New("matrix returned an unroutable pair"),
				}
			}
			// ORS reports meters and seconds.
			out.Distances[i][j] = domain.MetersToMiles(*meters)
			out.Durations[i][j] = domain.SecondsToMinutes(*seconds)
		}
	}

	return out, nil
}

func zeroMatrix(rows, cols int) domain.CostMatrix {
	m := domain.CostMatrix{
		Distances: make([][]float64, rows),
		Durations: make([][]float64, rows),
	}
	for i := 0; i < rows; i++ {
		m.Distances[i] = make([]float64, cols)
		m.Durations[i] = make([]float64, cols)
	}
	return m
}
