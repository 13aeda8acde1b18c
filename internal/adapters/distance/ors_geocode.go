package distance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves one address with OpenRouteService (/geocode/search).
// Empty results and non-transient 4xx answers are reported as not found.
func (o *ORSClient) Geocode(ctx context.Context, address string) (_ domain.Coordinate, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	text := strings.TrimSpace(address)
	if text == "" {
		return domain.Coordinate{}, &domain.GeocodeError{Address: address, Err: domain.ErrInvalidInput}
	}

	endpoint := o.baseURL + "/geocode/search"

	resp, err := o.doWithRetry(ctx, "geocode", func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", text)
		q.Set("boundary.country", "US")
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.Coordinate{}, fmt.Errorf("ors geocode: %w", err)
		}
		perr := providerError("ors geocode", err)
		if domain.IsRetryable(perr) {
			return domain.Coordinate{}, &domain.GeocodeError{Address: address, Err: perr}
		}
		return domain.Coordinate{}, &domain.GeocodeError{
			Address: address,
			Err:     fmt.Errorf("%w: %v", domain.ErrGeocodeNotFound, perr),
		}
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinate{}, &domain.GeocodeError{
			Address: address,
			Err:     fmt.Errorf("%w: decode geocode response: %v", domain.ErrProviderUnavailable, err),
		}
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinate{}, &domain.GeocodeError{Address: address, Err: domain.ErrGeocodeNotFound}
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinate{}, &domain.GeocodeError{
			Address: address,
			Err:     fmt.Errorf("%w: invalid coordinate format", domain.ErrGeocodeNotFound),
		}
	}

	c := domain.Coordinate{Lon: coords[0], Lat: coords[1]}
	if err := c.Validate(); err != nil {
		return domain.Coordinate{}, &domain.GeocodeError{Address: address, Err: fmt.Errorf("%w: %v", domain.ErrGeocodeNotFound, err)}
	}
	return c, nil
}
