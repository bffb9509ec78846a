package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/glasscast/glasscast/internal/observability"
	"github.com/glasscast/glasscast/internal/weather"
)

// GeoResult is one raw geocoding hit, in the provider's native ranking order.
type GeoResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// GeoClient queries the provider's direct-geocoding endpoint.
type GeoClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeoClient creates a GeoClient. baseURL is the geocoding root
// (e.g. https://api.openweathermap.org/geo/1.0).
func NewGeoClient(apiKey, baseURL string, timeout time.Duration) (*GeoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", weather.ErrInvalidAPIKey)
	}
	return &GeoClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Direct resolves query to at most limit locations. A provider 404 is a soft
// "no results" and yields an empty list; other failures map to the weather
// error taxonomy.
func (g *GeoClient) Direct(ctx context.Context, query string, limit int) ([]GeoResult, error) {
	base, err := url.Parse(g.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrInvalidURL, err)
	}
	base = base.JoinPath("direct")

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("appid", g.apiKey)
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		observability.GeocodingCallsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request cancelled: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", weather.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		observability.GeocodingCallsTotal.WithLabelValues("empty").Inc()
		return nil, nil
	}
	observability.GeocodingCallsTotal.WithLabelValues(weather.StatusLabel(resp.StatusCode)).Inc()
	if err := weather.ErrorFromStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("%w: HTTP %d", err, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrNetwork, err)
	}
	var results []GeoResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrDecoding, err)
	}
	return results, nil
}
