package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/cache"
	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
)

// API is the surface consumed by the controllers and the search enricher.
type API interface {
	Current(ctx context.Context, coord models.Coordinates) (models.CurrentConditions, error)
	Forecast(ctx context.Context, coord models.Coordinates) ([]models.ForecastSample, error)
}

// Client fetches current conditions and forecasts from an OpenWeatherMap-style
// provider. Current lookups are memoized by coordinate key through the cache;
// forecast lookups always go upstream.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      cache.Cache
	ttl        time.Duration
	backend    string
	logger     *zap.Logger
}

// New creates a Client. baseURL is the provider's data root
// (e.g. https://api.openweathermap.org/data/2.5).
func New(apiKey, baseURL string, timeout time.Duration, c cache.Cache, ttl time.Duration, backend string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:   c,
		ttl:     ttl,
		backend: backend,
		logger:  logger,
	}, nil
}

type providerMain struct {
	Temp    float64 `json:"temp"`
	TempMin float64 `json:"temp_min"`
	TempMax float64 `json:"temp_max"`
}

type providerCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type currentResponse struct {
	Name    string              `json:"name"`
	Main    providerMain        `json:"main"`
	Weather []providerCondition `json:"weather"`
}

type forecastResponse struct {
	List []struct {
		Dt      int64               `json:"dt"`
		Main    providerMain        `json:"main"`
		Weather []providerCondition `json:"weather"`
	} `json:"list"`
}

// Current returns conditions for the coordinate pair, serving from cache when
// an entry younger than the TTL exists. A fresh fetch overwrites the cache
// entry before returning.
func (c *Client) Current(ctx context.Context, coord models.Coordinates) (models.CurrentConditions, error) {
	key := coord.Key()

	cached, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheHitsTotal.WithLabelValues(c.backend).Inc()
		c.logger.Debug("cache hit", zap.String("key", key))
		return cached, nil
	}
	observability.CacheMissesTotal.WithLabelValues(c.backend).Inc()

	body, err := c.get(ctx, "weather", coord)
	if err != nil {
		return models.CurrentConditions{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.CurrentConditions{}, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	condition := "Clear"
	if len(resp.Weather) > 0 {
		condition = resp.Weather[0].Main
	}
	result := models.CurrentConditions{
		Temperature: resp.Main.Temp,
		High:        resp.Main.TempMax,
		Low:         resp.Main.TempMin,
		Condition:   condition,
		Icon:        IconFor(condition),
		Location:    resp.Name,
		FetchedAt:   time.Now(),
	}

	if err := c.cache.Set(ctx, key, result, c.ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return result, nil
}

// Forecast returns the raw 3-hour sample list for the coordinate pair.
// No caching; aggregation into daily summaries is the forecast package's job.
func (c *Client) Forecast(ctx context.Context, coord models.Coordinates) ([]models.ForecastSample, error) {
	body, err := c.get(ctx, "forecast", coord)
	if err != nil {
		return nil, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	samples := make([]models.ForecastSample, 0, len(resp.List))
	for _, item := range resp.List {
		condition := "Clear"
		if len(item.Weather) > 0 {
			condition = item.Weather[0].Main
		}
		samples = append(samples, models.ForecastSample{
			Time:      time.Unix(item.Dt, 0),
			High:      item.Main.TempMax,
			Low:       item.Main.TempMin,
			Condition: condition,
		})
	}
	return samples, nil
}

// ClearCache drops all cached conditions. Explicit operator action only.
func (c *Client) ClearCache(ctx context.Context) error {
	c.logger.Info("clearing conditions cache", zap.String("backend", c.backend))
	return c.cache.Clear(ctx)
}

// get issues a provider GET and returns the response body after status
// classification. endpoint is the path under the data root ("weather" or
// "forecast").
func (c *Client) get(ctx context.Context, endpoint string, coord models.Coordinates) ([]byte, error) {
	start := time.Now()

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	base = base.JoinPath(endpoint)

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", coord.Lat))
	params.Set("lon", fmt.Sprintf("%f", coord.Lon))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("request cancelled: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	status := StatusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if err := ErrorFromStatus(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("%w: HTTP %d", err, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return body, nil
}
