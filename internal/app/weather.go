package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/bus"
	"github.com/glasscast/glasscast/internal/forecast"
	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
	"github.com/glasscast/glasscast/internal/weather"
)

// WeatherView is the renderable weather snapshot: current conditions plus the
// aggregated daily forecast, with temperatures already converted to the
// display unit. ErrorMessage is set instead of the data when the last fetch
// failed.
type WeatherView struct {
	Current      *models.CurrentConditions `json:"current,omitempty"`
	Forecast     []models.DailySummary     `json:"forecast,omitempty"`
	Unit         models.TemperatureUnit    `json:"unit"`
	ErrorMessage string                    `json:"errorMessage,omitempty"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
}

// Controller fetches weather for the selected coordinates and maintains the
// current view. Each Refresh supersedes any in-flight fetch: the newest
// request always wins and a stale result never overwrites a newer one.
type Controller struct {
	api      weather.API
	events   *bus.Bus
	settings *Settings
	logger   *zap.Logger

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	coord   models.Coordinates
	current *models.CurrentConditions // metric, as fetched
	daily   []models.DailySummary     // metric, as aggregated
	errMsg  string
	view    WeatherView
}

func NewController(api weather.API, events *bus.Bus, settings *Settings, logger *zap.Logger) *Controller {
	return &Controller{
		api:      api,
		events:   events,
		settings: settings,
		logger:   logger,
	}
}

// View returns the last rendered snapshot.
func (c *Controller) View() WeatherView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Coord returns the coordinates of the last requested fetch.
func (c *Controller) Coord() models.Coordinates {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coord
}

// Refresh starts a fetch for coord, cancelling any fetch still in flight.
// Returns immediately; the view updates when the fetch lands.
func (c *Controller) Refresh(coord models.Coordinates) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.coord = coord
	c.mu.Unlock()

	c.logger.Debug("refreshing weather",
		zap.String("coord", coord.Key()),
		zap.Uint64("generation", gen))
	go c.fetch(ctx, gen, coord)
}

// Run reacts to city selections and unit changes until ctx is cancelled.
// Call it once, on its own goroutine.
func (c *Controller) Run(ctx context.Context) {
	events, cancel := c.events.Subscribe(bus.CitySelected, bus.UnitChanged)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case bus.CitySelected:
				if e.City != nil {
					c.Refresh(e.City.Coord())
				}
			case bus.UnitChanged:
				// Re-render the held snapshot; no refetch needed, the
				// provider data is unit-independent.
				c.mu.Lock()
				c.renderLocked()
				c.mu.Unlock()
			}
		}
	}
}

// fetch retrieves current conditions and the forecast concurrently, then
// publishes the result only if this fetch is still the newest one.
func (c *Controller) fetch(ctx context.Context, gen uint64, coord models.Coordinates) {
	var (
		wg          sync.WaitGroup
		current     models.CurrentConditions
		currentErr  error
		samples     []models.ForecastSample
		forecastErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		current, currentErr = c.api.Current(ctx, coord)
	}()
	go func() {
		defer wg.Done()
		samples, forecastErr = c.api.Forecast(ctx, coord)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		observability.WeatherFetchSupersededTotal.Inc()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		observability.WeatherFetchSupersededTotal.Inc()
		c.logger.Debug("discarding superseded fetch", zap.Uint64("generation", gen))
		return
	}

	switch {
	case currentErr != nil:
		c.current = nil
		c.daily = nil
		c.errMsg = weather.UserMessage(currentErr)
		c.logger.Warn("weather fetch failed",
			zap.String("coord", coord.Key()),
			zap.Error(currentErr))
	case forecastErr != nil:
		// Current conditions still render; only the forecast strip is lost.
		c.current = &current
		c.daily = nil
		c.errMsg = weather.UserMessage(forecastErr)
		c.logger.Warn("forecast fetch failed",
			zap.String("coord", coord.Key()),
			zap.Error(forecastErr))
	default:
		c.current = &current
		c.daily = forecast.Aggregate(samples, time.Now(), time.Local)
		c.errMsg = ""
	}
	c.renderLocked()
}

// Snapshot fetches conditions and the forecast for coord synchronously and
// renders them in the current display unit. The held view is not touched.
func (c *Controller) Snapshot(ctx context.Context, coord models.Coordinates) (WeatherView, error) {
	var (
		wg          sync.WaitGroup
		current     models.CurrentConditions
		currentErr  error
		samples     []models.ForecastSample
		forecastErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		current, currentErr = c.api.Current(ctx, coord)
	}()
	go func() {
		defer wg.Done()
		samples, forecastErr = c.api.Forecast(ctx, coord)
	}()
	wg.Wait()

	if currentErr != nil {
		return WeatherView{}, currentErr
	}
	if forecastErr != nil {
		return WeatherView{}, forecastErr
	}
	daily := forecast.Aggregate(samples, time.Now(), time.Local)
	return renderView(&current, daily, "", c.unit()), nil
}

func (c *Controller) unit() models.TemperatureUnit {
	if c.settings != nil {
		return c.settings.Unit()
	}
	return models.UnitMetric
}

// renderLocked rebuilds the view from the held metric snapshot in the current
// display unit. Callers hold c.mu.
func (c *Controller) renderLocked() {
	c.view = renderView(c.current, c.daily, c.errMsg, c.unit())
}

// renderView converts a metric snapshot into a display-unit view.
func renderView(current *models.CurrentConditions, daily []models.DailySummary, errMsg string, unit models.TemperatureUnit) WeatherView {
	view := WeatherView{
		Unit:         unit,
		ErrorMessage: errMsg,
		UpdatedAt:    time.Now(),
	}
	if current != nil {
		cc := *current
		cc.Temperature = convertTemp(cc.Temperature, unit)
		cc.High = convertTemp(cc.High, unit)
		cc.Low = convertTemp(cc.Low, unit)
		view.Current = &cc
	}
	if len(daily) > 0 {
		view.Forecast = make([]models.DailySummary, len(daily))
		for i, d := range daily {
			d.High = convertTemp(d.High, unit)
			d.Low = convertTemp(d.Low, unit)
			view.Forecast[i] = d
		}
	}
	return view
}

// convertTemp converts a Celsius reading to the display unit.
func convertTemp(celsius float64, unit models.TemperatureUnit) float64 {
	if unit == models.UnitImperial {
		return celsius*9/5 + 32
	}
	return celsius
}
