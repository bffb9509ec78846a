package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/bus"
	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/store"
	"github.com/glasscast/glasscast/internal/weather"
)

// blockingAPI serves canned responses, optionally holding a call open until
// released.
type blockingAPI struct {
	mu        sync.Mutex
	current   map[string]models.CurrentConditions
	samples   []models.ForecastSample
	err       error
	blockKey  string
	releaseCh chan struct{}
}

func (a *blockingAPI) Current(ctx context.Context, coord models.Coordinates) (models.CurrentConditions, error) {
	a.mu.Lock()
	blocked := a.blockKey != "" && a.blockKey == coord.Key()
	release := a.releaseCh
	err := a.err
	cc := a.current[coord.Key()]
	a.mu.Unlock()

	if blocked {
		select {
		case <-release:
		case <-ctx.Done():
			return models.CurrentConditions{}, ctx.Err()
		}
	}
	if err != nil {
		return models.CurrentConditions{}, err
	}
	return cc, nil
}

func (a *blockingAPI) Forecast(ctx context.Context, coord models.Coordinates) ([]models.ForecastSample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.samples, nil
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func waitForView(t *testing.T, c *Controller, ok func(WeatherView) bool) WeatherView {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v := c.View(); ok(v) {
			return v
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("view never reached expected shape: %+v", c.View())
	return WeatherView{}
}

func futureSamples() []models.ForecastSample {
	now := time.Now().In(time.Local)
	noon := time.Date(now.Year(), now.Month(), now.Day()+1, 12, 0, 0, 0, time.Local)
	return []models.ForecastSample{
		{Time: noon, High: 20, Low: 11, Condition: "Clouds"},
		{Time: noon.Add(time.Hour), High: 22, Low: 10, Condition: "Rain"},
	}
}

func newTestController(api weather.API) (*Controller, *Settings, *bus.Bus) {
	events := bus.New()
	settings := NewSettings(context.Background(), newMemKV(), events, zap.NewNop())
	return NewController(api, events, settings, zap.NewNop()), settings, events
}

func TestController_Refresh(t *testing.T) {
	coord := models.Coordinates{Lat: 51.5074, Lon: -0.1278}
	api := &blockingAPI{
		current: map[string]models.CurrentConditions{
			coord.Key(): {Temperature: 18, High: 21, Low: 12, Condition: "Clouds", Icon: "cloud.fill", Location: "London"},
		},
		samples: futureSamples(),
	}
	c, _, _ := newTestController(api)

	c.Refresh(coord)
	view := waitForView(t, c, func(v WeatherView) bool { return v.Current != nil })

	if view.Current.Location != "London" {
		t.Errorf("Location = %q, want London", view.Current.Location)
	}
	if view.Unit != models.UnitMetric {
		t.Errorf("Unit = %q, want metric", view.Unit)
	}
	if len(view.Forecast) != 1 {
		t.Fatalf("forecast days = %d, want 1", len(view.Forecast))
	}
	if view.Forecast[0].High != 22 || view.Forecast[0].Low != 10 {
		t.Errorf("day = %+v, want high 22 low 10", view.Forecast[0])
	}
	if view.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want empty", view.ErrorMessage)
	}
}

func TestController_SupersededFetchNeverOverwrites(t *testing.T) {
	first := models.Coordinates{Lat: 51.5074, Lon: -0.1278}
	second := models.Coordinates{Lat: 48.8566, Lon: 2.3522}
	release := make(chan struct{})
	api := &blockingAPI{
		current: map[string]models.CurrentConditions{
			first.Key():  {Location: "London", Condition: "Clouds"},
			second.Key(): {Location: "Paris", Condition: "Clear"},
		},
		samples:   futureSamples(),
		blockKey:  first.Key(),
		releaseCh: release,
	}
	c, _, _ := newTestController(api)

	c.Refresh(first)
	c.Refresh(second)

	view := waitForView(t, c, func(v WeatherView) bool { return v.Current != nil })
	if view.Current.Location != "Paris" {
		t.Fatalf("Location = %q, want Paris", view.Current.Location)
	}

	close(release)
	time.Sleep(20 * time.Millisecond)
	if got := c.View().Current.Location; got != "Paris" {
		t.Errorf("Location = %q after stale fetch landed, want Paris", got)
	}
}

func TestController_FetchErrorSetsMessage(t *testing.T) {
	api := &blockingAPI{err: weather.ErrServer}
	c, _, _ := newTestController(api)

	c.Refresh(models.Coordinates{Lat: 1, Lon: 2})
	view := waitForView(t, c, func(v WeatherView) bool { return v.ErrorMessage != "" })

	if view.ErrorMessage != "Server error. Please try again later." {
		t.Errorf("ErrorMessage = %q", view.ErrorMessage)
	}
	if view.Current != nil {
		t.Error("expected no conditions alongside the error")
	}
}

func TestController_UnitConversion(t *testing.T) {
	coord := models.Coordinates{Lat: 51.5074, Lon: -0.1278}
	api := &blockingAPI{
		current: map[string]models.CurrentConditions{
			coord.Key(): {Temperature: 20, High: 25, Low: 10, Location: "London"},
		},
	}
	events := bus.New()
	kv := newMemKV()
	kv.Set(context.Background(), store.KeyTemperatureUnit, []byte(models.UnitImperial))
	settings := NewSettings(context.Background(), kv, events, zap.NewNop())
	c := NewController(api, events, settings, zap.NewNop())

	c.Refresh(coord)
	view := waitForView(t, c, func(v WeatherView) bool { return v.Current != nil })

	if view.Unit != models.UnitImperial {
		t.Errorf("Unit = %q, want imperial", view.Unit)
	}
	if view.Current.Temperature != 68 {
		t.Errorf("Temperature = %v, want 68", view.Current.Temperature)
	}
	if view.Current.High != 77 || view.Current.Low != 50 {
		t.Errorf("High/Low = %v/%v, want 77/50", view.Current.High, view.Current.Low)
	}
}

func TestController_RunReactsToEvents(t *testing.T) {
	coord := models.Coordinates{Lat: 48.8566, Lon: 2.3522}
	api := &blockingAPI{
		current: map[string]models.CurrentConditions{
			coord.Key(): {Temperature: 20, Location: "Paris"},
		},
	}
	c, settings, events := newTestController(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	events.Publish(bus.Event{Type: bus.CitySelected, City: &models.CityCandidate{
		ID: coord.Key(), Name: "Paris", Country: "FR", Lat: coord.Lat, Lon: coord.Lon,
	}})
	waitForView(t, c, func(v WeatherView) bool {
		return v.Current != nil && v.Current.Location == "Paris"
	})

	if err := settings.SetUnit(context.Background(), models.UnitImperial); err != nil {
		t.Fatalf("SetUnit() error = %v", err)
	}
	view := waitForView(t, c, func(v WeatherView) bool { return v.Unit == models.UnitImperial })
	if view.Current.Temperature != 68 {
		t.Errorf("Temperature = %v after unit change, want 68", view.Current.Temperature)
	}
}

func TestSettings_Defaults(t *testing.T) {
	s := NewSettings(context.Background(), newMemKV(), bus.New(), zap.NewNop())
	if s.Unit() != models.UnitMetric {
		t.Errorf("Unit() = %q, want metric", s.Unit())
	}
}

func TestSettings_PersistsAndBroadcasts(t *testing.T) {
	events := bus.New()
	kv := newMemKV()
	s := NewSettings(context.Background(), kv, events, zap.NewNop())

	ch, cancel := events.Subscribe(bus.UnitChanged)
	defer cancel()

	if err := s.SetUnit(context.Background(), models.UnitImperial); err != nil {
		t.Fatalf("SetUnit() error = %v", err)
	}

	select {
	case e := <-ch:
		if e.Unit != models.UnitImperial {
			t.Errorf("event unit = %q, want imperial", e.Unit)
		}
	case <-time.After(time.Second):
		t.Fatal("no unit change event published")
	}

	reloaded := NewSettings(context.Background(), kv, events, zap.NewNop())
	if reloaded.Unit() != models.UnitImperial {
		t.Errorf("reloaded Unit() = %q, want imperial", reloaded.Unit())
	}
}

func TestSettings_NoOpChangeNotBroadcast(t *testing.T) {
	events := bus.New()
	s := NewSettings(context.Background(), newMemKV(), events, zap.NewNop())

	ch, cancel := events.Subscribe(bus.UnitChanged)
	defer cancel()

	if err := s.SetUnit(context.Background(), models.UnitMetric); err != nil {
		t.Fatalf("SetUnit() error = %v", err)
	}

	select {
	case <-ch:
		t.Fatal("unexpected event for no-op change")
	case <-time.After(50 * time.Millisecond):
	}
}
