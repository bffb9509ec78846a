package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/bus"
	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/store"
)

// Settings holds the display-unit preference, persisted across restarts and
// broadcast on change so live views re-render.
type Settings struct {
	kv     store.KV
	events *bus.Bus
	logger *zap.Logger

	mu   sync.RWMutex
	unit models.TemperatureUnit
}

// NewSettings loads the persisted preference; absent or unreadable state
// defaults to metric.
func NewSettings(ctx context.Context, kv store.KV, events *bus.Bus, logger *zap.Logger) *Settings {
	unit := models.UnitMetric
	raw, ok, err := kv.Get(ctx, store.KeyTemperatureUnit)
	if err != nil {
		logger.Warn("failed to load unit preference, defaulting to metric", zap.Error(err))
	} else if ok {
		unit = models.ParseTemperatureUnit(string(raw))
	}
	return &Settings{kv: kv, events: events, logger: logger, unit: unit}
}

// Unit returns the current preference.
func (s *Settings) Unit() models.TemperatureUnit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unit
}

// SetUnit persists and broadcasts the new preference. A no-op change is not
// broadcast.
func (s *Settings) SetUnit(ctx context.Context, unit models.TemperatureUnit) error {
	s.mu.Lock()
	if unit == s.unit {
		s.mu.Unlock()
		return nil
	}
	s.unit = unit
	s.mu.Unlock()

	if err := s.kv.Set(ctx, store.KeyTemperatureUnit, []byte(unit)); err != nil {
		s.logger.Warn("failed to persist unit preference", zap.Error(err))
		return err
	}
	s.logger.Info("unit preference changed", zap.String("unit", string(unit)))
	s.events.Publish(bus.Event{Type: bus.UnitChanged, Unit: unit})
	return nil
}
