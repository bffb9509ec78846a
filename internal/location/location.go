// Package location resolves the coordinates to show on startup. Device
// positioning is modeled as a pluggable Source; when it cannot answer within
// the deadline the resolver falls back to a fixed default so the app always
// has something to display.
package location

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
)

// DefaultCoordinates is used when no position can be obtained in time.
var DefaultCoordinates = models.Coordinates{Lat: 51.5074, Lon: -0.1278} // London

// Source produces the device's current position. Implementations should honor
// ctx cancellation; a Source that blocks past the resolver deadline is simply
// abandoned.
type Source interface {
	Locate(ctx context.Context) (models.Coordinates, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (models.Coordinates, error)

func (f SourceFunc) Locate(ctx context.Context) (models.Coordinates, error) {
	return f(ctx)
}

// Resolver races a Source against a timeout and substitutes the fallback on
// any failure. Resolve never returns an error: the caller always gets usable
// coordinates.
type Resolver struct {
	source   Source
	timeout  time.Duration
	fallback models.Coordinates
	logger   *zap.Logger
}

func NewResolver(source Source, timeout time.Duration, logger *zap.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Resolver{
		source:   source,
		timeout:  timeout,
		fallback: DefaultCoordinates,
		logger:   logger,
	}
}

// Resolve returns the device position, or the fallback when the source is
// absent, errors, or misses the deadline.
func (r *Resolver) Resolve(ctx context.Context) models.Coordinates {
	if r.source == nil {
		observability.LocationFallbacksTotal.Inc()
		return r.fallback
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		coord models.Coordinates
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		coord, err := r.source.Locate(ctx)
		ch <- result{coord, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			r.logger.Warn("location source failed, using fallback", zap.Error(res.err))
			observability.LocationFallbacksTotal.Inc()
			return r.fallback
		}
		r.logger.Debug("location resolved",
			zap.Float64("lat", res.coord.Lat),
			zap.Float64("lon", res.coord.Lon))
		return res.coord
	case <-ctx.Done():
		r.logger.Warn("location source timed out, using fallback",
			zap.Duration("timeout", r.timeout))
		observability.LocationFallbacksTotal.Inc()
		return r.fallback
	}
}
