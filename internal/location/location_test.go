package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/models"
)

func TestResolver_SourceSucceeds(t *testing.T) {
	source := SourceFunc(func(ctx context.Context) (models.Coordinates, error) {
		return models.Coordinates{Lat: 48.8566, Lon: 2.3522}, nil
	})
	r := NewResolver(source, time.Second, zap.NewNop())

	got := r.Resolve(context.Background())
	if got.Lat != 48.8566 || got.Lon != 2.3522 {
		t.Errorf("Resolve() = %+v, want Paris", got)
	}
}

func TestResolver_SourceFails(t *testing.T) {
	source := SourceFunc(func(ctx context.Context) (models.Coordinates, error) {
		return models.Coordinates{}, errors.New("permission denied")
	})
	r := NewResolver(source, time.Second, zap.NewNop())

	got := r.Resolve(context.Background())
	if got != DefaultCoordinates {
		t.Errorf("Resolve() = %+v, want fallback %+v", got, DefaultCoordinates)
	}
}

func TestResolver_SourceTimesOut(t *testing.T) {
	source := SourceFunc(func(ctx context.Context) (models.Coordinates, error) {
		<-ctx.Done()
		return models.Coordinates{}, ctx.Err()
	})
	r := NewResolver(source, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	got := r.Resolve(context.Background())
	if got != DefaultCoordinates {
		t.Errorf("Resolve() = %+v, want fallback", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Resolve() took %v, want bounded by timeout", elapsed)
	}
}

func TestResolver_NilSource(t *testing.T) {
	r := NewResolver(nil, time.Second, zap.NewNop())

	if got := r.Resolve(context.Background()); got != DefaultCoordinates {
		t.Errorf("Resolve() = %+v, want fallback", got)
	}
}
