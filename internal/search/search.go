// Package search resolves free-text city queries to candidates enriched with
// live conditions, and maintains the bounded recent-search list.
package search

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
)

const (
	// geocodeLimit is how many hits we request from the provider.
	geocodeLimit = 5
	// enrichLimit is how many hits get a live-conditions lookup.
	enrichLimit = 3
)

// Geocoder resolves a query to raw location hits.
type Geocoder interface {
	Direct(ctx context.Context, query string, limit int) ([]GeoResult, error)
}

// ConditionsFetcher attaches live conditions to a candidate.
type ConditionsFetcher interface {
	Current(ctx context.Context, coord models.Coordinates) (models.CurrentConditions, error)
}

// Service is the city-search flow: geocode, then enrich the top hits.
type Service struct {
	geo     Geocoder
	fetcher ConditionsFetcher
	logger  *zap.Logger
}

// NewService creates a Service.
func NewService(geo Geocoder, fetcher ConditionsFetcher, logger *zap.Logger) *Service {
	return &Service{
		geo:     geo,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Search returns at most 3 enriched candidates in the geocoder's ranking
// order. An empty query short-circuits with no network call. A failed
// enrichment drops that candidate only; the search itself never aborts on a
// single candidate.
func (s *Service) Search(ctx context.Context, query string) ([]models.CityCandidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	observability.SearchesTotal.Inc()

	hits, err := s.geo.Direct(ctx, query, geocodeLimit)
	if err != nil {
		return nil, err
	}
	if len(hits) > enrichLimit {
		hits = hits[:enrichLimit]
	}

	results := make([]models.CityCandidate, 0, len(hits))
	for _, hit := range hits {
		coord := models.Coordinates{Lat: hit.Lat, Lon: hit.Lon}
		conditions, err := s.fetcher.Current(ctx, coord)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.SearchCandidatesDroppedTotal.Inc()
			s.logger.Debug("candidate enrichment failed",
				zap.String("city", hit.Name),
				zap.Error(err))
			continue
		}
		results = append(results, models.CityCandidate{
			ID:          coord.Key(),
			Name:        hit.Name,
			Country:     hit.Country,
			Lat:         hit.Lat,
			Lon:         hit.Lon,
			Temperature: conditions.Temperature,
			Condition:   conditions.Condition,
		})
	}
	return results, nil
}
