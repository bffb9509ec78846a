package models

import (
	"fmt"
	"time"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Key returns the fixed-precision cache/identity key for the pair.
// Four decimal places (~11m) so repeated lookups for the same place
// collapse to one key regardless of float noise.
func (c Coordinates) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// CurrentConditions is a point-in-time weather reading. Instances are
// immutable; a fresh fetch supersedes the previous one.
type CurrentConditions struct {
	Temperature float64   `json:"temperature"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Condition   string    `json:"condition"`
	Icon        string    `json:"icon"`
	Location    string    `json:"location"`
	FetchedAt   time.Time `json:"fetchedAt"`
}

// ForecastSample is one raw 3-hour forecast slot from the provider.
type ForecastSample struct {
	Time      time.Time `json:"time"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Condition string    `json:"condition"`
}

// DailySummary is one aggregated forecast day.
type DailySummary struct {
	Day  string  `json:"day"`
	High float64 `json:"high"`
	Low  float64 `json:"low"`
	Icon string  `json:"icon"`
}

// CityCandidate is a geocoding hit enriched with live conditions.
// ID is derived from the coordinate pair so repeated searches for the
// same city collapse to one identity.
type CityCandidate struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
}

// Coord returns the candidate's coordinate pair.
func (c CityCandidate) Coord() Coordinates {
	return Coordinates{Lat: c.Lat, Lon: c.Lon}
}

// DisplayName returns "Name, Country" for presentation.
func (c CityCandidate) DisplayName() string {
	return c.Name + ", " + c.Country
}
