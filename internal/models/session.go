package models

import "time"

// TemperatureUnit is the display-unit preference persisted in local state.
// Raw values match the weather provider's units parameter.
type TemperatureUnit string

const (
	UnitMetric   TemperatureUnit = "metric"
	UnitImperial TemperatureUnit = "imperial"
)

// ParseTemperatureUnit returns the unit for a raw string, defaulting to
// metric for anything unrecognized.
func ParseTemperatureUnit(s string) TemperatureUnit {
	if TemperatureUnit(s) == UnitImperial {
		return UnitImperial
	}
	return UnitMetric
}

// Symbol returns the degree symbol for the unit.
func (u TemperatureUnit) Symbol() string {
	if u == UnitImperial {
		return "°F"
	}
	return "°C"
}

// DisplayName returns the human-readable unit name.
func (u TemperatureUnit) DisplayName() string {
	if u == UnitImperial {
		return "Fahrenheit"
	}
	return "Celsius"
}

// Session is the auth provider's proof of authentication as held locally.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Expired reports whether the session's access token has passed its expiry.
// A zero ExpiresAt means expiry is unknown and the session is treated as live.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
