// Package httpapi exposes the application over HTTP: weather views, city
// search with a debounced typeahead session, recent selections, auth, and
// settings. Responses use a JSON envelope with a correlation ID on errors.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/glasscast/glasscast/internal/app"
	"github.com/glasscast/glasscast/internal/auth"
	"github.com/glasscast/glasscast/internal/bus"
	"github.com/glasscast/glasscast/internal/lifecycle"
	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
	"github.com/glasscast/glasscast/internal/validation"
	"github.com/glasscast/glasscast/internal/weather"
)

const maxQueryLength = 100

// WeatherViews serves weather snapshots. app.Controller satisfies it.
type WeatherViews interface {
	View() app.WeatherView
	Snapshot(ctx context.Context, coord models.Coordinates) (app.WeatherView, error)
}

// CacheClearer drops cached conditions. weather.Client satisfies it.
type CacheClearer interface {
	ClearCache(ctx context.Context) error
}

// Searcher runs a synchronous city search. search.Service satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.CityCandidate, error)
}

// Typeahead is the debounced search session. search.Debouncer satisfies it.
type Typeahead interface {
	SetQuery(ctx context.Context, query string)
	Results() ([]models.CityCandidate, string)
}

// Recents is the persisted selection history. search.RecentList satisfies it.
type Recents interface {
	Items() []models.CityCandidate
	Add(ctx context.Context, city models.CityCandidate) error
	Clear(ctx context.Context) error
}

// Authenticator is the auth provider surface. auth.Gateway satisfies it.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	CurrentSession(ctx context.Context) (*models.Session, error)
}

// StateReporter exposes the coordinator state. app.Coordinator satisfies it.
type StateReporter interface {
	State() (app.State, *models.Session)
}

// UnitSettings is the display-unit preference. app.Settings satisfies it.
type UnitSettings interface {
	Unit() models.TemperatureUnit
	SetUnit(ctx context.Context, unit models.TemperatureUnit) error
}

// HealthConfig holds the health handler's dependencies.
type HealthConfig struct {
	StartTime time.Time
	// CachePing, when set, is called to check cache reachability.
	CachePing func() error
	// StorePing, when set, is called to check local-state reachability.
	StorePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather      WeatherViews
	cacheClearer CacheClearer
	search       Searcher
	typeahead    Typeahead
	recents      Recents
	auth         Authenticator
	state        StateReporter
	settings     UnitSettings
	events       *bus.Bus
	healthConfig *HealthConfig
	logger       *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(
	weatherViews WeatherViews,
	cacheClearer CacheClearer,
	searcher Searcher,
	typeahead Typeahead,
	recents Recents,
	authenticator Authenticator,
	state StateReporter,
	settings UnitSettings,
	events *bus.Bus,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		weather:      weatherViews,
		cacheClearer: cacheClearer,
		search:       searcher,
		typeahead:    typeahead,
		recents:      recents,
		auth:         authenticator,
		state:        state,
		settings:     settings,
		events:       events,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// Router builds the full route table with the middleware chain applied.
func (h *Handler) Router(limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(h.logger))
	r.Use(MetricsMiddleware)

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(RateLimitMiddleware(limiter))
	api.Use(TimeoutMiddleware(requestTimeout))

	api.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/weather/cache", h.DeleteWeatherCache).Methods(http.MethodDelete)

	api.HandleFunc("/search", h.GetSearch).Methods(http.MethodGet)
	api.HandleFunc("/search/query", h.PutSearchQuery).Methods(http.MethodPut)
	api.HandleFunc("/search/results", h.GetSearchResults).Methods(http.MethodGet)
	api.HandleFunc("/search/recent", h.GetRecent).Methods(http.MethodGet)
	api.HandleFunc("/search/recent", h.PostRecent).Methods(http.MethodPost)
	api.HandleFunc("/search/recent", h.DeleteRecent).Methods(http.MethodDelete)

	api.HandleFunc("/auth/signin", h.PostSignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/signup", h.PostSignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", h.PostSignOut).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset", h.PostResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/session", h.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/state", h.GetState).Methods(http.MethodGet)

	api.HandleFunc("/settings/unit", h.GetUnit).Methods(http.MethodGet)
	api.HandleFunc("/settings/unit", h.PutUnit).Methods(http.MethodPut)

	return r
}

// GetWeather handles GET /v1/weather. With lat and lon query parameters it
// fetches a fresh snapshot for those coordinates; without them it returns the
// view for the currently selected city.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	latRaw := r.URL.Query().Get("lat")
	lonRaw := r.URL.Query().Get("lon")

	if latRaw == "" && lonRaw == "" {
		writeJSON(w, http.StatusOK, h.weather.View())
		return
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat must be a number in [-90, 90]")
		return
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil || lon < -180 || lon > 180 {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lon must be a number in [-180, 180]")
		return
	}

	view, err := h.weather.Snapshot(r.Context(), models.Coordinates{Lat: lat, Lon: lon})
	if err != nil {
		writeWeatherError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteWeatherCache handles DELETE /v1/weather/cache. Operator action only.
func (h *Handler) DeleteWeatherCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cacheClearer.ClearCache(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "CACHE_CLEAR_FAILED", "failed to clear cache")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// GetSearch handles GET /v1/search?q=. Synchronous search, no debounce.
func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	query, err := validation.ValidateQuery(r.URL.Query().Get("q"), maxQueryLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	candidates, err := h.search.Search(r.Context(), query)
	if err != nil {
		writeWeatherError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidates": emptyIfNil(candidates),
	})
}

// PutSearchQuery handles PUT /v1/search/query: one keystroke of the typeahead
// session. An empty query clears the session. The debounce task outlives the
// request, so it runs on a context detached from the request's cancellation.
func (h *Handler) PutSearchQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with a query field")
		return
	}

	h.typeahead.SetQuery(context.WithoutCancel(r.Context()), body.Query)
	w.WriteHeader(http.StatusAccepted)
}

// GetSearchResults handles GET /v1/search/results: the latest published
// typeahead outcome.
func (h *Handler) GetSearchResults(w http.ResponseWriter, r *http.Request) {
	results, errMsg := h.typeahead.Results()
	resp := map[string]interface{}{
		"candidates": emptyIfNil(results),
	}
	if errMsg != "" {
		resp["errorMessage"] = errMsg
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRecent handles GET /v1/search/recent.
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cities": emptyIfNil(h.recents.Items()),
	})
}

// PostRecent handles POST /v1/search/recent: the user picked a city. The
// selection is recorded and broadcast so the weather controller refreshes.
func (h *Handler) PostRecent(w http.ResponseWriter, r *http.Request) {
	var city models.CityCandidate
	if err := json.NewDecoder(r.Body).Decode(&city); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a city")
		return
	}
	if city.Name == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "city name is required")
		return
	}
	if city.ID == "" {
		city.ID = city.Coord().Key()
	}

	if err := h.recents.Add(r.Context(), city); err != nil {
		requestLogger(r, h.logger).Warn("failed to persist recent selection", zap.Error(err))
	}
	h.events.Publish(bus.Event{Type: bus.CitySelected, City: &city})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"selected": city,
	})
}

// DeleteRecent handles DELETE /v1/search/recent.
func (h *Handler) DeleteRecent(w http.ResponseWriter, r *http.Request) {
	if err := h.recents.Clear(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, "CLEAR_FAILED", "failed to clear recent searches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// decodeCredentials validates the sign-in/sign-up body. Password validation
// is skipped when requirePassword is false (reset flow).
func decodeCredentials(w http.ResponseWriter, r *http.Request, requirePassword bool) (credentialsBody, bool) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with email and password")
		return body, false
	}
	email, err := validation.ValidateEmail(body.Email)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_EMAIL", auth.UserMessage(auth.ErrInvalidCredentials))
		return body, false
	}
	body.Email = email
	if requirePassword {
		if err := validation.ValidatePassword(body.Password); err != nil {
			writeError(w, r, http.StatusBadRequest, "WEAK_PASSWORD", auth.UserMessage(auth.ErrWeakPassword))
			return body, false
		}
	}
	return body, true
}

// PostSignIn handles POST /v1/auth/signin. Success is broadcast so the
// coordinator rechecks the session.
func (h *Handler) PostSignIn(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r, true)
	if !ok {
		return
	}
	if err := h.auth.SignIn(r.Context(), body.Email, body.Password); err != nil {
		writeAuthError(w, r, err)
		return
	}
	h.events.Publish(bus.Event{Type: bus.LoginCompleted})
	writeJSON(w, http.StatusOK, map[string]bool{"signedIn": true})
}

// PostSignUp handles POST /v1/auth/signup.
func (h *Handler) PostSignUp(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r, true)
	if !ok {
		return
	}
	if err := h.auth.SignUp(r.Context(), body.Email, body.Password); err != nil {
		writeAuthError(w, r, err)
		return
	}
	h.events.Publish(bus.Event{Type: bus.LoginCompleted})
	writeJSON(w, http.StatusCreated, map[string]bool{"signedUp": true})
}

// PostSignOut handles POST /v1/auth/signout. The logout broadcast transitions
// the coordinator immediately and wipes per-user local state.
func (h *Handler) PostSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		writeAuthError(w, r, err)
		return
	}
	h.events.Publish(bus.Event{Type: bus.LogoutCompleted})
	writeJSON(w, http.StatusOK, map[string]bool{"signedOut": true})
}

// PostResetPassword handles POST /v1/auth/reset.
func (h *Handler) PostResetPassword(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeCredentials(w, r, false)
	if !ok {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), body.Email); err != nil {
		writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// GetSession handles GET /v1/session. Absence is a normal answer, not an
// error.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.auth.CurrentSession(r.Context())
	if err != nil || session == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"userId":        session.UserID,
		"email":         session.Email,
		"expiresAt":     session.ExpiresAt,
	})
}

// GetState handles GET /v1/state: the coordinator's current answer.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	state, session := h.state.State()
	resp := map[string]interface{}{
		"state": string(state),
	}
	if session != nil {
		resp["userId"] = session.UserID
		resp["email"] = session.Email
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUnit handles GET /v1/settings/unit.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unit := h.settings.Unit()
	writeJSON(w, http.StatusOK, map[string]string{
		"unit":   string(unit),
		"symbol": unit.Symbol(),
		"name":   unit.DisplayName(),
	})
}

// PutUnit handles PUT /v1/settings/unit.
func (h *Handler) PutUnit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Unit string `json:"unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with a unit field")
		return
	}
	if body.Unit != string(models.UnitMetric) && body.Unit != string(models.UnitImperial) {
		writeError(w, r, http.StatusBadRequest, "INVALID_UNIT", "unit must be metric or imperial")
		return
	}

	unit := models.ParseTemperatureUnit(body.Unit)
	if err := h.settings.SetUnit(r.Context(), unit); err != nil {
		writeError(w, r, http.StatusInternalServerError, "SETTINGS_WRITE_FAILED", "failed to persist unit preference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"unit": string(unit)})
}

// GetHealth handles GET /health. Reports shutting-down during drain and
// surfaces cache and store reachability as individual checks.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	if lifecycle.IsShuttingDown() {
		status = "shutting-down"
		statusCode = http.StatusServiceUnavailable
	}

	checks := make(map[string]string)
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		if h.healthConfig.StorePing() == nil {
			checks["store"] = "healthy"
		} else {
			checks["store"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    status,
		"service":   "glasscast",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with code, message, and the
// request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value(correlationIDKey); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeWeatherError maps upstream weather/geocoding failures to HTTP status
// codes with the user-facing message.
func writeWeatherError(w http.ResponseWriter, r *http.Request, err error) {
	requestLogger(r, nil).Debug("upstream error", zap.Error(err))

	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", weather.UserMessage(err))
	case errors.Is(err, weather.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "UPSTREAM_RATE_LIMITED", weather.UserMessage(err))
	case errors.Is(err, weather.ErrInvalidAPIKey):
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_AUTH_FAILED", weather.UserMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", weather.UserMessage(weather.ErrNetwork))
	default:
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", weather.UserMessage(err))
	}
}

// writeAuthError maps auth provider failures to HTTP status codes with the
// user-facing message.
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	msg := auth.UserMessage(err)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", msg)
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", msg)
	case errors.Is(err, auth.ErrEmailAlreadyInUse):
		writeError(w, r, http.StatusConflict, "EMAIL_IN_USE", msg)
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, r, http.StatusBadRequest, "WEAK_PASSWORD", msg)
	case errors.Is(err, auth.ErrSessionExpired):
		writeError(w, r, http.StatusUnauthorized, "SESSION_EXPIRED", msg)
	case errors.Is(err, auth.ErrNetwork):
		writeError(w, r, http.StatusBadGateway, "AUTH_UNAVAILABLE", msg)
	default:
		writeError(w, r, http.StatusInternalServerError, "AUTH_ERROR", msg)
	}
}

// requestLogger returns the request-scoped logger, falling back to the given
// logger, then to a no-op.
func requestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}

// emptyIfNil keeps list fields serializing as [] instead of null.
func emptyIfNil(cities []models.CityCandidate) []models.CityCandidate {
	if cities == nil {
		return []models.CityCandidate{}
	}
	return cities
}
