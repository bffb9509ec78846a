// Package auth wraps the hosted auth provider (GoTrue-style REST API) behind
// a narrow gateway with a normalized error taxonomy.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
)

// Gateway exposes the five operations the app consumes. The provider's client
// holds the session locally; a fresh process starts signed out.
type Gateway struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *zap.Logger

	mu      sync.RWMutex
	session *models.Session
}

// New creates a Gateway. baseURL is the project root
// (e.g. https://xyzcompany.supabase.co); anonKey is the publishable API key.
func New(baseURL, anonKey string, timeout time.Duration, logger *zap.Logger) (*Gateway, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("auth: base URL is required")
	}
	if anonKey == "" {
		return nil, fmt.Errorf("auth: anon key is required")
	}
	return &Gateway{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type providerError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
}

func (e providerError) text() string {
	switch {
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Msg != "":
		return e.Msg
	case e.Message != "":
		return e.Message
	default:
		return "unknown error"
	}
}

// SignIn authenticates with email and password and stores the session.
func (g *Gateway) SignIn(ctx context.Context, email, password string) error {
	g.logger.Debug("sign in", zap.String("email", email))

	var resp tokenResponse
	err := g.post(ctx, "/auth/v1/token?grant_type=password", credentials{Email: email, Password: password}, "", &resp)
	if err != nil {
		observability.AuthOperationsTotal.WithLabelValues("sign_in", "error").Inc()
		return err
	}
	g.storeSession(resp)
	observability.AuthOperationsTotal.WithLabelValues("sign_in", "success").Inc()
	g.logger.Info("sign in successful", zap.String("user_id", resp.User.ID))
	return nil
}

// SignUp registers a new account. Providers configured for email confirmation
// return no tokens; the session is stored only when one was issued.
func (g *Gateway) SignUp(ctx context.Context, email, password string) error {
	g.logger.Debug("sign up", zap.String("email", email))

	var resp tokenResponse
	err := g.post(ctx, "/auth/v1/signup", credentials{Email: email, Password: password}, "", &resp)
	if err != nil {
		observability.AuthOperationsTotal.WithLabelValues("sign_up", "error").Inc()
		return err
	}
	if resp.AccessToken != "" {
		g.storeSession(resp)
	}
	observability.AuthOperationsTotal.WithLabelValues("sign_up", "success").Inc()
	g.logger.Info("sign up successful", zap.String("user_id", resp.User.ID))
	return nil
}

// SignOut revokes the session with the provider and clears it locally.
func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.RLock()
	token := ""
	if g.session != nil {
		token = g.session.AccessToken
	}
	g.mu.RUnlock()

	if err := g.post(ctx, "/auth/v1/logout", struct{}{}, token, nil); err != nil {
		observability.AuthOperationsTotal.WithLabelValues("sign_out", "error").Inc()
		return err
	}

	g.mu.Lock()
	g.session = nil
	g.mu.Unlock()
	observability.AuthOperationsTotal.WithLabelValues("sign_out", "success").Inc()
	g.logger.Info("sign out successful")
	return nil
}

// ResetPassword asks the provider to send a recovery email.
func (g *Gateway) ResetPassword(ctx context.Context, email string) error {
	if err := g.post(ctx, "/auth/v1/recover", map[string]string{"email": email}, "", nil); err != nil {
		observability.AuthOperationsTotal.WithLabelValues("reset_password", "error").Inc()
		return err
	}
	observability.AuthOperationsTotal.WithLabelValues("reset_password", "success").Inc()
	g.logger.Info("password reset email sent", zap.String("email", email))
	return nil
}

// CurrentSession returns the held session, or (nil, nil) when signed out.
// Policy: any failure to establish a session — absent, expired, provider
// unreachable — resolves to "no session" and never propagates an error.
func (g *Gateway) CurrentSession(ctx context.Context) (*models.Session, error) {
	g.mu.RLock()
	session := g.session
	g.mu.RUnlock()

	if session == nil {
		observability.SessionChecksTotal.WithLabelValues("absent").Inc()
		return nil, nil
	}
	if session.Expired(time.Now()) {
		g.logger.Debug("stored session expired")
		g.mu.Lock()
		g.session = nil
		g.mu.Unlock()
		observability.SessionChecksTotal.WithLabelValues("absent").Inc()
		return nil, nil
	}

	observability.SessionChecksTotal.WithLabelValues("present").Inc()
	return session, nil
}

func (g *Gateway) storeSession(resp tokenResponse) {
	expiresAt, ok := tokenExpiry(resp.AccessToken)
	if !ok && resp.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	g.mu.Lock()
	g.session = &models.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		ExpiresAt:    expiresAt,
	}
	g.mu.Unlock()
}

// post issues a provider POST and decodes the response into out (when non-nil).
// Provider errors are normalized into the taxonomy.
func (g *Gateway) post(ctx context.Context, path string, payload interface{}, bearer string, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.anonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var pe providerError
		_ = json.Unmarshal(body, &pe)
		normalized := Normalize(pe.text())
		g.logger.Debug("provider error",
			zap.Int("status", resp.StatusCode),
			zap.String("detail", pe.text()),
			zap.Error(normalized))
		return normalized
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
