package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	raw, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func newTestGateway(t *testing.T, handler http.Handler) (*Gateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := New(server.URL, "anon-key", 5*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return gw, server
}

func TestGateway_SignIn(t *testing.T) {
	access := signedToken(t, time.Now().Add(time.Hour))

	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" {
			t.Errorf("path = %q, want /auth/v1/token", r.URL.Path)
		}
		if got := r.URL.Query().Get("grant_type"); got != "password" {
			t.Errorf("grant_type = %q, want password", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey header = %q, want anon-key", got)
		}

		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Fatalf("decode credentials: %v", err)
		}
		if creds.Email != "alice@example.com" {
			t.Errorf("email = %q", creds.Email)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  access,
			"refresh_token": "refresh-abc",
			"expires_in":    3600,
			"user": map[string]string{
				"id":    "user-123",
				"email": "alice@example.com",
			},
		})
	}))

	if err := gw.SignIn(context.Background(), "alice@example.com", "secret123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	session, err := gw.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession() error = %v", err)
	}
	if session == nil {
		t.Fatal("expected a session after sign in")
	}
	if session.UserID != "user-123" {
		t.Errorf("UserID = %q", session.UserID)
	}
	if session.Email != "alice@example.com" {
		t.Errorf("Email = %q", session.Email)
	}
	if session.RefreshToken != "refresh-abc" {
		t.Errorf("RefreshToken = %q", session.RefreshToken)
	}
	if session.ExpiresAt.Before(time.Now().Add(50 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want ~1h out from token exp claim", session.ExpiresAt)
	}
}

func TestGateway_SignIn_InvalidCredentials(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error_description": "Invalid login credentials",
		})
	}))

	err := gw.SignIn(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignIn() error = %v, want ErrInvalidCredentials", err)
	}

	session, err := gw.CurrentSession(context.Background())
	if err != nil || session != nil {
		t.Errorf("CurrentSession() = (%v, %v), want (nil, nil) after failed sign in", session, err)
	}
}

func TestGateway_SignUp_NoTokensIssued(t *testing.T) {
	// Providers requiring email confirmation respond without tokens.
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/signup" {
			t.Errorf("path = %q, want /auth/v1/signup", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"user": map[string]string{"id": "user-456", "email": "bob@example.com"},
		})
	}))

	if err := gw.SignUp(context.Background(), "bob@example.com", "secret123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	session, err := gw.CurrentSession(context.Background())
	if err != nil || session != nil {
		t.Errorf("CurrentSession() = (%v, %v), want (nil, nil) without issued tokens", session, err)
	}
}

func TestGateway_SignUp_EmailInUse(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"msg": "Email already registered",
		})
	}))

	err := gw.SignUp(context.Background(), "bob@example.com", "secret123")
	if !errors.Is(err, ErrEmailAlreadyInUse) {
		t.Fatalf("SignUp() error = %v, want ErrEmailAlreadyInUse", err)
	}
}

func TestGateway_SignOut(t *testing.T) {
	access := signedToken(t, time.Now().Add(time.Hour))
	var sawBearer string

	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  access,
				"refresh_token": "refresh-abc",
				"expires_in":    3600,
				"user":          map[string]string{"id": "user-123", "email": "alice@example.com"},
			})
		case "/auth/v1/logout":
			sawBearer = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		}
	}))

	if err := gw.SignIn(context.Background(), "alice@example.com", "secret123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := gw.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if sawBearer != "Bearer "+access {
		t.Errorf("logout Authorization = %q, want bearer access token", sawBearer)
	}

	session, err := gw.CurrentSession(context.Background())
	if err != nil || session != nil {
		t.Errorf("CurrentSession() = (%v, %v), want (nil, nil) after sign out", session, err)
	}
}

func TestGateway_CurrentSession_Expired(t *testing.T) {
	access := signedToken(t, time.Now().Add(-time.Minute))

	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  access,
			"refresh_token": "refresh-abc",
			"user":          map[string]string{"id": "user-123", "email": "alice@example.com"},
		})
	}))

	if err := gw.SignIn(context.Background(), "alice@example.com", "secret123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	session, err := gw.CurrentSession(context.Background())
	if err != nil {
		t.Fatalf("CurrentSession() error = %v, expiry must not surface as error", err)
	}
	if session != nil {
		t.Error("expected nil session for expired token")
	}
}

func TestGateway_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connections now refused

	gw, err := New(server.URL, "anon-key", time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := gw.SignIn(context.Background(), "alice@example.com", "secret123"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("SignIn() error = %v, want ErrNetwork", err)
	}
}

func TestGateway_TokenExpiryFallback(t *testing.T) {
	// Opaque (non-JWT) access tokens fall back to expires_in.
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "opaque-token",
			"refresh_token": "refresh-abc",
			"expires_in":    7200,
			"user":          map[string]string{"id": "user-123", "email": "alice@example.com"},
		})
	}))

	if err := gw.SignIn(context.Background(), "alice@example.com", "secret123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	session, _ := gw.CurrentSession(context.Background())
	if session == nil {
		t.Fatal("expected a session")
	}
	if session.ExpiresAt.Before(time.Now().Add(90 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want ~2h out from expires_in", session.ExpiresAt)
	}
}
