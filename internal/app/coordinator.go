// Package app ties the domain services together: the auth-driven state
// machine, the display settings, and the weather view controller.
package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/bus"
	"github.com/glasscast/glasscast/internal/models"
)

// State is the top-level application state.
type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// SessionProvider yields the current session, or (nil, nil) when there is
// none. Implementations never surface lookup failures as errors.
type SessionProvider interface {
	CurrentSession(ctx context.Context) (*models.Session, error)
}

// RecentClearer wipes per-user local state on logout.
type RecentClearer interface {
	Clear(ctx context.Context) error
}

// CoordinatorConfig carries the timing knobs of the state machine.
type CoordinatorConfig struct {
	// SettleDelay is waited before any session check so the auth client has
	// finished persisting tokens.
	SettleDelay time.Duration
	// RetryDelay is waited before the single recheck after a login signal
	// whose first check found no session.
	RetryDelay time.Duration
}

// Coordinator owns the Loading/Authenticated/Unauthenticated state machine.
// It starts in Loading and moves exactly once per signal; logout is the only
// transition that takes effect immediately.
type Coordinator struct {
	sessions SessionProvider
	recent   RecentClearer
	events   *bus.Bus
	logger   *zap.Logger
	cfg      CoordinatorConfig

	mu      sync.RWMutex
	state   State
	session *models.Session
}

func NewCoordinator(sessions SessionProvider, recent RecentClearer, events *bus.Bus, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 300 * time.Millisecond
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Coordinator{
		sessions: sessions,
		recent:   recent,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		state:    StateLoading,
	}
}

// State returns the current state and session snapshot.
func (c *Coordinator) State() (State, *models.Session) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.session
}

// Run performs the startup session check and then reacts to login and logout
// signals until ctx is cancelled. Call it once, on its own goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	events, cancel := c.events.Subscribe(bus.LoginCompleted, bus.LogoutCompleted)
	defer cancel()

	c.checkSession(ctx, false)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case bus.LoginCompleted:
				c.checkSession(ctx, true)
			case bus.LogoutCompleted:
				c.handleLogout(ctx)
			}
		}
	}
}

// checkSession settles, looks up the session, and transitions. After a login
// signal an absent session is rechecked once before giving up: the auth
// client may still be finishing its local writes.
func (c *Coordinator) checkSession(ctx context.Context, retryOnAbsent bool) {
	if !sleep(ctx, c.cfg.SettleDelay) {
		return
	}

	session, _ := c.sessions.CurrentSession(ctx)
	if session == nil && retryOnAbsent {
		c.logger.Debug("no session after login signal, rechecking",
			zap.Duration("delay", c.cfg.RetryDelay))
		if !sleep(ctx, c.cfg.RetryDelay) {
			return
		}
		session, _ = c.sessions.CurrentSession(ctx)
	}

	if session != nil {
		c.transition(StateAuthenticated, session)
	} else {
		c.transition(StateUnauthenticated, nil)
	}
}

func (c *Coordinator) handleLogout(ctx context.Context) {
	c.transition(StateUnauthenticated, nil)
	if c.recent != nil {
		if err := c.recent.Clear(ctx); err != nil {
			c.logger.Warn("failed to clear recent searches on logout", zap.Error(err))
		}
	}
}

func (c *Coordinator) transition(state State, session *models.Session) {
	c.mu.Lock()
	prev := c.state
	c.state = state
	c.session = session
	c.mu.Unlock()

	if prev != state {
		c.logger.Info("state transition",
			zap.String("from", string(prev)),
			zap.String("to", string(state)))
	}
}

// sleep waits for d or ctx, reporting whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
