package search

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/observability"
	"github.com/glasscast/glasscast/internal/weather"
)

// Searcher is the flow driven by the debouncer.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.CityCandidate, error)
}

// Debouncer serializes search-as-you-type: each SetQuery cancels any in-flight
// task, waits out the quiet period, then runs the search. Only the most recent
// task may publish into Results; superseded tasks no-op.
type Debouncer struct {
	svc    Searcher
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	gen     uint64
	results []models.CityCandidate
	errMsg  string
}

// NewDebouncer creates a Debouncer with the given quiet period.
func NewDebouncer(svc Searcher, delay time.Duration, logger *zap.Logger) *Debouncer {
	return &Debouncer{
		svc:    svc,
		delay:  delay,
		logger: logger,
	}
}

// SetQuery registers a keystroke. An empty query cancels any in-flight task
// and clears results immediately, with no network call.
func (d *Debouncer) SetQuery(ctx context.Context, query string) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
		observability.SearchDebounceCancelledTotal.Inc()
	}
	d.gen++
	gen := d.gen

	if query == "" {
		d.results = nil
		d.errMsg = ""
		d.mu.Unlock()
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	go d.run(taskCtx, gen, query)
}

// run waits out the quiet period, executes the search, and publishes the
// outcome if this task is still the latest.
func (d *Debouncer) run(ctx context.Context, gen uint64, query string) {
	timer := time.NewTimer(d.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	results, err := d.svc.Search(ctx, query)
	if ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		// A newer keystroke won the race between cancellation and publish.
		return
	}
	if err != nil {
		d.logger.Debug("debounced search failed", zap.String("query", query), zap.Error(err))
		d.results = nil
		d.errMsg = weather.UserMessage(err)
		return
	}
	d.results = results
	d.errMsg = ""
}

// Results returns the last published result set and user-facing error, if any.
func (d *Debouncer) Results() ([]models.CityCandidate, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.results, d.errMsg
}
