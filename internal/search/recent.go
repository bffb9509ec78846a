package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/glasscast/glasscast/internal/models"
	"github.com/glasscast/glasscast/internal/store"
)

// maxRecent bounds the recent-search list.
const maxRecent = 10

// RecentList is the persisted, bounded, most-recent-first list of selected
// cities, de-duplicated by candidate identity.
type RecentList struct {
	kv     store.KV
	logger *zap.Logger

	mu    sync.Mutex
	items []models.CityCandidate
}

// NewRecentList creates a RecentList and loads any persisted entries.
// A corrupt or unreadable persisted list starts empty rather than failing.
func NewRecentList(ctx context.Context, kv store.KV, logger *zap.Logger) *RecentList {
	r := &RecentList{kv: kv, logger: logger}

	raw, ok, err := kv.Get(ctx, store.KeyRecentSearches)
	if err != nil {
		logger.Warn("load recent searches failed", zap.Error(err))
		return r
	}
	if !ok {
		return r
	}
	if err := json.Unmarshal(raw, &r.items); err != nil {
		logger.Warn("recent searches corrupt, starting empty", zap.Error(err))
		r.items = nil
	}
	return r
}

// Add inserts city at the front, removing any entry with the same identity
// and evicting the oldest entry past the cap. The list is persisted after
// every mutation.
func (r *RecentList) Add(ctx context.Context, city models.CityCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	filtered := make([]models.CityCandidate, 0, len(r.items)+1)
	filtered = append(filtered, city)
	for _, existing := range r.items {
		if existing.ID == city.ID {
			continue
		}
		filtered = append(filtered, existing)
	}
	if len(filtered) > maxRecent {
		filtered = filtered[:maxRecent]
	}
	r.items = filtered

	return r.persistLocked(ctx)
}

// Items returns a copy of the list, most recent first.
func (r *RecentList) Items() []models.CityCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.CityCandidate, len(r.items))
	copy(out, r.items)
	return out
}

// Clear empties the list and removes the persisted value. Called on logout
// and from the explicit clear action.
func (r *RecentList) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	if err := r.kv.Delete(ctx, store.KeyRecentSearches); err != nil {
		return fmt.Errorf("clear recent searches: %w", err)
	}
	return nil
}

func (r *RecentList) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(r.items)
	if err != nil {
		return fmt.Errorf("encode recent searches: %w", err)
	}
	if err := r.kv.Set(ctx, store.KeyRecentSearches, raw); err != nil {
		return fmt.Errorf("persist recent searches: %w", err)
	}
	return nil
}
