package overview

import (
	"context"
	"time"
)

const moversWindow = 24 * time.Hour

// Service coordinates dashboard query execution with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Summary returns the cached headline figures.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, keySummary())
	if err != nil {
		return Summary{}, err
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.Summary(ctx)
	})
	return out, err
}

// TopMovers returns the busiest products over the last 24 hours. A zero
// locationID spans every location.
func (s *Service) TopMovers(ctx context.Context, locationID int64, limit int) ([]Mover, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	key, err := s.cache.BuildKey(ctx, keyMovers(locationID, moversWindow))
	if err != nil {
		return nil, err
	}
	var out []Mover
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.repo.TopMovers(ctx, locationID, time.Now().Add(-moversWindow), limit)
	})
	return out, err
}

// Invalidate bumps the cache version after stock movements commit.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
