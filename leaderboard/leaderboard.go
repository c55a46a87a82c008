// Package leaderboard ranks authors by the karma they received over the last
// day.
package leaderboard

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nasermirzaei89/karma/feed"
)

const (
	Window = 24 * time.Hour
	Size   = 5
)

type Repository interface {
	// TopAuthors sums the likes received since the given time per author,
	// ordered by karma then username.
	TopAuthors(ctx context.Context, since time.Time, limit int) (entries []feed.LeaderboardEntry, err error)
}

type Service struct {
	repo  Repository
	cache *expirable.LRU[string, []feed.LeaderboardEntry]
	now   func() time.Time
}

const cacheKey = "top"

// NewService returns a leaderboard service. A positive ttl caches the board
// for that long; zero or less disables caching.
func NewService(repo Repository, ttl time.Duration) *Service {
	svc := &Service{
		repo: repo,
		now:  time.Now,
	}

	if ttl > 0 {
		svc.cache = expirable.NewLRU[string, []feed.LeaderboardEntry](1, nil, ttl)
	}

	return svc
}

func (svc *Service) Top(ctx context.Context) ([]feed.LeaderboardEntry, error) {
	if svc.cache != nil {
		if entries, ok := svc.cache.Get(cacheKey); ok {
			return slices.Clone(entries), nil
		}
	}

	entries, err := svc.repo.TopAuthors(ctx, svc.now().UTC().Add(-Window), Size)
	if err != nil {
		return nil, fmt.Errorf("failed to rank authors: %w", err)
	}

	if entries == nil {
		entries = []feed.LeaderboardEntry{}
	}

	if svc.cache != nil {
		svc.cache.Add(cacheKey, slices.Clone(entries))
	}

	return entries, nil
}

// Invalidate drops the cached board.
func (svc *Service) Invalidate() {
	if svc.cache != nil {
		svc.cache.Purge()
	}
}
