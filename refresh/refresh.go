// Package refresh reloads the feed and the leaderboard from the server and
// replaces the local collections with the result.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/metrics"
	"golang.org/x/sync/errgroup"
)

type Source interface {
	Feed(ctx context.Context) ([]feed.Post, error)
	Leaderboard(ctx context.Context) ([]feed.LeaderboardEntry, error)
}

// Error reports which of the two reads failed. The failed collections were
// emptied.
type Error struct {
	FeedErr        error
	LeaderboardErr error
}

func (err Error) Error() string {
	switch {
	case err.FeedErr != nil && err.LeaderboardErr != nil:
		return fmt.Sprintf("failed to load feed: %v; failed to load leaderboard: %v", err.FeedErr, err.LeaderboardErr)
	case err.FeedErr != nil:
		return fmt.Sprintf("failed to load feed: %v", err.FeedErr)
	default:
		return fmt.Sprintf("failed to load leaderboard: %v", err.LeaderboardErr)
	}
}

func (err Error) Unwrap() []error {
	errs := make([]error, 0, 2)

	for _, e := range []error{err.FeedErr, err.LeaderboardErr} {
		if e != nil {
			errs = append(errs, e)
		}
	}

	return errs
}

type Coordinator struct {
	state   *feed.State
	source  Source
	notices *feed.Notices
	metrics *metrics.Collector

	mu sync.Mutex
	// issued is the last ticket handed out, applied the newest ticket whose
	// response was applied. Tickets at or below floor were cut off by Reset.
	issued  uint64
	applied uint64
	floor   uint64
	epoch   uint64
}

func NewCoordinator(state *feed.State, source Source, notices *feed.Notices, collector *metrics.Collector) *Coordinator {
	if notices == nil {
		notices = feed.NewNotices()
	}

	return &Coordinator{
		state:   state,
		source:  source,
		notices: notices,
		metrics: collector,
	}
}

// Refresh reads the feed and the leaderboard concurrently, then replaces both
// collections. A read that fails leaves its collection empty and raises a
// notice. A response that arrives after a newer one was applied, or after
// Reset, is dropped.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	ticket := c.nextTicketLocked()
	c.mu.Unlock()

	return c.run(ctx, ticket)
}

// RefreshIn refreshes only while epoch is current. Work started before a
// Reset uses it so that it cannot reload what the reset tore down.
func (c *Coordinator) RefreshIn(ctx context.Context, epoch uint64) error {
	c.mu.Lock()

	if epoch != c.epoch {
		c.mu.Unlock()
		slog.DebugContext(ctx, "skipped refresh from before reset", "epoch", epoch)

		return nil
	}

	ticket := c.nextTicketLocked()
	c.mu.Unlock()

	return c.run(ctx, ticket)
}

// Epoch identifies the current session of collections. It changes on Reset.
func (c *Coordinator) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.epoch
}

// Within runs fn unless a Reset happened since epoch, and reports whether it
// ran. fn runs under the coordinator lock and must not call back into it.
func (c *Coordinator) Within(epoch uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return false
	}

	fn()

	return true
}

func (c *Coordinator) run(ctx context.Context, ticket uint64) error {
	var (
		posts          []feed.Post
		leaderboard    []feed.LeaderboardEntry
		feedErr        error
		leaderboardErr error
	)

	var g errgroup.Group

	g.Go(func() error {
		posts, feedErr = c.source.Feed(ctx)

		return nil
	})

	g.Go(func() error {
		leaderboard, leaderboardErr = c.source.Leaderboard(ctx)

		return nil
	})

	_ = g.Wait()

	if feedErr != nil {
		posts = nil
	}

	if leaderboardErr != nil {
		leaderboard = nil
	}

	if !c.apply(ticket, feed.Snapshot{Posts: posts, Leaderboard: leaderboard}) {
		slog.DebugContext(ctx, "dropped stale refresh", "ticket", ticket)
		c.metrics.RecordRefresh("feed", metrics.ResultStale)
		c.metrics.RecordRefresh("leaderboard", metrics.ResultStale)

		return nil
	}

	c.record(ctx, "feed", "Could not load the feed.", feedErr)
	c.record(ctx, "leaderboard", "Could not load the leaderboard.", leaderboardErr)

	if feedErr != nil || leaderboardErr != nil {
		return &Error{FeedErr: feedErr, LeaderboardErr: leaderboardErr}
	}

	return nil
}

func (c *Coordinator) record(ctx context.Context, collection, message string, err error) {
	if err == nil {
		c.metrics.RecordRefresh(collection, metrics.ResultSuccess)

		return
	}

	if errors.Is(err, context.Canceled) {
		slog.DebugContext(ctx, "refresh canceled", "collection", collection)
	} else {
		slog.ErrorContext(ctx, "failed to refresh", "collection", collection, "error", err)
	}

	c.notices.Error(message, err)
	c.metrics.RecordRefresh(collection, metrics.ResultError)
}

func (c *Coordinator) nextTicketLocked() uint64 {
	c.issued++

	return c.issued
}

func (c *Coordinator) apply(ticket uint64, snapshot feed.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ticket <= c.applied || ticket <= c.floor {
		return false
	}

	c.applied = ticket
	c.state.Apply(snapshot)

	return true
}

// Reset empties every collection and drops refreshes still in flight.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.floor = c.issued
	c.epoch++
	c.state.Clear()
}
