// Package optimistic applies likes and deletions locally before the server
// confirms them, and reconciles the result.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nasermirzaei89/karma/backend"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/metrics"
)

// ErrInFlight is returned when a mutation on the same entity has not settled yet.
var ErrInFlight = errors.New("mutation already in flight")

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Remote is the part of the backend the engine mutates through.
type Remote interface {
	LikePost(ctx context.Context, postID feed.ID) (*backend.LikeResult, error)
	LikeComment(ctx context.Context, commentID feed.ID) (*backend.LikeResult, error)
	DeletePost(ctx context.Context, postID feed.ID) error
	DeleteComment(ctx context.Context, commentID feed.ID) error
}

// Refresher reloads the collections after a commit. Epoch changes whenever
// the collections are torn down, and RefreshIn ignores a stale epoch.
type Refresher interface {
	Epoch() uint64
	RefreshIn(ctx context.Context, epoch uint64) error
}

type Engine struct {
	state     *feed.State
	remote    Remote
	refresher Refresher
	notices   *feed.Notices
	metrics   *metrics.Collector

	mu      sync.Mutex
	pending map[feed.Ref]struct{}
}

// NewEngine builds an engine over state. refresher and collector may be nil.
func NewEngine(
	state *feed.State,
	remote Remote,
	refresher Refresher,
	notices *feed.Notices,
	collector *metrics.Collector,
) *Engine {
	if notices == nil {
		notices = feed.NewNotices()
	}

	return &Engine{
		state:     state,
		remote:    remote,
		refresher: refresher,
		notices:   notices,
		metrics:   collector,
		pending:   make(map[feed.Ref]struct{}),
	}
}

// Pending reports whether a mutation on ref is waiting for the server.
func (e *Engine) Pending(ref feed.Ref) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.pending[ref]

	return ok
}

func (e *Engine) begin(ref feed.Ref) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[ref]; ok {
		return false
	}

	e.pending[ref] = struct{}{}

	return true
}

func (e *Engine) end(ref feed.Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.pending, ref)
}

// toggle flips has_liked and moves the count by one, never below zero.
func toggle(ls feed.LikeState) feed.LikeState {
	if ls.HasLiked {
		return feed.LikeState{HasLiked: false, LikeCount: max(ls.LikeCount-1, 0)}
	}

	return feed.LikeState{HasLiked: true, LikeCount: ls.LikeCount + 1}
}

// ToggleLike shows the flipped like state at once and sends exactly one
// remote call. On failure the previous state is put back unless a refresh has
// landed since, and a notice is raised. On success the server's values are
// applied and a refresh is requested.
func (e *Engine) ToggleLike(ctx context.Context, ref feed.Ref) (Phase, error) {
	if !ref.Kind.IsValid() {
		return PhaseIdle, &feed.InvalidKindError{Kind: ref.Kind}
	}

	if !e.begin(ref) {
		e.metrics.RecordLike(string(ref.Kind), metrics.OutcomeRejected)

		return PhasePending, ErrInFlight
	}
	defer e.end(ref)

	epoch := e.epoch()
	started := time.Now()
	defer e.metrics.ObserveMutation(string(ref.Kind), started)

	update, err := e.state.UpdateLike(ref, toggle)
	if err != nil {
		return PhaseIdle, fmt.Errorf("failed to apply like: %w", err)
	}

	result, err := e.like(ctx, ref)
	if err != nil {
		slog.ErrorContext(ctx, "failed to toggle like", "ref", ref.String(), "error", err)

		e.restore(ctx, ref, "like", func() error {
			return e.state.RestoreLike(ref, update.Generation, update.Before)
		})

		e.notices.Error(fmt.Sprintf("Could not update like on this %s. Please try again.", ref.Kind), err)
		e.metrics.RecordLike(string(ref.Kind), metrics.OutcomeRolledBack)

		return PhaseRolledBack, fmt.Errorf("failed to toggle like on %s: %w", ref, err)
	}

	if result != nil {
		err = e.state.RestoreLike(ref, update.Generation, result.LikeState())
		if err != nil && !errors.Is(err, feed.ErrSuperseded) {
			slog.WarnContext(ctx, "failed to apply server like state", "ref", ref.String(), "error", err)
		}
	}

	e.metrics.RecordLike(string(ref.Kind), metrics.OutcomeCommitted)
	e.refresh(ctx, epoch)

	return PhaseCommitted, nil
}

func (e *Engine) like(ctx context.Context, ref feed.Ref) (*backend.LikeResult, error) {
	switch ref.Kind {
	case feed.KindPost:
		return e.remote.LikePost(ctx, ref.ID)
	case feed.KindComment:
		return e.remote.LikeComment(ctx, ref.ID)
	default:
		return nil, &feed.InvalidKindError{Kind: ref.Kind}
	}
}

// Delete removes the entity locally, then on the server. A failed remote call
// puts the entity back where it was.
func (e *Engine) Delete(ctx context.Context, ref feed.Ref) (Phase, error) {
	if !ref.Kind.IsValid() {
		return PhaseIdle, &feed.InvalidKindError{Kind: ref.Kind}
	}

	if !e.begin(ref) {
		e.metrics.RecordDelete(string(ref.Kind), metrics.OutcomeRejected)

		return PhasePending, ErrInFlight
	}
	defer e.end(ref)

	epoch := e.epoch()

	var (
		remoteErr error
		restore   func() error
	)

	switch ref.Kind {
	case feed.KindPost:
		removal, ok := e.state.RemovePost(ref.ID)
		if !ok {
			return PhaseIdle, &feed.EntityNotFoundError{Ref: ref}
		}

		restore = func() error { return e.state.RestorePost(removal) }
		remoteErr = e.remote.DeletePost(ctx, ref.ID)
	case feed.KindComment:
		removal, ok := e.state.RemoveComment(ref.ID)
		if !ok {
			return PhaseIdle, &feed.EntityNotFoundError{Ref: ref}
		}

		restore = func() error { return e.state.RestoreComment(removal) }
		remoteErr = e.remote.DeleteComment(ctx, ref.ID)
	}

	if remoteErr != nil {
		slog.ErrorContext(ctx, "failed to delete", "ref", ref.String(), "error", remoteErr)

		e.restore(ctx, ref, "delete", restore)
		e.notices.Error(fmt.Sprintf("Could not delete this %s. Please try again.", ref.Kind), remoteErr)
		e.metrics.RecordDelete(string(ref.Kind), metrics.OutcomeRolledBack)

		return PhaseRolledBack, fmt.Errorf("failed to delete %s: %w", ref, remoteErr)
	}

	e.metrics.RecordDelete(string(ref.Kind), metrics.OutcomeCommitted)
	e.refresh(ctx, epoch)

	return PhaseCommitted, nil
}

func (e *Engine) restore(ctx context.Context, ref feed.Ref, op string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}

	if errors.Is(err, feed.ErrSuperseded) {
		slog.DebugContext(ctx, "skipped rollback after newer refresh", "op", op, "ref", ref.String())

		return
	}

	slog.ErrorContext(ctx, "failed to roll back", "op", op, "ref", ref.String(), "error", err)
}

func (e *Engine) epoch() uint64 {
	if e.refresher == nil {
		return 0
	}

	return e.refresher.Epoch()
}

func (e *Engine) refresh(ctx context.Context, epoch uint64) {
	if e.refresher == nil {
		return
	}

	err := e.refresher.RefreshIn(ctx, epoch)
	if err != nil {
		slog.ErrorContext(ctx, "failed to refresh after mutation", "error", err)
	}
}

// AddPost shows a post the server just created at the head of the feed.
func (e *Engine) AddPost(post feed.Post) {
	e.state.AddPost(post)
}

// AddComment inserts a comment the server just created into its tree. A
// comment whose post or parent is no longer loaded is dropped; the next
// refresh brings it in.
func (e *Engine) AddComment(ctx context.Context, c feed.Comment) {
	if !e.state.AddComment(c) {
		slog.DebugContext(ctx, "skipped insert of comment with unknown parent", "comment", c.ID, "post", c.PostID)
	}
}
