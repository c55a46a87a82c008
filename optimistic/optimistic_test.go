package optimistic_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/nasermirzaei89/karma/backend/backendtest"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/metrics"
	"github.com/nasermirzaei89/karma/optimistic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	epoch atomic.Uint64
}

func (r *countingRefresher) Epoch() uint64 {
	return r.epoch.Load()
}

func (r *countingRefresher) RefreshIn(_ context.Context, epoch uint64) error {
	if epoch == r.epoch.Load() {
		r.calls.Add(1)
	}

	return nil
}

type fixture struct {
	api       *backendtest.Fake
	state     *feed.State
	notices   *feed.Notices
	refresher *countingRefresher
	metrics   *metrics.Collector
	engine    *optimistic.Engine
	author    feed.User
	viewer    feed.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := backendtest.New()
	author := api.AddUser("ana", "secret")
	viewer := api.AddUser("bo", "secret")
	api.SignIn(viewer)

	post := feed.Post{ID: "p1", Author: author, Content: "hello"}
	feed.InsertComment(&post, feed.Comment{ID: "c1", PostID: "p1", Author: author, Content: "first"})
	feed.InsertComment(&post, feed.Comment{ID: "c2", PostID: "p1", Author: viewer, ParentID: feed.IDPtr("c1"), Content: "reply"})

	api.SeedPost(post)
	api.SeedPost(feed.Post{ID: "p2", Author: viewer, Content: "second"})
	api.SeedLike(feed.PostRef("p1"), author.ID)

	posts, err := api.Feed(context.Background())
	require.NoError(t, err)

	state := feed.NewState()
	state.Apply(feed.Snapshot{Posts: posts})

	f := &fixture{
		api:       api,
		state:     state,
		notices:   feed.NewNotices(),
		refresher: &countingRefresher{},
		metrics:   metrics.New(prometheus.NewRegistry()),
		author:    author,
		viewer:    viewer,
	}

	f.engine = optimistic.NewEngine(state, api, f.refresher, f.notices, f.metrics)

	return f
}

func (f *fixture) likeState(t *testing.T, ref feed.Ref) feed.LikeState {
	t.Helper()

	ls, ok := f.state.LikeState(ref)
	require.True(t, ok)

	return ls
}

func TestToggleLikeOptimisticThenCommit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ref := feed.PostRef("p1")

	entered := make(chan struct{})
	release := make(chan struct{})

	f.api.Hook(backendtest.MethodLikePost, func(context.Context) error {
		close(entered)
		<-release

		return nil
	})

	type outcome struct {
		phase optimistic.Phase
		err   error
	}

	done := make(chan outcome, 1)

	go func() {
		phase, err := f.engine.ToggleLike(context.Background(), ref)
		done <- outcome{phase: phase, err: err}
	}()

	<-entered

	assert.Equal(t, feed.LikeState{HasLiked: true, LikeCount: 2}, f.likeState(t, ref))
	assert.True(t, f.engine.Pending(ref))

	phase, err := f.engine.ToggleLike(context.Background(), ref)
	require.ErrorIs(t, err, optimistic.ErrInFlight)
	assert.Equal(t, optimistic.PhasePending, phase)
	assert.Equal(t, 1, f.api.Calls(backendtest.MethodLikePost))

	close(release)

	result := <-done
	require.NoError(t, result.err)
	assert.Equal(t, optimistic.PhaseCommitted, result.phase)
	assert.False(t, f.engine.Pending(ref))
	assert.Equal(t, feed.LikeState{HasLiked: true, LikeCount: 2}, f.likeState(t, ref))
	assert.Equal(t, int32(1), f.refresher.calls.Load())
	assert.Empty(t, f.notices.List())

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LikesTotal.WithLabelValues("post", "committed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.LikesTotal.WithLabelValues("post", "rejected")), 0)
}

func TestToggleLikeRollback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  feed.Ref
		fail backendtest.Method
	}{
		{name: "post", ref: feed.PostRef("p1"), fail: backendtest.MethodLikePost},
		{name: "comment", ref: feed.CommentRef("c2"), fail: backendtest.MethodLikeComment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			before := f.state.Posts()
			f.api.Fail(tt.fail, assert.AnError)

			var during feed.LikeState

			f.api.Hook(tt.fail, func(context.Context) error {
				during = f.likeState(t, tt.ref)

				return nil
			})

			phase, err := f.engine.ToggleLike(context.Background(), tt.ref)
			require.ErrorIs(t, err, assert.AnError)
			assert.Equal(t, optimistic.PhaseRolledBack, phase)

			assert.True(t, during.HasLiked)
			assert.Equal(t, before, f.state.Posts())
			assert.Equal(t, int32(0), f.refresher.calls.Load())
			assert.False(t, f.engine.Pending(tt.ref))

			notices := f.notices.List()
			require.Len(t, notices, 1)
			assert.Equal(t, feed.NoticeError, notices[0].Level)
			assert.Contains(t, notices[0].Message, string(tt.ref.Kind))
		})
	}
}

func TestToggleLikeUnlikeNeverNegative(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ref := feed.PostRef("p2")

	_, err := f.state.UpdateLike(ref, func(feed.LikeState) feed.LikeState {
		return feed.LikeState{HasLiked: true, LikeCount: 0}
	})
	require.NoError(t, err)

	var during feed.LikeState

	f.api.Hook(backendtest.MethodLikePost, func(context.Context) error {
		during = f.likeState(t, ref)

		return assert.AnError
	})

	_, err = f.engine.ToggleLike(context.Background(), ref)
	require.Error(t, err)

	assert.Equal(t, feed.LikeState{HasLiked: false, LikeCount: 0}, during)
	assert.Equal(t, feed.LikeState{HasLiked: true, LikeCount: 0}, f.likeState(t, ref))
}

func TestToggleLikeRollbackSkippedAfterRefresh(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ref := feed.PostRef("p1")

	f.api.Hook(backendtest.MethodLikePost, func(ctx context.Context) error {
		posts, err := f.api.Feed(ctx)
		require.NoError(t, err)

		posts[0].LikeCount = 7
		f.state.Apply(feed.Snapshot{Posts: posts})

		return assert.AnError
	})

	phase, err := f.engine.ToggleLike(context.Background(), ref)
	require.Error(t, err)
	assert.Equal(t, optimistic.PhaseRolledBack, phase)

	assert.Equal(t, feed.LikeState{HasLiked: false, LikeCount: 7}, f.likeState(t, ref))
	assert.Len(t, f.notices.List(), 1)
}

func TestToggleLikeAppliesServerState(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ref := feed.PostRef("p2")

	f.api.SeedLike(ref, f.author.ID)

	phase, err := f.engine.ToggleLike(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, optimistic.PhaseCommitted, phase)

	assert.Equal(t, feed.LikeState{HasLiked: true, LikeCount: 2}, f.likeState(t, ref))
}

func TestToggleLikeUnknownEntity(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.engine.ToggleLike(context.Background(), feed.CommentRef("missing"))

	notFoundErr := &feed.EntityNotFoundError{}
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, 0, f.api.Calls(backendtest.MethodLikeComment))

	_, err = f.engine.ToggleLike(context.Background(), feed.Ref{Kind: "story", ID: "1"})

	kindErr := &feed.InvalidKindError{}
	require.ErrorAs(t, err, &kindErr)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	t.Run("post rollback", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		before := f.state.Posts()
		f.api.Fail(backendtest.MethodDeletePost, assert.AnError)

		f.api.Hook(backendtest.MethodDeletePost, func(context.Context) error {
			_, ok := f.state.Post("p1")
			assert.False(t, ok)

			return nil
		})

		phase, err := f.engine.Delete(context.Background(), feed.PostRef("p1"))
		require.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, optimistic.PhaseRolledBack, phase)
		assert.Equal(t, before, f.state.Posts())
		assert.Len(t, f.notices.List(), 1)
	})

	t.Run("comment commit", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		phase, err := f.engine.Delete(context.Background(), feed.CommentRef("c1"))
		require.NoError(t, err)
		assert.Equal(t, optimistic.PhaseCommitted, phase)

		post, ok := f.state.Post("p1")
		require.True(t, ok)
		assert.Empty(t, post.Comments)
		assert.Equal(t, 0, post.CommentCount)
		assert.Equal(t, int32(1), f.refresher.calls.Load())
	})

	t.Run("comment rollback", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		before := f.state.Posts()
		f.api.Fail(backendtest.MethodDeleteComment, assert.AnError)

		_, err := f.engine.Delete(context.Background(), feed.CommentRef("c2"))
		require.Error(t, err)
		assert.Equal(t, before, f.state.Posts())
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)

		phase, err := f.engine.Delete(context.Background(), feed.PostRef("missing"))
		require.Error(t, err)
		assert.Equal(t, optimistic.PhaseIdle, phase)
		assert.Equal(t, 0, f.api.Calls(backendtest.MethodDeletePost))
	})
}

func TestPhaseString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "committed", optimistic.PhaseCommitted.String())
	assert.Equal(t, "rolled back", optimistic.PhaseRolledBack.String())
}

func TestAddCreated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.engine.AddPost(feed.Post{ID: "p9", Author: f.viewer, Content: "fresh"})
	f.engine.AddComment(context.Background(), feed.Comment{ID: "c9", PostID: "p1", ParentID: feed.IDPtr("c2"), Content: "deep"})
	f.engine.AddComment(context.Background(), feed.Comment{ID: "c10", PostID: "p1", ParentID: feed.IDPtr("gone"), Content: "orphan"})

	posts := f.state.Posts()
	require.Len(t, posts, 3)
	assert.Equal(t, feed.ID("p9"), posts[0].ID)

	_, _, depth, ok := f.state.Comment("c9")
	require.True(t, ok)
	assert.Equal(t, 2, depth)

	_, _, _, ok = f.state.Comment("c10")
	assert.False(t, ok)
}

func TestCommitAfterResetSkipsRefresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method backendtest.Method
		run    func(ctx context.Context, e *optimistic.Engine) (optimistic.Phase, error)
	}{
		{
			name:   "like",
			method: backendtest.MethodLikePost,
			run: func(ctx context.Context, e *optimistic.Engine) (optimistic.Phase, error) {
				return e.ToggleLike(ctx, feed.PostRef("p1"))
			},
		},
		{
			name:   "delete",
			method: backendtest.MethodDeletePost,
			run: func(ctx context.Context, e *optimistic.Engine) (optimistic.Phase, error) {
				return e.Delete(ctx, feed.PostRef("p2"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)

			entered := make(chan struct{})
			release := make(chan struct{})

			f.api.Hook(tt.method, func(context.Context) error {
				close(entered)
				<-release

				return nil
			})

			type outcome struct {
				phase optimistic.Phase
				err   error
			}

			done := make(chan outcome, 1)

			go func() {
				phase, err := tt.run(context.Background(), f.engine)
				done <- outcome{phase: phase, err: err}
			}()

			<-entered

			f.refresher.epoch.Add(1)
			f.state.Clear()

			close(release)

			got := <-done
			require.NoError(t, got.err)
			assert.Equal(t, optimistic.PhaseCommitted, got.phase)
			assert.Equal(t, int32(0), f.refresher.calls.Load())
			assert.Empty(t, f.state.Posts())
		})
	}
}
