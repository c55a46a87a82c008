// Package client dispatches user actions through the session gate, the
// draft store, the optimistic engine and the refresh coordinator over one
// shared feed state.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nasermirzaei89/karma/backend"
	"github.com/nasermirzaei89/karma/drafts"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/metrics"
	"github.com/nasermirzaei89/karma/optimistic"
	"github.com/nasermirzaei89/karma/refresh"
	"github.com/nasermirzaei89/karma/session"
)

// ErrThreadTooDeep is returned for replies to comments at the maximum depth.
var ErrThreadTooDeep = errors.New("thread too deep, reply disabled")

// ErrEmptyResponse is returned when the server accepted a write but sent
// nothing back.
var ErrEmptyResponse = errors.New("empty response from server")

type Client struct {
	api         backend.API
	state       *feed.State
	notices     *feed.Notices
	gate        *session.Gate
	drafts      *drafts.Store
	engine      *optimistic.Engine
	coordinator *refresh.Coordinator
}

// New wires a client over api. collector may be nil.
func New(api backend.API, collector *metrics.Collector) *Client {
	state := feed.NewState()
	notices := feed.NewNotices()
	coordinator := refresh.NewCoordinator(state, api, notices, collector)

	return &Client{
		api:         api,
		state:       state,
		notices:     notices,
		gate:        session.NewGate(api),
		drafts:      drafts.NewStore(),
		engine:      optimistic.NewEngine(state, api, coordinator, notices, collector),
		coordinator: coordinator,
	}
}

func (c *Client) Posts() []feed.Post {
	return c.state.Posts()
}

func (c *Client) Post(id feed.ID) (feed.Post, bool) {
	return c.state.Post(id)
}

func (c *Client) Leaderboard() []feed.LeaderboardEntry {
	return c.state.Leaderboard()
}

func (c *Client) Session() session.State {
	return c.gate.State()
}

func (c *Client) Gate() *session.Gate {
	return c.gate
}

func (c *Client) Drafts() *drafts.Store {
	return c.drafts
}

func (c *Client) Notices() *feed.Notices {
	return c.notices
}

// ReplyAvailability tells whether the reply control under a comment is shown.
func (c *Client) ReplyAvailability(commentID feed.ID) feed.Availability {
	_, _, depth, ok := c.state.Comment(commentID)
	if !ok {
		return feed.Availability{}
	}

	return feed.ReplyAvailability(depth)
}

// Start restores an existing session and loads the feed.
func (c *Client) Start(ctx context.Context) error {
	err := c.gate.Hydrate(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to restore session", "error", err)
		c.notices.Error("Could not restore your session.", err)
	}

	return c.Refresh(ctx)
}

func (c *Client) Refresh(ctx context.Context) error {
	return c.coordinator.Refresh(ctx)
}

func (c *Client) LikePost(ctx context.Context, postID feed.ID) (optimistic.Phase, error) {
	return c.toggleLike(ctx, feed.PostRef(postID))
}

func (c *Client) LikeComment(ctx context.Context, commentID feed.ID) (optimistic.Phase, error) {
	return c.toggleLike(ctx, feed.CommentRef(commentID))
}

func (c *Client) toggleLike(ctx context.Context, ref feed.Ref) (optimistic.Phase, error) {
	err := c.gate.Require("like")
	if err != nil {
		return optimistic.PhaseIdle, err
	}

	return c.engine.ToggleLike(ctx, ref)
}

func (c *Client) DeletePost(ctx context.Context, postID feed.ID) (optimistic.Phase, error) {
	return c.delete(ctx, feed.PostRef(postID))
}

func (c *Client) DeleteComment(ctx context.Context, commentID feed.ID) (optimistic.Phase, error) {
	return c.delete(ctx, feed.CommentRef(commentID))
}

func (c *Client) delete(ctx context.Context, ref feed.Ref) (optimistic.Phase, error) {
	err := c.gate.Require("delete")
	if err != nil {
		return optimistic.PhaseIdle, err
	}

	return c.engine.Delete(ctx, ref)
}

func (c *Client) CreatePost(ctx context.Context, content string) (*feed.Post, error) {
	err := c.gate.Require("createPost")
	if err != nil {
		return nil, err
	}

	err = feed.ValidatePostContent(content)
	if err != nil {
		c.notices.Error(err.Error(), err)

		return nil, err
	}

	epoch := c.coordinator.Epoch()

	post, err := c.api.CreatePost(ctx, backend.CreatePostRequest{Content: content})
	if err == nil && post == nil {
		err = ErrEmptyResponse
	}

	if err != nil {
		slog.ErrorContext(ctx, "failed to create post", "error", err)
		c.notices.Error("Could not create the post. Please try again.", err)

		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	c.coordinator.Within(epoch, func() { c.engine.AddPost(*post) })
	c.refreshAfter(ctx, epoch, "createPost")

	return post, nil
}

// SubmitComment sends the top-level comment draft of a post.
func (c *Client) SubmitComment(ctx context.Context, postID feed.ID) (*feed.Comment, error) {
	return c.submit(ctx, postID, nil, drafts.PostKey(postID))
}

// SubmitReply sends the reply draft of a comment.
func (c *Client) SubmitReply(ctx context.Context, postID, parentID feed.ID) (*feed.Comment, error) {
	return c.submit(ctx, postID, &parentID, drafts.CommentKey(parentID))
}

func (c *Client) submit(ctx context.Context, postID feed.ID, parentID *feed.ID, draftKey string) (*feed.Comment, error) {
	err := c.gate.Require("createComment")
	if err != nil {
		return nil, err
	}

	content := c.drafts.Get(draftKey)

	err = feed.ValidateCommentContent(content)
	if err != nil {
		c.notices.Error(err.Error(), err)

		return nil, err
	}

	if parentID != nil {
		_, _, depth, ok := c.state.Comment(*parentID)
		if ok && !feed.CanReply(depth) {
			c.notices.Error(feed.ThreadTooDeepText, ErrThreadTooDeep)

			return nil, ErrThreadTooDeep
		}
	}

	epoch := c.coordinator.Epoch()

	created, err := c.api.CreateComment(ctx, backend.CreateCommentRequest{
		PostID:   postID,
		ParentID: parentID,
		Content:  content,
	})
	if err == nil && created == nil {
		err = ErrEmptyResponse
	}

	if err != nil {
		slog.ErrorContext(ctx, "failed to create comment", "post", postID, "error", err)
		c.notices.Error("Could not post the comment. Your text was kept.", err)

		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	c.coordinator.Within(epoch, func() { c.engine.AddComment(ctx, *created) })
	c.drafts.Clear(draftKey)
	c.refreshAfter(ctx, epoch, "createComment")

	return created, nil
}

func (c *Client) refreshAfter(ctx context.Context, epoch uint64, action string) {
	err := c.coordinator.RefreshIn(ctx, epoch)
	if err != nil {
		slog.ErrorContext(ctx, "failed to refresh after action", "action", action, "error", err)
	}
}

func (c *Client) Login(ctx context.Context, username, password string) (*feed.User, error) {
	user, err := c.gate.Login(ctx, username, password)
	if err != nil {
		c.notices.Error(err.Error(), err)

		return nil, err
	}

	c.refreshAfter(ctx, c.coordinator.Epoch(), "login")

	return user, nil
}

func (c *Client) Register(ctx context.Context, username, password string) (*feed.User, error) {
	user, err := c.gate.Register(ctx, username, password)
	if err != nil {
		c.notices.Error(err.Error(), err)

		return nil, err
	}

	c.refreshAfter(ctx, c.coordinator.Epoch(), "register")

	return user, nil
}

// Logout ends the session and empties every collection, whatever the server
// answers.
func (c *Client) Logout(ctx context.Context) error {
	err := c.gate.Logout(ctx)

	c.coordinator.Reset()

	if err != nil {
		slog.ErrorContext(ctx, "failed to logout", "error", err)
		c.notices.Error("The server did not confirm the logout. You are signed out locally.", err)

		return err
	}

	return nil
}
