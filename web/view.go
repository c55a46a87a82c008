package web

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/discuss"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/reactions"
)

func userView(user *accounts.User, karma int) feed.User {
	return feed.User{
		ID:       feed.ID(user.ID),
		Username: user.Username,
		Profile:  &feed.Profile{TotalKarma: karma, CreatedAt: user.RegisteredAt},
	}
}

func (h *Handler) userView(ctx context.Context, user *accounts.User) (feed.User, error) {
	karma, err := h.reactionsSvc.Karma(ctx, user.ID)
	if err != nil {
		return feed.User{}, fmt.Errorf("failed to get karma: %w", err)
	}

	return userView(user, karma[user.ID]), nil
}

// postViews assembles posts with their authors, like state for viewer and
// comment trees.
func (h *Handler) postViews(ctx context.Context, posts []*contents.Post, viewer string) ([]feed.Post, error) {
	postIDs := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))

	for _, p := range posts {
		postIDs = append(postIDs, p.ID)
		authorIDs = append(authorIDs, p.AuthorID)
	}

	comments, err := h.discussSvc.ListComments(ctx, postIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	commentIDs := make([]string, 0, len(comments))

	for _, c := range comments {
		commentIDs = append(commentIDs, c.ID)
		authorIDs = append(authorIDs, c.AuthorID)
	}

	slices.Sort(authorIDs)
	authorIDs = slices.Compact(authorIDs)

	authors, err := h.accountsSvc.GetUsers(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get authors: %w", err)
	}

	karma, err := h.reactionsSvc.Karma(ctx, authorIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get karma: %w", err)
	}

	postLikes, err := h.reactionsSvc.LikeCounts(ctx, reactions.TargetTypePost, postIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to count post likes: %w", err)
	}

	commentLikes, err := h.reactionsSvc.LikeCounts(ctx, reactions.TargetTypeComment, commentIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to count comment likes: %w", err)
	}

	likedPosts, err := h.reactionsSvc.LikedBy(ctx, viewer, reactions.TargetTypePost, postIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get liked posts: %w", err)
	}

	likedComments, err := h.reactionsSvc.LikedBy(ctx, viewer, reactions.TargetTypeComment, commentIDs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get liked comments: %w", err)
	}

	author := func(id string) feed.User {
		u, ok := authors[id]
		if !ok {
			return feed.User{ID: feed.ID(id)}
		}

		return userView(u, karma[id])
	}

	views := make([]feed.Post, 0, len(posts))
	index := make(map[string]int, len(posts))

	for _, p := range posts {
		index[p.ID] = len(views)
		views = append(views, feed.Post{
			ID:        feed.ID(p.ID),
			Author:    author(p.AuthorID),
			Content:   p.Content,
			CreatedAt: p.CreatedAt,
			LikeCount: postLikes[p.ID],
			HasLiked:  likedPosts[p.ID],
			Comments:  []feed.Comment{},
		})
	}

	for _, c := range comments {
		i, ok := index[c.PostID]
		if !ok {
			continue
		}

		view := commentView(c, author(c.AuthorID), commentLikes[c.ID], likedComments[c.ID])

		if !feed.InsertComment(&views[i], view) {
			slog.WarnContext(ctx, "dropping comment with unknown parent", "commentId", c.ID, "postId", c.PostID)
		}
	}

	return views, nil
}

func commentView(c *discuss.Comment, author feed.User, likes int, liked bool) feed.Comment {
	return feed.Comment{
		ID:        feed.ID(c.ID),
		PostID:    feed.ID(c.PostID),
		Author:    author,
		ParentID:  feed.IDPtr(feed.ID(derefString(c.ParentID))),
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		LikeCount: likes,
		HasLiked:  liked,
		Replies:   []feed.Comment{},
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func (h *Handler) postView(ctx context.Context, post *contents.Post, viewer string) (feed.Post, error) {
	views, err := h.postViews(ctx, []*contents.Post{post}, viewer)
	if err != nil {
		return feed.Post{}, err
	}

	return views[0], nil
}
