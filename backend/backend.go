// Package backend describes the remote capability the feed client talks to.
package backend

import (
	"context"

	"github.com/nasermirzaei89/karma/feed"
)

// API is every remote call the client makes. Implementations must be safe for
// concurrent use.
type API interface {
	Feed(ctx context.Context) ([]feed.Post, error)
	Leaderboard(ctx context.Context) ([]feed.LeaderboardEntry, error)

	CreatePost(ctx context.Context, req CreatePostRequest) (*feed.Post, error)
	CreateComment(ctx context.Context, req CreateCommentRequest) (*feed.Comment, error)
	DeletePost(ctx context.Context, postID feed.ID) error
	DeleteComment(ctx context.Context, commentID feed.ID) error

	LikePost(ctx context.Context, postID feed.ID) (*LikeResult, error)
	LikeComment(ctx context.Context, commentID feed.ID) (*LikeResult, error)

	Login(ctx context.Context, username, password string) (*feed.User, error)
	Register(ctx context.Context, username, password string) (*feed.User, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*feed.User, error)
}

// LikeResult is the body returned by a like toggle. The values are advisory:
// the next refresh is authoritative.
type LikeResult struct {
	Liked       bool   `json:"liked"`
	LikeCount   int    `json:"like_count"`
	Message     string `json:"message,omitempty"`
	AuthorKarma int    `json:"author_karma"`
}

func (res LikeResult) LikeState() feed.LikeState {
	return feed.LikeState{HasLiked: res.Liked, LikeCount: res.LikeCount}
}

type CreatePostRequest struct {
	Content string `json:"content"`
}

type CreateCommentRequest struct {
	PostID   feed.ID  `json:"post"`
	ParentID *feed.ID `json:"parent"`
	Content  string   `json:"content"`
}
