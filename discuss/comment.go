package discuss

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	ParentID  *string
	Content   string
	CreatedAt time.Time
}

// CommentRepository stores comments. Delete removes the whole reply subtree
// and the likes on it.
type CommentRepository interface {
	Insert(ctx context.Context, comment *Comment) (err error)
	Find(ctx context.Context, commentID string) (comment *Comment, err error)
	List(ctx context.Context, params *ListCommentsParams) (comments []*Comment, err error)
	Delete(ctx context.Context, commentID string) (err error)
}

// ListCommentsParams filters comments by post. Results are oldest first.
type ListCommentsParams struct {
	PostIDs []string
}

type CommentNotFoundError struct {
	ID string
}

func (err CommentNotFoundError) Error() string {
	return fmt.Sprintf("comment with id %q not found", err.ID)
}

type ParentMismatchError struct {
	ParentID string
	PostID   string
}

func (err ParentMismatchError) Error() string {
	return fmt.Sprintf("comment %q does not belong to post %q", err.ParentID, err.PostID)
}

var (
	ErrNotCommentAuthor = errors.New("only the author can delete this comment")
	ErrThreadTooDeep    = errors.New("thread too deep")
)
