package contents

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Post struct {
	ID        string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// PostRepository stores posts. Delete also removes the post's comments
// and every like on the post or its comments.
type PostRepository interface {
	Insert(ctx context.Context, post *Post) (err error)
	Find(ctx context.Context, postID string) (post *Post, err error)
	List(ctx context.Context) (posts []*Post, err error)
	Delete(ctx context.Context, postID string) (err error)
}

type PostNotFoundError struct {
	ID string
}

func (err PostNotFoundError) Error() string {
	return fmt.Sprintf("post with id %q not found", err.ID)
}

var ErrNotPostAuthor = errors.New("only the author can delete this post")
