package reactions

import (
	"context"
	"fmt"
	"time"

	"github.com/nasermirzaei89/karma/feed"
)

type TargetType string

const (
	TargetTypePost    TargetType = "post"
	TargetTypeComment TargetType = "comment"
)

func (targetType TargetType) IsValid() bool {
	switch targetType {
	case TargetTypePost, TargetTypeComment:
		return true
	default:
		return false
	}
}

// Karma is what the target's author earns for one like on it.
func (targetType TargetType) Karma() int {
	if targetType == TargetTypePost {
		return feed.PostLikeKarma
	}

	return feed.CommentLikeKarma
}

// Like is one user's like on a post or comment. TargetAuthorID is kept on
// the like so karma can be summed without joining the target tables.
type Like struct {
	TargetType     TargetType
	TargetID       string
	UserID         string
	TargetAuthorID string
	CreatedAt      time.Time
}

type LikeRepository interface {
	// Insert reports false when the user already likes the target.
	Insert(ctx context.Context, like *Like) (inserted bool, err error)
	// Delete reports false when there was nothing to remove.
	Delete(ctx context.Context, targetType TargetType, targetID, userID string) (deleted bool, err error)
	CountByTargets(ctx context.Context, targetType TargetType, targetIDs []string) (counts map[string]int, err error)
	ListLikedTargets(
		ctx context.Context,
		userID string,
		targetType TargetType,
		targetIDs []string,
	) (liked map[string]bool, err error)
	KarmaByAuthors(ctx context.Context, authorIDs []string) (karma map[string]int, err error)
}

type InvalidTargetTypeError struct {
	TargetType TargetType
}

func (err InvalidTargetTypeError) Error() string {
	return fmt.Sprintf("invalid target type: %q", err.TargetType)
}
