package discuss

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/karma/feed"
)

type Service struct {
	commentRepo CommentRepository
	now         func() time.Time
}

func NewService(commentRepo CommentRepository) *Service {
	return &Service{
		commentRepo: commentRepo,
		now:         time.Now,
	}
}

type CreateCommentRequest struct {
	PostID   string
	AuthorID string
	Content  string
	ParentID string
}

func (svc *Service) CreateComment(ctx context.Context, req CreateCommentRequest) (*Comment, error) {
	err := feed.ValidateCommentContent(req.Content)
	if err != nil {
		return nil, err
	}

	var parentID *string

	if req.ParentID != "" {
		err = svc.checkParent(ctx, req.PostID, req.ParentID)
		if err != nil {
			return nil, err
		}

		parentID = &req.ParentID
	}

	comment := &Comment{
		ID:        uuid.NewString(),
		PostID:    req.PostID,
		AuthorID:  req.AuthorID,
		ParentID:  parentID,
		Content:   req.Content,
		CreatedAt: svc.now().UTC(),
	}

	err = svc.commentRepo.Insert(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}

	return comment, nil
}

func (svc *Service) checkParent(ctx context.Context, postID, parentID string) error {
	parent, err := svc.GetComment(ctx, parentID)
	if err != nil {
		return err
	}

	if parent.PostID != postID {
		return &ParentMismatchError{ParentID: parentID, PostID: postID}
	}

	depth, err := svc.depth(ctx, parent)
	if err != nil {
		return err
	}

	if !feed.CanReply(depth) {
		return ErrThreadTooDeep
	}

	return nil
}

// depth counts the ancestors of c, stopping once replies are no longer allowed.
func (svc *Service) depth(ctx context.Context, c *Comment) (int, error) {
	depth := 0

	for c.ParentID != nil && depth < feed.MaxDepth {
		parent, err := svc.GetComment(ctx, *c.ParentID)
		if err != nil {
			return 0, err
		}

		c = parent
		depth++
	}

	return depth, nil
}

func (svc *Service) GetComment(ctx context.Context, commentID string) (*Comment, error) {
	comment, err := svc.commentRepo.Find(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}

	return comment, nil
}

// ListComments returns the comments of the given posts, oldest first.
func (svc *Service) ListComments(ctx context.Context, postIDs ...string) ([]*Comment, error) {
	if len(postIDs) == 0 {
		return []*Comment{}, nil
	}

	comments, err := svc.commentRepo.List(ctx, &ListCommentsParams{PostIDs: postIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

func (svc *Service) DeleteComment(ctx context.Context, commentID, userID string) error {
	comment, err := svc.GetComment(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.AuthorID != userID {
		return ErrNotCommentAuthor
	}

	err = svc.commentRepo.Delete(ctx, commentID)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	return nil
}
