package contents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/karma/feed"
)

type Service struct {
	postRepo PostRepository
	now      func() time.Time
}

func NewService(postRepo PostRepository) *Service {
	return &Service{
		postRepo: postRepo,
		now:      time.Now,
	}
}

type CreatePostRequest struct {
	AuthorID string
	Content  string
}

func (svc *Service) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	err := feed.ValidatePostContent(req.Content)
	if err != nil {
		return nil, err
	}

	post := &Post{
		ID:        uuid.NewString(),
		AuthorID:  req.AuthorID,
		Content:   req.Content,
		CreatedAt: svc.now().UTC(),
	}

	err = svc.postRepo.Insert(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return post, nil
}

func (svc *Service) GetPost(ctx context.Context, postID string) (*Post, error) {
	post, err := svc.postRepo.Find(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}

	return post, nil
}

// ListPosts returns every post, newest first.
func (svc *Service) ListPosts(ctx context.Context) ([]*Post, error) {
	posts, err := svc.postRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, nil
}

func (svc *Service) DeletePost(ctx context.Context, postID, userID string) error {
	post, err := svc.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	if post.AuthorID != userID {
		return ErrNotPostAuthor
	}

	err = svc.postRepo.Delete(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}
