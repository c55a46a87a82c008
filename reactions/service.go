package reactions

import (
	"context"
	"fmt"
	"time"
)

type Service struct {
	likeRepo LikeRepository
	now      func() time.Time
}

func NewService(likeRepo LikeRepository) *Service {
	return &Service{
		likeRepo: likeRepo,
		now:      time.Now,
	}
}

type Target struct {
	Type     TargetType
	ID       string
	AuthorID string
}

type ToggleResult struct {
	Liked     bool
	LikeCount int
}

// ToggleLike removes the user's like on the target, or adds one when there
// was none.
func (svc *Service) ToggleLike(ctx context.Context, target Target, userID string) (*ToggleResult, error) {
	if !target.Type.IsValid() {
		return nil, InvalidTargetTypeError{TargetType: target.Type}
	}

	deleted, err := svc.likeRepo.Delete(ctx, target.Type, target.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove like: %w", err)
	}

	liked := false

	if !deleted {
		_, err = svc.likeRepo.Insert(ctx, &Like{
			TargetType:     target.Type,
			TargetID:       target.ID,
			UserID:         userID,
			TargetAuthorID: target.AuthorID,
			CreatedAt:      svc.now().UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add like: %w", err)
		}

		liked = true
	}

	counts, err := svc.LikeCounts(ctx, target.Type, target.ID)
	if err != nil {
		return nil, err
	}

	return &ToggleResult{Liked: liked, LikeCount: counts[target.ID]}, nil
}

func (svc *Service) LikeCounts(ctx context.Context, targetType TargetType, targetIDs ...string) (map[string]int, error) {
	if len(targetIDs) == 0 {
		return map[string]int{}, nil
	}

	counts, err := svc.likeRepo.CountByTargets(ctx, targetType, targetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	return counts, nil
}

// LikedBy reports which of the targets the user likes. An empty userID
// likes nothing.
func (svc *Service) LikedBy(
	ctx context.Context,
	userID string,
	targetType TargetType,
	targetIDs ...string,
) (map[string]bool, error) {
	if userID == "" || len(targetIDs) == 0 {
		return map[string]bool{}, nil
	}

	liked, err := svc.likeRepo.ListLikedTargets(ctx, userID, targetType, targetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked targets: %w", err)
	}

	return liked, nil
}

// Karma returns the all-time karma each author has received.
func (svc *Service) Karma(ctx context.Context, authorIDs ...string) (map[string]int, error) {
	if len(authorIDs) == 0 {
		return map[string]int{}, nil
	}

	karma, err := svc.likeRepo.KarmaByAuthors(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to sum karma: %w", err)
	}

	return karma, nil
}
