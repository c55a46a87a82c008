package sqlite3

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/leaderboard"
	"github.com/nasermirzaei89/karma/reactions"
)

const tableLikes = "likes"

type LikeRepository struct {
	db *sql.DB
}

var (
	_ reactions.LikeRepository = (*LikeRepository)(nil)
	_ leaderboard.Repository   = (*LikeRepository)(nil)
)

func NewLikeRepository(db *sql.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

const (
	likeFieldTargetType     = "target_type"
	likeFieldTargetID       = "target_id"
	likeFieldUserID         = "user_id"
	likeFieldTargetAuthorID = "target_author_id"
	likeFieldCreatedAt      = "created_at"
)

func likeColumns() []string {
	return []string{
		likeFieldTargetType,
		likeFieldTargetID,
		likeFieldUserID,
		likeFieldTargetAuthorID,
		likeFieldCreatedAt,
	}
}

func (repo *LikeRepository) Insert(ctx context.Context, like *reactions.Like) (bool, error) {
	q := sq.Insert(tableLikes).
		Options("OR IGNORE").
		Columns(likeColumns()...).
		Values(like.TargetType, like.TargetID, like.UserID, like.TargetAuthorID, like.CreatedAt)

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to exec insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (repo *LikeRepository) Delete(
	ctx context.Context,
	targetType reactions.TargetType,
	targetID string,
	userID string,
) (bool, error) {
	q := sq.Delete(tableLikes).
		Where(sq.Eq{
			likeFieldTargetType: targetType,
			likeFieldTargetID:   targetID,
			likeFieldUserID:     userID,
		})

	q = q.RunWith(repo.db)

	result, err := q.ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to exec delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (repo *LikeRepository) CountByTargets(
	ctx context.Context,
	targetType reactions.TargetType,
	targetIDs []string,
) (map[string]int, error) {
	q := sq.Select(likeFieldTargetID, "COUNT(*)").
		From(tableLikes).
		Where(sq.Eq{likeFieldTargetType: targetType, likeFieldTargetID: targetIDs}).
		GroupBy(likeFieldTargetID)

	q = q.RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer closeRows(ctx, rows)

	counts := make(map[string]int, len(targetIDs))

	for rows.Next() {
		var (
			targetID string
			count    int
		)

		err = rows.Scan(&targetID, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		counts[targetID] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return counts, nil
}

func (repo *LikeRepository) ListLikedTargets(
	ctx context.Context,
	userID string,
	targetType reactions.TargetType,
	targetIDs []string,
) (map[string]bool, error) {
	q := sq.Select(likeFieldTargetID).
		From(tableLikes).
		Where(sq.Eq{
			likeFieldUserID:     userID,
			likeFieldTargetType: targetType,
			likeFieldTargetID:   targetIDs,
		})

	q = q.RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer closeRows(ctx, rows)

	liked := make(map[string]bool)

	for rows.Next() {
		var targetID string

		err = rows.Scan(&targetID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		liked[targetID] = true
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return liked, nil
}

var (
	postLikesExpr    = fmt.Sprintf("SUM(CASE WHEN %s = '%s' THEN 1 ELSE 0 END)", likeFieldTargetType, reactions.TargetTypePost)
	commentLikesExpr = fmt.Sprintf("SUM(CASE WHEN %s = '%s' THEN 1 ELSE 0 END)", likeFieldTargetType, reactions.TargetTypeComment)
	karmaExpr        = fmt.Sprintf(
		"SUM(CASE WHEN %s = '%s' THEN %d ELSE %d END)",
		likeFieldTargetType,
		reactions.TargetTypePost,
		feed.PostLikeKarma,
		feed.CommentLikeKarma,
	)
)

func (repo *LikeRepository) KarmaByAuthors(ctx context.Context, authorIDs []string) (map[string]int, error) {
	q := sq.Select(likeFieldTargetAuthorID, karmaExpr).
		From(tableLikes).
		Where(sq.Eq{likeFieldTargetAuthorID: authorIDs}).
		GroupBy(likeFieldTargetAuthorID)

	q = q.RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer closeRows(ctx, rows)

	karma := make(map[string]int, len(authorIDs))

	for rows.Next() {
		var (
			authorID string
			sum      int
		)

		err = rows.Scan(&authorID, &sum)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		karma[authorID] = sum
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return karma, nil
}

func (repo *LikeRepository) TopAuthors(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]feed.LeaderboardEntry, error) {
	query := sq.Select(
		"l."+likeFieldTargetAuthorID,
		"u."+userFieldUsername,
		postLikesExpr+" AS post_likes",
		commentLikesExpr+" AS comment_likes",
		karmaExpr+" AS karma",
	).
		From(tableLikes+" l").
		Join(tableUsers+" u ON u."+userFieldID+" = l."+likeFieldTargetAuthorID).
		Where(sq.GtOrEq{"l." + likeFieldCreatedAt: since.UTC()}).
		GroupBy("l."+likeFieldTargetAuthorID, "u."+userFieldUsername).
		OrderBy("karma DESC", "u."+userFieldUsername+" ASC").
		Limit(uint64(max(limit, 0)))

	query = query.RunWith(repo.db)

	rows, err := query.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer closeRows(ctx, rows)

	entries := make([]feed.LeaderboardEntry, 0, limit)

	for rows.Next() {
		var entry feed.LeaderboardEntry

		err = rows.Scan(&entry.UserID, &entry.Username, &entry.PostLikes24h, &entry.CommentLikes24h, &entry.DailyKarma)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return entries, nil
}
