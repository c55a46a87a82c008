package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/reactions"
)

const tablePosts = "posts"

type PostRepository struct {
	db *sql.DB
}

var _ contents.PostRepository = (*PostRepository)(nil)

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

const (
	postFieldID        = "id"
	postFieldAuthorID  = "author_id"
	postFieldContent   = "content"
	postFieldCreatedAt = "created_at"
)

func postColumns() []string {
	return []string{
		postFieldID,
		postFieldAuthorID,
		postFieldContent,
		postFieldCreatedAt,
	}
}

func scanPost(row sq.RowScanner) (*contents.Post, error) {
	var post contents.Post

	err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Content,
		&post.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &post, nil
}

func (repo *PostRepository) Insert(ctx context.Context, post *contents.Post) error {
	q := sq.Insert(tablePosts).
		Columns(postColumns()...).
		Values(post.ID, post.AuthorID, post.Content, post.CreatedAt)

	q = q.RunWith(repo.db)

	_, err := q.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to exec insert: %w", err)
	}

	return nil
}

func (repo *PostRepository) Find(ctx context.Context, postID string) (*contents.Post, error) {
	q := sq.Select(postColumns()...).
		From(tablePosts).
		Where(sq.Eq{postFieldID: postID})

	q = q.RunWith(repo.db)

	post, err := scanPost(q.QueryRowContext(ctx))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &contents.PostNotFoundError{ID: postID}
		}

		return nil, fmt.Errorf("failed to scan post: %w", err)
	}

	return post, nil
}

func (repo *PostRepository) List(ctx context.Context) ([]*contents.Post, error) {
	q := sq.Select(postColumns()...).
		From(tablePosts).
		OrderBy(postFieldCreatedAt+" DESC", "rowid DESC")

	q = q.RunWith(repo.db)

	rows, err := q.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer closeRows(ctx, rows)

	posts := make([]*contents.Post, 0)

	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}

		posts = append(posts, post)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return posts, nil
}

func (repo *PostRepository) Delete(ctx context.Context, postID string) error {
	return inTx(ctx, repo.db, func(tx *sql.Tx) error {
		commentIDs := sq.Select(commentFieldID).
			From(tableComments).
			Where(sq.Eq{commentFieldPostID: postID})

		commentIDsSQL, commentIDsArgs, err := commentIDs.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build comment ids query: %w", err)
		}

		likes := sq.Delete(tableLikes).
			Where(sq.Or{
				sq.Eq{likeFieldTargetType: reactions.TargetTypePost, likeFieldTargetID: postID},
				sq.And{
					sq.Eq{likeFieldTargetType: reactions.TargetTypeComment},
					sq.Expr(likeFieldTargetID+" IN ("+commentIDsSQL+")", commentIDsArgs...),
				},
			})

		_, err = likes.RunWith(tx).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete likes: %w", err)
		}

		result, err := sq.Delete(tablePosts).
			Where(sq.Eq{postFieldID: postID}).
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to exec delete: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if rowsAffected == 0 {
			return &contents.PostNotFoundError{ID: postID}
		}

		return nil
	})
}
