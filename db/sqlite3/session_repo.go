package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/nasermirzaei89/karma/accounts"
)

const (
	tableSessions = "sessions"

	sessionFieldID        = "id"
	sessionFieldUserID    = "user_id"
	sessionFieldCreatedAt = "created_at"
	sessionFieldExpiresAt = "expires_at"
)

type SessionRepository struct {
	db *sql.DB
}

var _ accounts.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row sq.RowScanner) (*accounts.Session, error) {
	var s accounts.Session

	err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	s.CreatedAt = s.CreatedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()

	return &s, nil
}

func (repo *SessionRepository) Insert(ctx context.Context, session *accounts.Session) error {
	_, err := sq.Insert(tableSessions).
		SetMap(map[string]any{
			sessionFieldID:        session.ID,
			sessionFieldUserID:    session.UserID,
			sessionFieldCreatedAt: session.CreatedAt.UTC(),
			sessionFieldExpiresAt: session.ExpiresAt.UTC(),
		}).
		RunWith(repo.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

func (repo *SessionRepository) Find(ctx context.Context, id string) (*accounts.Session, error) {
	row := sq.Select(sessionFieldID, sessionFieldUserID, sessionFieldCreatedAt, sessionFieldExpiresAt).
		From(tableSessions).
		Where(sq.Eq{sessionFieldID: id}).
		RunWith(repo.db).
		QueryRowContext(ctx)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &accounts.SessionNotFoundError{ID: id}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

func (repo *SessionRepository) Delete(ctx context.Context, id string) error {
	n, err := repo.delete(ctx, sq.Eq{sessionFieldID: id})
	if err != nil {
		return err
	}

	if n == 0 {
		return &accounts.SessionNotFoundError{ID: id}
	}

	return nil
}

// DeleteExpired removes every session that expired at or before now.
func (repo *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return repo.delete(ctx, sq.LtOrEq{sessionFieldExpiresAt: now.UTC()})
}

func (repo *SessionRepository) delete(ctx context.Context, pred sq.Sqlizer) (int64, error) {
	result, err := sq.Delete(tableSessions).Where(pred).RunWith(repo.db).ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}
