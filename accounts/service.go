package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	userRepo    UserRepository
	sessionRepo SessionRepository
	usernames   *usernameIndex
	now         func() time.Time
}

func NewService(userRepo UserRepository, sessionRepo SessionRepository) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		now:         time.Now,
	}
}

// LoadUsernames seeds the username index used to skip lookups for names
// that were never registered.
func (svc *Service) LoadUsernames(ctx context.Context, minCapacity uint, falsePositiveRate float64) error {
	usernames, err := svc.userRepo.ListUsernames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list usernames: %w", err)
	}

	idx := newUsernameIndex(max(uint(len(usernames)), minCapacity), falsePositiveRate)
	for _, u := range usernames {
		idx.add(normalizeUsername(u))
	}

	svc.usernames = idx

	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Register creates the user and opens a session for it.
func (svc *Service) Register(ctx context.Context, username, password string) (*User, *Session, error) {
	username = strings.TrimSpace(username)

	err := validateRegistration(username, password)
	if err != nil {
		return nil, nil, err
	}

	if svc.usernames != nil && svc.usernames.mayContain(normalizeUsername(username)) {
		_, err := svc.userRepo.FindByUsername(ctx, username)
		if err == nil {
			return nil, nil, &UserAlreadyExistsError{Username: username}
		}

		var notFoundErr *UserByUsernameNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, nil, fmt.Errorf("failed to check username: %w", err)
		}
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		RegisteredAt: svc.now().UTC(),
	}

	err = svc.userRepo.Insert(ctx, user)
	if err != nil {
		var alreadyExistsErr *UserAlreadyExistsError
		if errors.As(err, &alreadyExistsErr) {
			svc.rememberUsername(username)

			return nil, nil, alreadyExistsErr
		}

		return nil, nil, fmt.Errorf("failed to register user: %w", err)
	}

	svc.rememberUsername(username)

	session, err := svc.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	user.PasswordHash = ""

	return user, session, nil
}

func (svc *Service) rememberUsername(username string) {
	if svc.usernames != nil {
		svc.usernames.add(normalizeUsername(username))
	}
}

func (svc *Service) Login(ctx context.Context, username, password string) (*User, *Session, error) {
	user, err := svc.userRepo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		var notFoundErr *UserByUsernameNotFoundError
		if errors.As(err, &notFoundErr) {
			return nil, nil, ErrInvalidCredentials
		}

		return nil, nil, fmt.Errorf("failed to find user by username: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil, ErrInvalidCredentials
		}

		return nil, nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	session, err := svc.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	user.PasswordHash = ""

	return user, session, nil
}

func (svc *Service) openSession(ctx context.Context, userID string) (*Session, error) {
	now := svc.now().UTC()

	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(defaultSessionDuration),
	}

	err := svc.sessionRepo.Insert(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (svc *Service) Logout(ctx context.Context, sessionID string) error {
	err := svc.sessionRepo.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// GetSession returns a live session. Expired sessions are removed.
func (svc *Service) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := svc.sessionRepo.Find(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if session.Expired(svc.now()) {
		err = svc.sessionRepo.Delete(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}

		return nil, &SessionExpiredError{ID: sessionID}
	}

	return session, nil
}

// PurgeExpiredSessions drops sessions that can no longer be used and returns
// how many were removed.
func (svc *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := svc.sessionRepo.DeleteExpired(ctx, svc.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	return n, nil
}

func (svc *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	user, err := svc.userRepo.Find(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}

	user.PasswordHash = ""

	return user, nil
}

// GetUsers returns the users keyed by id. Unknown ids are left out.
func (svc *Service) GetUsers(ctx context.Context, userIDs []string) (map[string]*User, error) {
	if len(userIDs) == 0 {
		return map[string]*User{}, nil
	}

	users, err := svc.userRepo.FindMany(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}

	for _, u := range users {
		u.PasswordHash = ""
	}

	return users, nil
}

func (svc *Service) GetCurrentUser(ctx context.Context) (*User, error) {
	sub := GetSubject(ctx)
	if sub == Anonymous {
		return nil, ErrCurrentUserNotFound
	}

	return svc.GetUser(ctx, sub)
}
