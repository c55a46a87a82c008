package accounts_test

import (
	"testing"

	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/db/sqlite3"
	"github.com/nasermirzaei89/karma/db/sqlite3/sqlite3test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *accounts.Service {
	t.Helper()

	db := sqlite3test.New(t)
	svc := accounts.NewService(sqlite3.NewUserRepository(db), sqlite3.NewSessionRepository(db))
	require.NoError(t, svc.LoadUsernames(t.Context(), 100, 0.01))

	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := t.Context()

	user, session, err := svc.Register(ctx, "  ana ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, user.ID, session.UserID)
	assert.True(t, session.ExpiresAt.After(session.CreatedAt))

	loggedIn, loginSession, err := svc.Login(ctx, "ana", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEqual(t, session.ID, loginSession.ID)

	_, _, err = svc.Login(ctx, "ana", "wrong-password")
	require.ErrorIs(t, err, accounts.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "correct-horse")
	require.ErrorIs(t, err, accounts.ErrInvalidCredentials)
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := t.Context()

	_, _, err := svc.Register(ctx, "ana", "correct-horse")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "ana", "another-pass")

	var existsErr *accounts.UserAlreadyExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, "ana", existsErr.Username)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		password string
		fields   []string
	}{
		{name: "short username", username: "al", password: "correct-horse", fields: []string{"username"}},
		{name: "bad characters", username: "a b c", password: "correct-horse", fields: []string{"username"}},
		{name: "short password", username: "ana", password: "short", fields: []string{"password"}},
		{name: "both missing", username: "", password: "", fields: []string{"username", "password"}},
	}

	svc := newService(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(t.Context(), tt.username, tt.password)

			var invalidErr *accounts.InvalidRegistrationError
			require.ErrorAs(t, err, &invalidErr)

			for _, field := range tt.fields {
				assert.Contains(t, invalidErr.Fields, field)
			}

			assert.Len(t, invalidErr.Fields, len(tt.fields))
		})
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := t.Context()

	user, session, err := svc.Register(ctx, "ana", "correct-horse")
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)

	current, err := svc.GetCurrentUser(accounts.WithSubject(ctx, user.ID))
	require.NoError(t, err)
	assert.Equal(t, "ana", current.Username)
	assert.Empty(t, current.PasswordHash)

	_, err = svc.GetCurrentUser(ctx)
	require.ErrorIs(t, err, accounts.ErrCurrentUserNotFound)

	require.NoError(t, svc.Logout(ctx, session.ID))

	_, err = svc.GetSession(ctx, session.ID)

	var notFoundErr *accounts.SessionNotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestGetUsers(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := t.Context()

	ana, _, err := svc.Register(ctx, "ana", "correct-horse")
	require.NoError(t, err)

	users, err := svc.GetUsers(ctx, []string{ana.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Empty(t, users[ana.ID].PasswordHash)

	users, err = svc.GetUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSubject(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	assert.Equal(t, accounts.Anonymous, accounts.GetSubject(ctx))
	assert.False(t, accounts.IsAuthenticated(ctx))

	ctx = accounts.WithSubject(ctx, "u1")
	assert.Equal(t, "u1", accounts.GetSubject(ctx))
	assert.True(t, accounts.IsAuthenticated(ctx))

	_, ok := accounts.SessionIDFromContext(ctx)
	assert.False(t, ok)

	sessionID, ok := accounts.SessionIDFromContext(accounts.WithSessionID(ctx, "s1"))
	assert.True(t, ok)
	assert.Equal(t, "s1", sessionID)
}
