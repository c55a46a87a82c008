package contents_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/db/sqlite3"
	"github.com/nasermirzaei89/karma/db/sqlite3/sqlite3test"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	t.Parallel()

	db := sqlite3test.New(t)
	ctx := t.Context()

	users := sqlite3.NewUserRepository(db)
	ana := &accounts.User{ID: uuid.NewString(), Username: "ana", PasswordHash: "x", RegisteredAt: time.Now()}
	bo := &accounts.User{ID: uuid.NewString(), Username: "bo", PasswordHash: "x", RegisteredAt: time.Now()}
	require.NoError(t, users.Insert(ctx, ana))
	require.NoError(t, users.Insert(ctx, bo))

	svc := contents.NewService(sqlite3.NewPostRepository(db))

	t.Run("rejects invalid content", func(t *testing.T) {
		for _, content := range []string{"", "   \n", strings.Repeat("a", feed.MaxPostLength+1)} {
			_, err := svc.CreatePost(ctx, contents.CreatePostRequest{AuthorID: ana.ID, Content: content})

			var validationErr *feed.ValidationError
			require.ErrorAs(t, err, &validationErr)
		}
	})

	first, err := svc.CreatePost(ctx, contents.CreatePostRequest{AuthorID: ana.ID, Content: "first"})
	require.NoError(t, err)

	second, err := svc.CreatePost(ctx, contents.CreatePostRequest{AuthorID: ana.ID, Content: "second"})
	require.NoError(t, err)

	posts, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, first.ID, posts[1].ID)

	got, err := svc.GetPost(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Content)

	err = svc.DeletePost(ctx, first.ID, bo.ID)
	require.ErrorIs(t, err, contents.ErrNotPostAuthor)

	require.NoError(t, svc.DeletePost(ctx, first.ID, ana.ID))

	var notFoundErr *contents.PostNotFoundError
	require.ErrorAs(t, svc.DeletePost(ctx, first.ID, ana.ID), &notFoundErr)
}
