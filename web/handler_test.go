package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/backend"
	"github.com/nasermirzaei89/karma/backend/httpapi"
	"github.com/nasermirzaei89/karma/client"
	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/db/sqlite3"
	"github.com/nasermirzaei89/karma/db/sqlite3/sqlite3test"
	"github.com/nasermirzaei89/karma/discuss"
	"github.com/nasermirzaei89/karma/drafts"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/leaderboard"
	"github.com/nasermirzaei89/karma/metrics"
	"github.com/nasermirzaei89/karma/optimistic"
	"github.com/nasermirzaei89/karma/reactions"
	"github.com/nasermirzaei89/karma/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const password = "correct-horse"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	db := sqlite3test.New(t)
	likeRepo := sqlite3.NewLikeRepository(db)
	reg := prometheus.NewRegistry()

	h := web.NewHandler(
		accounts.NewService(sqlite3.NewUserRepository(db), sqlite3.NewSessionRepository(db)),
		contents.NewService(sqlite3.NewPostRepository(db)),
		discuss.NewService(sqlite3.NewCommentRepository(db)),
		reactions.NewService(likeRepo),
		leaderboard.NewService(likeRepo, 0),
		sessions.NewCookieStore(securecookie.GenerateRandomKey(32)),
		"sessionid",
		metrics.NewHTTP(reg),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *client.Client {
	t.Helper()

	api, err := httpapi.New(srv.URL, &http.Client{})
	require.NoError(t, err)

	c := client.New(api, nil)
	require.NoError(t, c.Start(t.Context()))

	return c
}

func registered(t *testing.T, srv *httptest.Server, username string) *client.Client {
	t.Helper()

	c := newClient(t, srv)

	_, err := c.Register(t.Context(), username, password)
	require.NoError(t, err)
	require.True(t, c.Session().Authenticated)

	return c
}

func TestFeedFlow(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	ctx := t.Context()

	ana := registered(t, srv, "ana")
	bo := registered(t, srv, "bo")

	post, err := ana.CreatePost(ctx, "hello karma")
	require.NoError(t, err)
	assert.Equal(t, "ana", post.Author.Username)

	require.NoError(t, bo.Refresh(ctx))
	require.Len(t, bo.Posts(), 1)

	phase, err := bo.LikePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, optimistic.PhaseCommitted, phase)

	liked, ok := bo.Post(post.ID)
	require.True(t, ok)
	assert.Equal(t, feed.LikeState{HasLiked: true, LikeCount: 1}, liked.LikeState())
	assert.Equal(t, feed.PostLikeKarma, liked.Author.TotalKarma())

	require.NoError(t, ana.Refresh(ctx))

	seen, ok := ana.Post(post.ID)
	require.True(t, ok)
	assert.Equal(t, feed.LikeState{HasLiked: false, LikeCount: 1}, seen.LikeState())

	board := ana.Leaderboard()
	require.Len(t, board, 1)
	assert.Equal(t, feed.LeaderboardEntry{
		UserID:       post.Author.ID,
		Username:     "ana",
		PostLikes24h: 1,
		DailyKarma:   feed.PostLikeKarma,
	}, board[0])

	bo.Drafts().Set(drafts.PostKey(post.ID), "nice one")

	comment, err := bo.SubmitComment(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, comment.PostID)
	assert.Nil(t, comment.ParentID)

	require.NoError(t, ana.Refresh(ctx))

	ana.Drafts().Set(drafts.CommentKey(comment.ID), "thanks")

	reply, err := ana.SubmitReply(ctx, post.ID, comment.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, comment.ID, *reply.ParentID)
	assert.Equal(t, 1, reply.Depth)

	phase, err = ana.LikeComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.Equal(t, optimistic.PhaseCommitted, phase)

	require.NoError(t, bo.Refresh(ctx))

	withComments, ok := bo.Post(post.ID)
	require.True(t, ok)
	assert.Equal(t, 2, withComments.CommentCount)
	require.Len(t, withComments.Comments, 1)
	assert.Equal(t, 1, withComments.Comments[0].LikeCount)

	board = bo.Leaderboard()
	require.Len(t, board, 2)
	assert.Equal(t, "ana", board[0].Username)
	assert.Equal(t, feed.PostLikeKarma, board[0].DailyKarma)
	assert.Equal(t, "bo", board[1].Username)
	assert.Equal(t, 1, board[1].CommentLikes24h)
	assert.Equal(t, feed.CommentLikeKarma, board[1].DailyKarma)

	phase, err = bo.DeleteComment(ctx, reply.ID)
	require.Error(t, err)
	assert.Equal(t, optimistic.PhaseRolledBack, phase)

	phase, err = ana.DeletePost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, optimistic.PhaseCommitted, phase)
	assert.Empty(t, ana.Posts())

	require.NoError(t, bo.Refresh(ctx))
	assert.Empty(t, bo.Posts())
	assert.Empty(t, bo.Leaderboard())
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	ctx := t.Context()

	registered(t, srv, "ana")

	c := newClient(t, srv)
	assert.False(t, c.Session().Authenticated)

	_, err := c.Login(ctx, "ana", "wrong-password")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")

	user, err := c.Login(ctx, "ana", password)
	require.NoError(t, err)
	assert.Equal(t, "ana", user.Username)

	api, err := httpapi.New(srv.URL, &http.Client{})
	require.NoError(t, err)

	_, err = api.CurrentUser(ctx)
	require.ErrorIs(t, err, backend.ErrNotAuthenticated)

	require.NoError(t, c.Logout(ctx))
	assert.False(t, c.Session().Authenticated)

	_, err = c.CreatePost(ctx, "after logout")
	require.Error(t, err)
}

func TestReplyDepthLimit(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	ctx := t.Context()

	ana := registered(t, srv, "ana")

	post, err := ana.CreatePost(ctx, "deep")
	require.NoError(t, err)

	ana.Drafts().Set(drafts.PostKey(post.ID), "level 0")

	parent, err := ana.SubmitComment(ctx, post.ID)
	require.NoError(t, err)

	for depth := 1; depth < feed.MaxDepth; depth++ {
		ana.Drafts().Set(drafts.CommentKey(parent.ID), "deeper")

		parent, err = ana.SubmitReply(ctx, post.ID, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, depth, parent.Depth)
	}

	assert.False(t, ana.ReplyAvailability(parent.ID).Allowed)

	ana.Drafts().Set(drafts.CommentKey(parent.ID), "too deep")

	_, err = ana.SubmitReply(ctx, post.ID, parent.ID)
	require.ErrorIs(t, err, client.ErrThreadTooDeep)
}

type rawClient struct {
	t    *testing.T
	srv  *httptest.Server
	http *http.Client
}

func newRawClient(t *testing.T, srv *httptest.Server) *rawClient {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &rawClient{t: t, srv: srv, http: &http.Client{Jar: jar}}
}

func (c *rawClient) do(method, path string, body any, headers map[string]string) (int, map[string]any) {
	c.t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(c.t.Context(), method, c.srv.URL+path, reader)
	require.NoError(c.t, err)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out))
	}

	return resp.StatusCode, out
}

func (c *rawClient) csrfToken() string {
	c.t.Helper()

	for _, cookie := range c.http.Jar.Cookies(mustParse(c.t, c.srv.URL)) {
		if cookie.Name == "csrftoken" {
			return cookie.Value
		}
	}

	return ""
}

func TestAPIErrors(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := newRawClient(t, srv)

	status, body := c.do(http.MethodPost, "/api/posts/", map[string]string{"content": "hi"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication credentials were not provided.", body["detail"])

	status, _ = c.do(http.MethodGet, "/api/auth/user/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = c.do(http.MethodPost, "/api/auth/login/", map[string]string{"username": "ana"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Please provide both username and password", body["error"])

	status, body = c.do(http.MethodPost, "/api/auth/register/", map[string]string{"username": "ana", "password": password}, nil)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User registered successfully", body["message"])

	token := c.csrfToken()
	require.NotEmpty(t, token)

	status, body = c.do(http.MethodPost, "/api/posts/", map[string]string{"content": "hi"}, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body["detail"], "CSRF")

	withToken := map[string]string{"X-CSRFToken": token}

	status, body = c.do(http.MethodPost, "/api/auth/register/", map[string]string{"username": "ana", "password": password}, withToken)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "A user with that username already exists.", body["error"])

	status, body = c.do(http.MethodPost, "/api/posts/", map[string]string{"content": "  "}, withToken)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "post cannot be empty", body["error"])

	status, body = c.do(http.MethodPost, "/api/posts/", map[string]string{"content": "hi"}, withToken)
	require.Equal(t, http.StatusCreated, status)

	postID, _ := body["id"].(string)
	require.NotEmpty(t, postID)

	status, _ = c.do(http.MethodPost, "/api/posts/missing/like/", nil, withToken)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = c.do(http.MethodPost, "/api/posts/"+postID+"/like/", nil, withToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["liked"])
	assert.Equal(t, "Post liked", body["message"])
	assert.InDelta(t, feed.PostLikeKarma, body["author_karma"], 0)

	status, body = c.do(http.MethodPost, "/api/posts/"+postID+"/like/", nil, withToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Post unliked", body["message"])
	assert.InDelta(t, 0, body["like_count"], 0)

	status, _ = c.do(http.MethodPost, "/api/comments/", map[string]any{"post": postID, "parent": "missing", "content": "x"}, withToken)
	assert.Equal(t, http.StatusNotFound, status)

	other := newRawClient(t, srv)
	status, _ = other.do(http.MethodPost, "/api/auth/register/", map[string]string{"username": "bo", "password": password}, nil)
	require.Equal(t, http.StatusCreated, status)

	status, _ = other.do(http.MethodDelete, "/api/posts/"+postID+"/", nil, map[string]string{"X-CSRFToken": other.csrfToken()})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = c.do(http.MethodPost, "/api/auth/logout/", nil, withToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logout successful", body["message"])

	status, _ = c.do(http.MethodGet, "/api/auth/user/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := newRawClient(t, srv)

	status, _ := c.do(http.MethodGet, "/api/feed/", nil, nil)
	require.Equal(t, http.StatusOK, status)

	resp, err := c.http.Get(srv.URL + "/metrics") //nolint:noctx
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `route="GET /api/feed/"`), string(raw))
}
