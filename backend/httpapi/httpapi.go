// Package httpapi implements backend.API over the JSON HTTP routes of the
// karma server. The session lives in a cookie jar.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/nasermirzaei89/karma/backend"
	"github.com/nasermirzaei89/karma/feed"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultTimeout = 10 * time.Second

	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
)

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ backend.API = (*Client)(nil)

// New returns a client for the server at baseURL. When httpClient is nil a
// client with a fresh cookie jar is used; a given client without a jar gets one.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	if httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}

		clone := *httpClient
		clone.Jar = jar
		httpClient = &clone
	}

	return &Client{baseURL: u, httpClient: httpClient}, nil
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type userBody struct {
	User    feed.User `json:"user"`
	Message string    `json:"message"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Feed(ctx context.Context) ([]feed.Post, error) {
	var posts []feed.Post

	err := c.do(ctx, http.MethodGet, "api/feed/", nil, &posts)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	if posts == nil {
		posts = []feed.Post{}
	}

	return posts, nil
}

func (c *Client) Leaderboard(ctx context.Context) ([]feed.LeaderboardEntry, error) {
	var entries []feed.LeaderboardEntry

	err := c.do(ctx, http.MethodGet, "api/leaderboard/", nil, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	if entries == nil {
		entries = []feed.LeaderboardEntry{}
	}

	return entries, nil
}

func (c *Client) CreatePost(ctx context.Context, req backend.CreatePostRequest) (*feed.Post, error) {
	var post feed.Post

	err := c.do(ctx, http.MethodPost, "api/posts/", req, &post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return &post, nil
}

func (c *Client) CreateComment(ctx context.Context, req backend.CreateCommentRequest) (*feed.Comment, error) {
	var comment feed.Comment

	err := c.do(ctx, http.MethodPost, "api/comments/", req, &comment)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	return &comment, nil
}

func (c *Client) DeletePost(ctx context.Context, postID feed.ID) error {
	err := c.do(ctx, http.MethodDelete, "api/posts/"+url.PathEscape(postID.String())+"/", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	return nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID feed.ID) error {
	err := c.do(ctx, http.MethodDelete, "api/comments/"+url.PathEscape(commentID.String())+"/", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	return nil
}

func (c *Client) LikePost(ctx context.Context, postID feed.ID) (*backend.LikeResult, error) {
	var result backend.LikeResult

	err := c.do(ctx, http.MethodPost, "api/posts/"+url.PathEscape(postID.String())+"/like/", nil, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to like post: %w", err)
	}

	return &result, nil
}

func (c *Client) LikeComment(ctx context.Context, commentID feed.ID) (*backend.LikeResult, error) {
	var result backend.LikeResult

	err := c.do(ctx, http.MethodPost, "api/comments/"+url.PathEscape(commentID.String())+"/like/", nil, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to like comment: %w", err)
	}

	return &result, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*feed.User, error) {
	return c.authenticate(ctx, "api/auth/login/", username, password)
}

func (c *Client) Register(ctx context.Context, username, password string) (*feed.User, error) {
	return c.authenticate(ctx, "api/auth/register/", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username, password string) (*feed.User, error) {
	var body userBody

	err := c.do(ctx, http.MethodPost, path, credentials{Username: username, Password: password}, &body)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError {
			reason := statusErr.Message
			if reason == "" {
				reason = http.StatusText(statusErr.StatusCode)
			}

			return nil, &backend.LoginFailedError{Reason: reason}
		}

		return nil, err
	}

	return &body.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "api/auth/logout/", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	return nil
}

func (c *Client) CurrentUser(ctx context.Context) (*feed.User, error) {
	var user feed.User

	err := c.do(ctx, http.MethodGet, "api/auth/user/", nil, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})

	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token := c.csrfToken(endpoint); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) csrfToken(endpoint *url.URL) string {
	for _, cookie := range c.httpClient.Jar.Cookies(endpoint) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}

	return ""
}

func responseError(resp *http.Response) error {
	var body errorBody

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	message := body.Error
	if message == "" {
		message = body.Detail
	}

	return &backend.StatusError{StatusCode: resp.StatusCode, Message: message}
}
