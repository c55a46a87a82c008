// Package backendtest provides an in-memory backend.API for tests.
package backendtest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/nasermirzaei89/karma/backend"
	"github.com/nasermirzaei89/karma/feed"
)

type Method string

const (
	MethodFeed          Method = "Feed"
	MethodLeaderboard   Method = "Leaderboard"
	MethodCreatePost    Method = "CreatePost"
	MethodCreateComment Method = "CreateComment"
	MethodDeletePost    Method = "DeletePost"
	MethodDeleteComment Method = "DeleteComment"
	MethodLikePost      Method = "LikePost"
	MethodLikeComment   Method = "LikeComment"
	MethodLogin         Method = "Login"
	MethodRegister      Method = "Register"
	MethodLogout        Method = "Logout"
	MethodCurrentUser   Method = "CurrentUser"
)

// Hook runs before a call is served, outside the fake's lock. Returning an
// error fails the call. Hooks may block to hold a call in flight.
type Hook func(ctx context.Context) error

type account struct {
	user     feed.User
	password string
}

// Fake is a small in-memory server. Posts are kept newest first, likes are
// tracked per user, and every method can be failed or held with a hook.
type Fake struct {
	mu          sync.Mutex
	accounts    map[string]account
	current     *feed.User
	posts       []feed.Post
	likes       map[feed.Ref]map[feed.ID]struct{}
	leaderboard []feed.LeaderboardEntry
	failures    map[Method]error
	hooks       map[Method]Hook
	calls       map[Method]int
	lastID      int
}

var _ backend.API = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		accounts: make(map[string]account),
		likes:    make(map[feed.Ref]map[feed.ID]struct{}),
		failures: make(map[Method]error),
		hooks:    make(map[Method]Hook),
		calls:    make(map[Method]int),
	}
}

// AddUser creates an account without signing in.
func (f *Fake) AddUser(username, password string) feed.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.addUserLocked(username, password)
}

func (f *Fake) addUserLocked(username, password string) feed.User {
	user := feed.User{ID: f.nextID("u"), Username: username, Profile: &feed.Profile{CreatedAt: time.Now()}}
	f.accounts[username] = account{user: user, password: password}

	return user
}

// SignIn makes user the current session without a Login call.
func (f *Fake) SignIn(user feed.User) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = &user
}

// SeedPost appends post, with its comment tree, after the existing posts.
func (f *Fake) SeedPost(post feed.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()

	post = post.Clone()
	post.CommentCount = feed.CountComments(post.Comments)
	f.posts = append(f.posts, post)
}

// SeedLike records a like on ref by userID. Like counts served by Feed come
// from these records, not from the seeded posts.
func (f *Fake) SeedLike(ref feed.Ref, userID feed.ID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	likers, ok := f.likes[ref]
	if !ok {
		likers = make(map[feed.ID]struct{})
		f.likes[ref] = likers
	}

	likers[userID] = struct{}{}
}

func (f *Fake) SetLeaderboard(entries []feed.LeaderboardEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.leaderboard = slices.Clone(entries)
}

// Fail makes every following call of method return err until Succeed is called.
func (f *Fake) Fail(method Method, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[method] = err
}

func (f *Fake) Succeed(method Method) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.failures, method)
}

func (f *Fake) Hook(method Method, hook Hook) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if hook == nil {
		delete(f.hooks, method)

		return
	}

	f.hooks[method] = hook
}

func (f *Fake) Calls(method Method) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method]
}

func (f *Fake) before(ctx context.Context, method Method) error {
	f.mu.Lock()
	f.calls[method]++
	hook := f.hooks[method]
	f.mu.Unlock()

	if hook != nil {
		err := hook(ctx)
		if err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return f.failures[method]
}

func (f *Fake) nextID(prefix string) feed.ID {
	f.lastID++

	return feed.ID(prefix + strconv.Itoa(f.lastID))
}

func (f *Fake) Feed(ctx context.Context) ([]feed.Post, error) {
	err := f.before(ctx, MethodFeed)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	posts := make([]feed.Post, len(f.posts))
	for i := range f.posts {
		posts[i] = f.viewPostLocked(f.posts[i])
	}

	return posts, nil
}

func (f *Fake) Leaderboard(ctx context.Context) ([]feed.LeaderboardEntry, error) {
	err := f.before(ctx, MethodLeaderboard)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.leaderboard), nil
}

func (f *Fake) CreatePost(ctx context.Context, req backend.CreatePostRequest) (*feed.Post, error) {
	err := f.before(ctx, MethodCreatePost)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil, backend.ErrNotAuthenticated
	}

	err = feed.ValidatePostContent(req.Content)
	if err != nil {
		return nil, &backend.StatusError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	post := feed.Post{
		ID:        f.nextID("p"),
		Author:    f.current.Clone(),
		Content:   req.Content,
		CreatedAt: time.Now(),
		Comments:  []feed.Comment{},
	}

	f.posts = slices.Insert(f.posts, 0, post)

	result := f.viewPostLocked(post)

	return &result, nil
}

func (f *Fake) CreateComment(ctx context.Context, req backend.CreateCommentRequest) (*feed.Comment, error) {
	err := f.before(ctx, MethodCreateComment)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil, backend.ErrNotAuthenticated
	}

	err = feed.ValidateCommentContent(req.Content)
	if err != nil {
		return nil, &backend.StatusError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	i := f.postIndexLocked(req.PostID)
	if i < 0 {
		return nil, &backend.StatusError{StatusCode: http.StatusNotFound, Message: "post not found"}
	}

	comment := feed.Comment{
		ID:        f.nextID("c"),
		PostID:    req.PostID,
		Author:    f.current.Clone(),
		ParentID:  req.ParentID,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}

	if !feed.InsertComment(&f.posts[i], comment) {
		return nil, &backend.StatusError{StatusCode: http.StatusBadRequest, Message: "parent comment does not belong to this post"}
	}

	inserted, _, _ := feed.FindComment(f.posts[i].Comments, comment.ID)
	result := inserted.Clone()

	return &result, nil
}

func (f *Fake) DeletePost(ctx context.Context, postID feed.ID) error {
	err := f.before(ctx, MethodDeletePost)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return backend.ErrNotAuthenticated
	}

	i := f.postIndexLocked(postID)
	if i < 0 {
		return &backend.StatusError{StatusCode: http.StatusNotFound, Message: "post not found"}
	}

	f.posts = slices.Delete(f.posts, i, i+1)
	delete(f.likes, feed.PostRef(postID))

	return nil
}

func (f *Fake) DeleteComment(ctx context.Context, commentID feed.ID) error {
	err := f.before(ctx, MethodDeleteComment)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return backend.ErrNotAuthenticated
	}

	for i := range f.posts {
		_, ok := feed.RemoveComment(&f.posts[i], commentID)
		if ok {
			return nil
		}
	}

	return &backend.StatusError{StatusCode: http.StatusNotFound, Message: "comment not found"}
}

func (f *Fake) LikePost(ctx context.Context, postID feed.ID) (*backend.LikeResult, error) {
	err := f.before(ctx, MethodLikePost)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.postIndexLocked(postID)
	if i < 0 {
		return nil, &backend.StatusError{StatusCode: http.StatusNotFound, Message: "post not found"}
	}

	return f.toggleLocked(feed.PostRef(postID), f.posts[i].Author.ID)
}

func (f *Fake) LikeComment(ctx context.Context, commentID feed.ID) (*backend.LikeResult, error) {
	err := f.before(ctx, MethodLikeComment)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.posts {
		c, _, ok := feed.FindComment(f.posts[i].Comments, commentID)
		if ok {
			return f.toggleLocked(feed.CommentRef(commentID), c.Author.ID)
		}
	}

	return nil, &backend.StatusError{StatusCode: http.StatusNotFound, Message: "comment not found"}
}

func (f *Fake) toggleLocked(ref feed.Ref, authorID feed.ID) (*backend.LikeResult, error) {
	if f.current == nil {
		return nil, backend.ErrNotAuthenticated
	}

	likers, ok := f.likes[ref]
	if !ok {
		likers = make(map[feed.ID]struct{})
		f.likes[ref] = likers
	}

	_, liked := likers[f.current.ID]
	if liked {
		delete(likers, f.current.ID)
	} else {
		likers[f.current.ID] = struct{}{}
	}

	message := "Liked"
	if liked {
		message = "Unliked"
	}

	return &backend.LikeResult{
		Liked:       !liked,
		LikeCount:   len(likers),
		Message:     message,
		AuthorKarma: f.karmaLocked(authorID),
	}, nil
}

func (f *Fake) Login(ctx context.Context, username, password string) (*feed.User, error) {
	err := f.before(ctx, MethodLogin)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[username]
	if !ok || acc.password != password {
		return nil, &backend.LoginFailedError{Reason: "Invalid credentials"}
	}

	user := acc.user.Clone()
	f.current = &user

	result := user.Clone()

	return &result, nil
}

func (f *Fake) Register(ctx context.Context, username, password string) (*feed.User, error) {
	err := f.before(ctx, MethodRegister)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.accounts[username]; ok {
		return nil, &backend.LoginFailedError{Reason: fmt.Sprintf("username %q is already taken", username)}
	}

	user := f.addUserLocked(username, password)
	f.current = &user

	result := user.Clone()

	return &result, nil
}

func (f *Fake) Logout(ctx context.Context) error {
	err := f.before(ctx, MethodLogout)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = nil

	return nil
}

func (f *Fake) CurrentUser(ctx context.Context) (*feed.User, error) {
	err := f.before(ctx, MethodCurrentUser)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current == nil {
		return nil, backend.ErrNotAuthenticated
	}

	user := f.current.Clone()

	return &user, nil
}

func (f *Fake) postIndexLocked(id feed.ID) int {
	return slices.IndexFunc(f.posts, func(p feed.Post) bool { return p.ID == id })
}

// viewPostLocked fills in like counts, has_liked for the current user and author karma.
func (f *Fake) viewPostLocked(post feed.Post) feed.Post {
	post = post.Clone()

	ls := f.likeStateLocked(post.Ref())
	post.LikeCount = ls.LikeCount
	post.HasLiked = ls.HasLiked
	post.Author = f.withKarmaLocked(post.Author)

	feed.Walk(post.Comments, func(c *feed.Comment, _ int) bool {
		ls := f.likeStateLocked(c.Ref())
		c.LikeCount = ls.LikeCount
		c.HasLiked = ls.HasLiked
		c.Author = f.withKarmaLocked(c.Author)

		return true
	})

	return post
}

func (f *Fake) likeStateLocked(ref feed.Ref) feed.LikeState {
	likers := f.likes[ref]

	ls := feed.LikeState{LikeCount: len(likers)}

	if f.current != nil {
		_, ls.HasLiked = likers[f.current.ID]
	}

	return ls
}

func (f *Fake) withKarmaLocked(user feed.User) feed.User {
	user = user.Clone()
	if user.Profile == nil {
		user.Profile = &feed.Profile{}
	}

	user.Profile.TotalKarma = f.karmaLocked(user.ID)

	return user
}

func (f *Fake) karmaLocked(userID feed.ID) int {
	karma := 0

	for i := range f.posts {
		if f.posts[i].Author.ID == userID {
			karma += feed.PostLikeKarma * len(f.likes[f.posts[i].Ref()])
		}

		feed.Walk(f.posts[i].Comments, func(c *feed.Comment, _ int) bool {
			if c.Author.ID == userID {
				karma += feed.CommentLikeKarma * len(f.likes[c.Ref()])
			}

			return true
		})
	}

	return karma
}
