package feed

import (
	"slices"
	"sync"
)

// Snapshot is an authoritative copy of the server's collections.
type Snapshot struct {
	Posts       []Post
	Leaderboard []LeaderboardEntry
}

// LikeUpdate describes an applied like change and the refresh generation it
// was applied under.
type LikeUpdate struct {
	Before     LikeState
	After      LikeState
	Generation uint64
}

// State is the in-memory feed shared by the mutation engine, the refresh
// coordinator and readers. Every refresh that lands bumps the generation;
// writes guarded by an older generation are rejected with ErrSuperseded.
type State struct {
	mu          sync.RWMutex
	posts       []Post
	leaderboard []LeaderboardEntry
	generation  uint64
}

func NewState() *State {
	return &State{}
}

func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.generation
}

func (s *State) Posts() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]Post, len(s.posts))
	for i := range s.posts {
		posts[i] = s.posts[i].Clone()
	}

	return posts
}

func (s *State) Post(id ID) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.postIndex(id)
	if i < 0 {
		return Post{}, false
	}

	return s.posts[i].Clone(), true
}

// Comment returns the comment with the given id together with its post id and depth.
func (s *State) Comment(id ID) (Comment, ID, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.posts {
		c, depth, ok := FindComment(s.posts[i].Comments, id)
		if ok {
			return c.Clone(), s.posts[i].ID, depth, true
		}
	}

	return Comment{}, "", 0, false
}

func (s *State) Leaderboard() []LeaderboardEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.leaderboard)
}

func (s *State) LikeState(ref Ref) (LikeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.likeStateLocked(ref)
}

// Apply replaces every collection with the snapshot and starts a new generation.
func (s *State) Apply(snapshot Snapshot) uint64 {
	posts := make([]Post, len(snapshot.Posts))
	for i := range snapshot.Posts {
		posts[i] = snapshot.Posts[i].Clone()
	}

	leaderboard := slices.Clone(snapshot.Leaderboard)
	if leaderboard == nil {
		leaderboard = []LeaderboardEntry{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = posts
	s.leaderboard = leaderboard
	s.generation++

	return s.generation
}

// Clear empties every collection and starts a new generation.
func (s *State) Clear() uint64 {
	return s.Apply(Snapshot{})
}

// UpdateLike applies fn to the like state of ref under the state lock.
func (s *State) UpdateLike(ref Ref, fn func(LikeState) LikeState) (LikeUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.setLike(ref, fn)
	if err != nil {
		return LikeUpdate{}, err
	}

	after, _ := s.likeStateLocked(ref)

	return LikeUpdate{Before: before, After: after, Generation: s.generation}, nil
}

// RestoreLike writes ls back only when no refresh has landed since generation.
func (s *State) RestoreLike(ref Ref, generation uint64, ls LikeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return ErrSuperseded
	}

	_, err := s.setLike(ref, func(LikeState) LikeState { return ls })

	return err
}

func (s *State) setLike(ref Ref, fn func(LikeState) LikeState) (LikeState, error) {
	switch ref.Kind {
	case KindPost:
		i := s.postIndex(ref.ID)
		if i < 0 {
			return LikeState{}, &EntityNotFoundError{Ref: ref}
		}

		before := s.posts[i].LikeState()
		after := fn(before)
		s.posts[i].HasLiked = after.HasLiked
		s.posts[i].LikeCount = max(after.LikeCount, 0)

		return before, nil
	case KindComment:
		c, ok := s.findComment(ref.ID)
		if !ok {
			return LikeState{}, &EntityNotFoundError{Ref: ref}
		}

		before := c.LikeState()
		after := fn(before)
		c.HasLiked = after.HasLiked
		c.LikeCount = max(after.LikeCount, 0)

		return before, nil
	default:
		return LikeState{}, &InvalidKindError{Kind: ref.Kind}
	}
}

func (s *State) likeStateLocked(ref Ref) (LikeState, bool) {
	switch ref.Kind {
	case KindPost:
		i := s.postIndex(ref.ID)
		if i < 0 {
			return LikeState{}, false
		}

		return s.posts[i].LikeState(), true
	case KindComment:
		c, ok := s.findComment(ref.ID)
		if !ok {
			return LikeState{}, false
		}

		return c.LikeState(), true
	default:
		return LikeState{}, false
	}
}

// AddPost puts a freshly created post at the head of the feed.
func (s *State) AddPost(post Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.postIndex(post.ID) >= 0 {
		return
	}

	s.posts = slices.Insert(slices.Clone(s.posts), 0, post.Clone())
}

// AddComment inserts a freshly created comment into its post's tree. It
// reports false when the post or the parent comment is not loaded.
func (s *State) AddComment(c Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.postIndex(c.PostID)
	if i < 0 {
		return false
	}

	if _, ok := s.findComment(c.ID); ok {
		return false
	}

	return InsertComment(&s.posts[i], c.Clone())
}

// PostRemoval records where a post was removed from the feed.
type PostRemoval struct {
	Post       Post
	Index      int
	Generation uint64
}

func (s *State) RemovePost(id ID) (PostRemoval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.postIndex(id)
	if i < 0 {
		return PostRemoval{}, false
	}

	removed := s.posts[i]
	s.posts = slices.Delete(slices.Clone(s.posts), i, i+1)

	return PostRemoval{Post: removed, Index: i, Generation: s.generation}, true
}

func (s *State) RestorePost(removal PostRemoval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != removal.Generation {
		return ErrSuperseded
	}

	if s.postIndex(removal.Post.ID) >= 0 {
		return nil
	}

	index := min(max(removal.Index, 0), len(s.posts))
	s.posts = slices.Insert(slices.Clone(s.posts), index, removal.Post)

	return nil
}

// CommentRemoval records where a comment subtree was detached from its post.
type CommentRemoval struct {
	PostID     ID
	Removal    Removal
	Generation uint64
}

func (s *State) RemoveComment(id ID) (CommentRemoval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.posts {
		removal, ok := RemoveComment(&s.posts[i], id)
		if ok {
			return CommentRemoval{PostID: s.posts[i].ID, Removal: removal, Generation: s.generation}, true
		}
	}

	return CommentRemoval{}, false
}

func (s *State) RestoreComment(removal CommentRemoval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != removal.Generation {
		return ErrSuperseded
	}

	i := s.postIndex(removal.PostID)
	if i < 0 {
		return &EntityNotFoundError{Ref: PostRef(removal.PostID)}
	}

	if !RestoreComment(&s.posts[i], removal.Removal) {
		return &EntityNotFoundError{Ref: CommentRef(*removal.Removal.ParentID)}
	}

	return nil
}

func (s *State) postIndex(id ID) int {
	return slices.IndexFunc(s.posts, func(p Post) bool { return p.ID == id })
}

func (s *State) findComment(id ID) (*Comment, bool) {
	for i := range s.posts {
		c, _, ok := FindComment(s.posts[i].Comments, id)
		if ok {
			return c, true
		}
	}

	return nil, false
}
