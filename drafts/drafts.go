// Package drafts keeps unsent comment and reply text per input box.
package drafts

import (
	"sync"

	"github.com/nasermirzaei89/karma/feed"
)

// PostKey is the draft key of the top-level comment box under a post.
func PostKey(postID feed.ID) string {
	return "post:" + postID.String()
}

// CommentKey is the draft key of the reply box under a comment.
func CommentKey(commentID feed.ID) string {
	return "comment:" + commentID.String()
}

type Store struct {
	mu     sync.RWMutex
	drafts map[string]string
}

func NewStore() *Store {
	return &Store{drafts: make(map[string]string)}
}

func (s *Store) Set(key, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drafts[key] = text
}

// Get returns the draft for key, or an empty string when there is none.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.drafts[key]
}

func (s *Store) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, key)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.drafts)
}
