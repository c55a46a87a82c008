package feed_test

import (
	"testing"

	"github.com/nasermirzaei89/karma/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func comment(id string, parent string) feed.Comment {
	return feed.Comment{
		ID:       feed.ID(id),
		PostID:   "p1",
		ParentID: feed.IDPtr(feed.ID(parent)),
		Content:  "comment " + id,
	}
}

func ids(comments []feed.Comment) []feed.ID {
	result := make([]feed.ID, 0, len(comments))
	for _, c := range comments {
		result = append(result, c.ID)
	}

	return result
}

func TestCanReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		depth    int
		expected bool
	}{
		{depth: 0, expected: true},
		{depth: 1, expected: true},
		{depth: 2, expected: true},
		{depth: 3, expected: true},
		{depth: 4, expected: false},
		{depth: 5, expected: false},
		{depth: 12, expected: false},
		{depth: -1, expected: false},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, feed.CanReply(tt.depth), "depth %d", tt.depth)
		})
	}
}

func TestReplyAvailability(t *testing.T) {
	t.Parallel()

	assert.Equal(t, feed.Availability{Allowed: true}, feed.ReplyAvailability(feed.MaxDepth-2))

	availability := feed.ReplyAvailability(feed.MaxDepth - 1)
	assert.False(t, availability.Allowed)
	assert.Equal(t, feed.ThreadTooDeepText, availability.Reason)
}

func TestInsertComment(t *testing.T) {
	t.Parallel()

	t.Run("top level in arrival order", func(t *testing.T) {
		t.Parallel()

		post := &feed.Post{ID: "p1"}

		require.True(t, feed.InsertComment(post, comment("c1", "")))
		require.True(t, feed.InsertComment(post, comment("c2", "")))

		assert.Equal(t, []feed.ID{"c1", "c2"}, ids(post.Comments))
		assert.Equal(t, 2, post.CommentCount)
		assert.Equal(t, 0, post.Comments[1].Depth)
	})

	t.Run("replies in arrival order", func(t *testing.T) {
		t.Parallel()

		post := &feed.Post{ID: "p1"}

		require.True(t, feed.InsertComment(post, comment("c1", "")))
		require.True(t, feed.InsertComment(post, comment("r1", "c1")))
		require.True(t, feed.InsertComment(post, comment("r2", "c1")))

		assert.Equal(t, []feed.ID{"c1"}, ids(post.Comments))
		assert.Equal(t, []feed.ID{"r1", "r2"}, ids(post.Comments[0].Replies))
		assert.Equal(t, 1, post.Comments[0].Replies[1].Depth)
		assert.Equal(t, 3, post.CommentCount)
	})

	t.Run("deep parent found by depth first search", func(t *testing.T) {
		t.Parallel()

		post := &feed.Post{ID: "p1"}

		require.True(t, feed.InsertComment(post, comment("a", "")))
		require.True(t, feed.InsertComment(post, comment("b", "")))
		require.True(t, feed.InsertComment(post, comment("b1", "b")))
		require.True(t, feed.InsertComment(post, comment("b11", "b1")))
		require.True(t, feed.InsertComment(post, comment("b111", "b11")))

		found, depth, ok := feed.FindComment(post.Comments, "b111")
		require.True(t, ok)
		assert.Equal(t, 3, depth)
		assert.Equal(t, 3, found.Depth)
		assert.Equal(t, feed.ID("b11"), *found.ParentID)
	})

	t.Run("missing parent is a no-op", func(t *testing.T) {
		t.Parallel()

		post := &feed.Post{ID: "p1"}
		require.True(t, feed.InsertComment(post, comment("c1", "")))

		ok := feed.InsertComment(post, comment("r1", "gone"))
		assert.False(t, ok)
		assert.Equal(t, []feed.ID{"c1"}, ids(post.Comments))
		assert.Empty(t, post.Comments[0].Replies)
		assert.Equal(t, 1, post.CommentCount)
	})
}

func TestWalkOrder(t *testing.T) {
	t.Parallel()

	post := &feed.Post{ID: "p1"}
	feed.InsertComment(post, comment("a", ""))
	feed.InsertComment(post, comment("a1", "a"))
	feed.InsertComment(post, comment("b", ""))
	feed.InsertComment(post, comment("a2", "a"))

	var visited []string

	feed.Walk(post.Comments, func(c *feed.Comment, depth int) bool {
		visited = append(visited, string(c.ID))

		return true
	})

	assert.Equal(t, []string{"a", "a1", "a2", "b"}, visited)
	assert.Equal(t, 4, feed.CountComments(post.Comments))
}

func TestRemoveAndRestoreComment(t *testing.T) {
	t.Parallel()

	post := &feed.Post{ID: "p1"}
	feed.InsertComment(post, comment("a", ""))
	feed.InsertComment(post, comment("a1", "a"))
	feed.InsertComment(post, comment("a11", "a1"))
	feed.InsertComment(post, comment("a2", "a"))

	original := post.Clone()

	removal, ok := feed.RemoveComment(post, "a1")
	require.True(t, ok)
	assert.Equal(t, feed.ID("a"), *removal.ParentID)
	assert.Equal(t, 0, removal.Index)
	assert.Equal(t, []feed.ID{"a2"}, ids(post.Comments[0].Replies))
	assert.Equal(t, 2, post.CommentCount)

	require.True(t, feed.RestoreComment(post, removal))
	assert.Equal(t, original, *post)

	_, ok = feed.RemoveComment(post, "missing")
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	post := feed.Post{ID: "p1", Author: feed.User{ID: "u1", Profile: &feed.Profile{TotalKarma: 3}}}
	feed.InsertComment(&post, comment("a", ""))
	feed.InsertComment(&post, comment("a1", "a"))

	cloned := post.Clone()
	cloned.Comments[0].Replies[0].LikeCount = 10
	cloned.Author.Profile.TotalKarma = 99

	assert.Equal(t, 0, post.Comments[0].Replies[0].LikeCount)
	assert.Equal(t, 3, post.Author.TotalKarma())
}
