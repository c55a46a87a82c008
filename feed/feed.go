package feed

import (
	"time"
)

const (
	// PostLikeKarma is the karma an author receives for a like on a post.
	PostLikeKarma = 5
	// CommentLikeKarma is the karma an author receives for a like on a comment.
	CommentLikeKarma = 1
)

const (
	MaxPostLength    = 5000
	MaxCommentLength = 2000
)

type Profile struct {
	TotalKarma int       `json:"total_karma"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

type User struct {
	ID       ID       `json:"id"`
	Username string   `json:"username"`
	Profile  *Profile `json:"profile,omitempty"`
}

// TotalKarma returns the author's accumulated karma, or zero when the server did not send a profile.
func (u User) TotalKarma() int {
	if u.Profile == nil {
		return 0
	}

	return u.Profile.TotalKarma
}

func (u User) Clone() User {
	if u.Profile != nil {
		profile := *u.Profile
		u.Profile = &profile
	}

	return u
}

type Post struct {
	ID           ID        `json:"id"`
	Author       User      `json:"author"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	LikeCount    int       `json:"like_count"`
	HasLiked     bool      `json:"has_liked"`
	CommentCount int       `json:"comment_count"`
	Comments     []Comment `json:"comments"`
}

func (p Post) Ref() Ref {
	return Ref{Kind: KindPost, ID: p.ID}
}

func (p Post) LikeState() LikeState {
	return LikeState{HasLiked: p.HasLiked, LikeCount: p.LikeCount}
}

func (p Post) Clone() Post {
	p.Author = p.Author.Clone()
	p.Comments = cloneComments(p.Comments)

	return p
}

type Comment struct {
	ID        ID        `json:"id"`
	PostID    ID        `json:"post"`
	Author    User      `json:"author"`
	ParentID  *ID       `json:"parent"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	LikeCount int       `json:"like_count"`
	HasLiked  bool      `json:"has_liked"`
	Depth     int       `json:"depth"`
	Replies   []Comment `json:"replies"`
}

// IsTopLevel reports whether the comment hangs directly off its post.
func (c Comment) IsTopLevel() bool {
	return c.ParentID == nil
}

func (c Comment) Ref() Ref {
	return Ref{Kind: KindComment, ID: c.ID}
}

func (c Comment) LikeState() LikeState {
	return LikeState{HasLiked: c.HasLiked, LikeCount: c.LikeCount}
}

func (c Comment) Clone() Comment {
	c.Author = c.Author.Clone()

	if c.ParentID != nil {
		parentID := *c.ParentID
		c.ParentID = &parentID
	}

	c.Replies = cloneComments(c.Replies)

	return c
}

func cloneComments(comments []Comment) []Comment {
	if comments == nil {
		return nil
	}

	cloned := make([]Comment, len(comments))
	for i := range comments {
		cloned[i] = comments[i].Clone()
	}

	return cloned
}

// LeaderboardEntry is one row of the rolling 24 hour karma leaderboard. The
// values are computed by the server and only displayed here.
type LeaderboardEntry struct {
	UserID          ID     `json:"user_id"`
	Username        string `json:"username"`
	PostLikes24h    int    `json:"post_likes_24h"`
	CommentLikes24h int    `json:"comment_likes_24h"`
	DailyKarma      int    `json:"daily_karma"`
}

type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

func (kind Kind) IsValid() bool {
	switch kind {
	case KindPost, KindComment:
		return true
	default:
		return false
	}
}

// Ref names a likeable entity.
type Ref struct {
	Kind Kind
	ID   ID
}

func PostRef(id ID) Ref {
	return Ref{Kind: KindPost, ID: id}
}

func CommentRef(id ID) Ref {
	return Ref{Kind: KindComment, ID: id}
}

func (ref Ref) String() string {
	return string(ref.Kind) + ":" + string(ref.ID)
}

// LikeState is the part of a post or comment the like toggle touches.
type LikeState struct {
	HasLiked  bool
	LikeCount int
}
