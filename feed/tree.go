package feed

// MaxDepth bounds comment nesting. Comments at depth MaxDepth-1 can no longer
// be replied to, so depths 0 to MaxDepth-2 accept replies.
const MaxDepth = 5

const ThreadTooDeepText = "Thread too deep - reply disabled"

func CanReply(depth int) bool {
	return depth >= 0 && depth < MaxDepth-1
}

type Availability struct {
	Allowed bool
	// Reason is the indicator shown in place of the reply control when Allowed is false.
	Reason string
}

func ReplyAvailability(depth int) Availability {
	if CanReply(depth) {
		return Availability{Allowed: true}
	}

	return Availability{Allowed: false, Reason: ThreadTooDeepText}
}

// Walk visits comments depth first in display order. It stops early when fn
// returns false.
func Walk(comments []Comment, fn func(c *Comment, depth int) bool) {
	walk(comments, 0, fn)
}

func walk(comments []Comment, depth int, fn func(c *Comment, depth int) bool) bool {
	for i := range comments {
		if !fn(&comments[i], depth) {
			return false
		}

		if !walk(comments[i].Replies, depth+1, fn) {
			return false
		}
	}

	return true
}

// FindComment searches the tree depth first and returns a pointer into it.
func FindComment(comments []Comment, id ID) (*Comment, int, bool) {
	var (
		found      *Comment
		foundDepth int
	)

	Walk(comments, func(c *Comment, depth int) bool {
		if c.ID == id {
			found = c
			foundDepth = depth

			return false
		}

		return true
	})

	return found, foundDepth, found != nil
}

// CountComments counts every comment in the tree, replies included.
func CountComments(comments []Comment) int {
	n := 0

	Walk(comments, func(*Comment, int) bool {
		n++

		return true
	})

	return n
}

// InsertComment places c in post's tree: at the end of the top-level
// comments when it has no parent, otherwise at the end of its parent's
// replies. It reports false and leaves the post untouched when the parent is
// not in the tree.
func InsertComment(post *Post, c Comment) bool {
	if c.ParentID == nil {
		c.Depth = 0
		post.Comments = append(post.Comments, c)
		post.CommentCount++

		return true
	}

	parent, depth, ok := FindComment(post.Comments, *c.ParentID)
	if !ok {
		return false
	}

	c.Depth = depth + 1
	parent.Replies = append(parent.Replies, c)
	post.CommentCount++

	return true
}

// Removal records where a comment subtree was detached so it can be put back.
type Removal struct {
	Comment  Comment
	ParentID *ID
	Index    int
}

// RemoveComment detaches the comment with the given id, with all its replies,
// and lowers the post's comment count accordingly.
func RemoveComment(post *Post, id ID) (Removal, bool) {
	removal, ok := removeFrom(&post.Comments, nil, id)
	if !ok {
		return Removal{}, false
	}

	post.CommentCount -= 1 + CountComments(removal.Comment.Replies)
	if post.CommentCount < 0 {
		post.CommentCount = 0
	}

	return removal, true
}

func removeFrom(comments *[]Comment, parentID *ID, id ID) (Removal, bool) {
	list := *comments

	for i := range list {
		if list[i].ID == id {
			removed := list[i]
			*comments = append(list[:i:i], list[i+1:]...)

			return Removal{Comment: removed, ParentID: parentID, Index: i}, true
		}

		currentID := list[i].ID

		removal, ok := removeFrom(&list[i].Replies, &currentID, id)
		if ok {
			return removal, true
		}
	}

	return Removal{}, false
}

// RestoreComment reverses RemoveComment. It is a no-op when the original
// parent has disappeared in the meantime.
func RestoreComment(post *Post, removal Removal) bool {
	target := &post.Comments

	if removal.ParentID != nil {
		parent, _, ok := FindComment(post.Comments, *removal.ParentID)
		if !ok {
			return false
		}

		target = &parent.Replies
	}

	index := min(max(removal.Index, 0), len(*target))

	list := make([]Comment, 0, len(*target)+1)
	list = append(list, (*target)[:index]...)
	list = append(list, removal.Comment)
	list = append(list, (*target)[index:]...)
	*target = list

	post.CommentCount += 1 + CountComments(removal.Comment.Replies)

	return true
}
