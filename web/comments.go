package web

import (
	"net/http"

	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/discuss"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/reactions"
)

type createCommentBody struct {
	PostID   feed.ID  `json:"post"`
	ParentID *feed.ID `json:"parent"`
	Content  string   `json:"content"`
}

func (h *Handler) HandleCreateComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body createCommentBody

		err := decodeJSON(w, r, &body)
		if err != nil || body.PostID.IsZero() {
			writeError(w, http.StatusBadRequest, "Invalid request body")

			return
		}

		post, err := h.contentsSvc.GetPost(ctx, body.PostID.String())
		if err != nil {
			writeServiceError(w, r, "failed to get post", err)

			return
		}

		req := discuss.CreateCommentRequest{
			PostID:   post.ID,
			AuthorID: accounts.GetSubject(ctx),
			Content:  body.Content,
		}

		if body.ParentID != nil {
			req.ParentID = body.ParentID.String()
		}

		comment, err := h.discussSvc.CreateComment(ctx, req)
		if err != nil {
			writeServiceError(w, r, "failed to create comment", err)

			return
		}

		view, err := h.postView(ctx, post, viewerID(r))
		if err != nil {
			writeServiceError(w, r, "failed to build comment", err)

			return
		}

		created, _, ok := feed.FindComment(view.Comments, feed.ID(comment.ID))
		if !ok {
			writeError(w, http.StatusInternalServerError, "Internal Server Error")

			return
		}

		writeJSON(ctx, w, http.StatusCreated, created)
	})
}

func (h *Handler) HandleDeleteComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		err := h.discussSvc.DeleteComment(ctx, r.PathValue("commentId"), accounts.GetSubject(ctx))
		if err != nil {
			writeServiceError(w, r, "failed to delete comment", err)

			return
		}

		h.leaderboardSvc.Invalidate()

		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *Handler) HandleLikeComment() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		comment, err := h.discussSvc.GetComment(r.Context(), r.PathValue("commentId"))
		if err != nil {
			writeServiceError(w, r, "failed to get comment", err)

			return
		}

		h.toggleLike(w, r, reactions.Target{
			Type:     reactions.TargetTypeComment,
			ID:       comment.ID,
			AuthorID: comment.AuthorID,
		}, "Comment")
	})
}
