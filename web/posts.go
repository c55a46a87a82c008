package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/feed"
	"github.com/nasermirzaei89/karma/reactions"
)

func (h *Handler) HandleFeed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		posts, err := h.contentsSvc.ListPosts(ctx)
		if err != nil {
			writeServiceError(w, r, "failed to list posts", err)

			return
		}

		views, err := h.postViews(ctx, posts, viewerID(r))
		if err != nil {
			writeServiceError(w, r, "failed to build feed", err)

			return
		}

		writeJSON(ctx, w, http.StatusOK, views)
	})
}

func (h *Handler) HandleLeaderboard() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		entries, err := h.leaderboardSvc.Top(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to get leaderboard", "error", err)

			entries = []feed.LeaderboardEntry{}
		}

		writeJSON(ctx, w, http.StatusOK, entries)
	})
}

func (h *Handler) HandleGetPost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		post, err := h.contentsSvc.GetPost(ctx, r.PathValue("postId"))
		if err != nil {
			writeServiceError(w, r, "failed to get post", err)

			return
		}

		view, err := h.postView(ctx, post, viewerID(r))
		if err != nil {
			writeServiceError(w, r, "failed to build post", err)

			return
		}

		writeJSON(ctx, w, http.StatusOK, view)
	})
}

type createPostBody struct {
	Content string `json:"content"`
}

func (h *Handler) HandleCreatePost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body createPostBody

		err := decodeJSON(w, r, &body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")

			return
		}

		post, err := h.contentsSvc.CreatePost(ctx, contents.CreatePostRequest{
			AuthorID: accounts.GetSubject(ctx),
			Content:  body.Content,
		})
		if err != nil {
			writeServiceError(w, r, "failed to create post", err)

			return
		}

		view, err := h.postView(ctx, post, viewerID(r))
		if err != nil {
			writeServiceError(w, r, "failed to build post", err)

			return
		}

		writeJSON(ctx, w, http.StatusCreated, view)
	})
}

func (h *Handler) HandleDeletePost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		err := h.contentsSvc.DeletePost(ctx, r.PathValue("postId"), accounts.GetSubject(ctx))
		if err != nil {
			writeServiceError(w, r, "failed to delete post", err)

			return
		}

		h.leaderboardSvc.Invalidate()

		w.WriteHeader(http.StatusNoContent)
	})
}

type likeBody struct {
	Liked       bool   `json:"liked"`
	LikeCount   int    `json:"like_count"`
	Message     string `json:"message"`
	AuthorKarma int    `json:"author_karma"`
}

func likeMessage(kind string, liked bool) string {
	if liked {
		return kind + " liked"
	}

	return kind + " unliked"
}

func (h *Handler) HandleLikePost() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		post, err := h.contentsSvc.GetPost(ctx, r.PathValue("postId"))
		if err != nil {
			writeServiceError(w, r, "failed to get post", err)

			return
		}

		h.toggleLike(w, r, reactions.Target{
			Type:     reactions.TargetTypePost,
			ID:       post.ID,
			AuthorID: post.AuthorID,
		}, "Post")
	})
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request, target reactions.Target, kind string) {
	ctx := r.Context()

	result, err := h.reactionsSvc.ToggleLike(ctx, target, accounts.GetSubject(ctx))
	if err != nil {
		var invalidErr reactions.InvalidTargetTypeError
		if errors.As(err, &invalidErr) {
			writeError(w, http.StatusBadRequest, invalidErr.Error())

			return
		}

		writeServiceError(w, r, "failed to toggle like", err)

		return
	}

	h.leaderboardSvc.Invalidate()

	karma, err := h.reactionsSvc.Karma(ctx, target.AuthorID)
	if err != nil {
		writeServiceError(w, r, "failed to get author karma", err)

		return
	}

	writeJSON(ctx, w, http.StatusOK, likeBody{
		Liked:       result.Liked,
		LikeCount:   result.LikeCount,
		Message:     likeMessage(kind, result.Liked),
		AuthorKarma: karma[target.AuthorID],
	})
}
