// Package web serves the karma JSON API.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/discuss"
	"github.com/nasermirzaei89/karma/leaderboard"
	"github.com/nasermirzaei89/karma/metrics"
	"github.com/nasermirzaei89/karma/reactions"
)

type Handler struct {
	mux            *http.ServeMux
	handler        http.Handler
	accountsSvc    *accounts.Service
	contentsSvc    *contents.Service
	discussSvc     *discuss.Service
	reactionsSvc   *reactions.Service
	leaderboardSvc *leaderboard.Service
	cookieStore    *sessions.CookieStore
	sessionName    string
	httpMetrics    *metrics.HTTPCollector
}

var _ http.Handler = (*Handler)(nil)

// NewHandler wires the API routes. httpMetrics and metricsHandler may be nil;
// /metrics is only served when metricsHandler is set.
func NewHandler(
	accountsSvc *accounts.Service,
	contentsSvc *contents.Service,
	discussSvc *discuss.Service,
	reactionsSvc *reactions.Service,
	leaderboardSvc *leaderboard.Service,
	cookieStore *sessions.CookieStore,
	sessionName string,
	httpMetrics *metrics.HTTPCollector,
	metricsHandler http.Handler,
) *Handler {
	h := &Handler{
		mux:            &http.ServeMux{},
		accountsSvc:    accountsSvc,
		contentsSvc:    contentsSvc,
		discussSvc:     discussSvc,
		reactionsSvc:   reactionsSvc,
		leaderboardSvc: leaderboardSvc,
		cookieStore:    cookieStore,
		sessionName:    sessionName,
		httpMetrics:    httpMetrics,
	}

	h.registerRoutes()

	if metricsHandler != nil {
		h.mux.Handle("GET /metrics", metricsHandler)
	}

	h.handler = csrfMiddleware(h.mux)
	h.handler = h.authMiddleware(h.handler)
	h.handler = recoverMiddleware(h.handler)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

func (h *Handler) route(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, h.httpMetrics.Instrument(pattern, handler))
}

func (h *Handler) registerRoutes() {
	h.route("GET /healthz", h.HandleHealth())

	h.route("GET /api/feed/", h.HandleFeed())
	h.route("GET /api/leaderboard/", h.HandleLeaderboard())

	h.route("GET /api/posts/", h.HandleFeed())
	h.route("POST /api/posts/", h.AuthenticatedOnly(h.HandleCreatePost()))
	h.route("GET /api/posts/{postId}/", h.HandleGetPost())
	h.route("DELETE /api/posts/{postId}/", h.AuthenticatedOnly(h.HandleDeletePost()))
	h.route("POST /api/posts/{postId}/like/", h.AuthenticatedOnly(h.HandleLikePost()))

	h.route("POST /api/comments/", h.AuthenticatedOnly(h.HandleCreateComment()))
	h.route("DELETE /api/comments/{commentId}/", h.AuthenticatedOnly(h.HandleDeleteComment()))
	h.route("POST /api/comments/{commentId}/like/", h.AuthenticatedOnly(h.HandleLikeComment()))

	h.route("POST /api/auth/register/", h.HandleRegister())
	h.route("POST /api/auth/login/", h.HandleLogin())
	h.route("POST /api/auth/logout/", h.AuthenticatedOnly(h.HandleLogout()))
	h.route("GET /api/auth/user/", h.AuthenticatedOnly(h.HandleCurrentUser()))
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func(ctx context.Context) {
			if err := recover(); err != nil {
				slog.ErrorContext(
					ctx,
					"recovered from panic",
					"error",
					err,
					"stack",
					string(debug.Stack()),
				)

				writeError(w, http.StatusInternalServerError, "internal error occurred")
			}
		}(r.Context())

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HandleHealth() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
