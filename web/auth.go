package web

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nasermirzaei89/karma/accounts"
)

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessionID, err := h.getSessionID(r)
		if err != nil {
			var notFoundErr *SessionValueNotFoundError
			if !errors.As(err, &notFoundErr) {
				slog.WarnContext(ctx, "ignoring unreadable session cookie", "error", err)
			}

			next.ServeHTTP(w, r)

			return
		}

		session, err := h.accountsSvc.GetSession(ctx, sessionID)
		if err != nil {
			var (
				notFoundErr *accounts.SessionNotFoundError
				expiredErr  *accounts.SessionExpiredError
			)

			if !errors.As(err, &notFoundErr) && !errors.As(err, &expiredErr) {
				slog.ErrorContext(ctx, "error on getting session", "sessionId", sessionID, "error", err)
				writeError(w, http.StatusInternalServerError, "error on getting session")

				return
			}

			err = h.clearSessionID(w, r)
			if err != nil {
				slog.ErrorContext(ctx, "error on clearing session cookie", "error", err)
			}

			next.ServeHTTP(w, r)

			return
		}

		user, err := h.accountsSvc.GetUser(ctx, session.UserID)
		if err != nil {
			var userNotFoundErr *accounts.UserNotFoundError
			if !errors.As(err, &userNotFoundErr) {
				slog.ErrorContext(ctx, "error retrieving user", "error", err)
				writeError(w, http.StatusInternalServerError, "error on retrieving user")

				return
			}

			err = h.accountsSvc.Logout(ctx, session.ID)
			if err != nil {
				slog.ErrorContext(ctx, "error on logging out session", "sessionId", session.ID, "error", err)
			}

			err = h.clearSessionID(w, r)
			if err != nil {
				slog.ErrorContext(ctx, "error on clearing session cookie", "error", err)
			}

			next.ServeHTTP(w, r)

			return
		}

		ctx = accounts.WithSessionID(ctx, session.ID)
		ctx = accounts.WithSubject(ctx, user.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isAuthenticated(r *http.Request) bool {
	return accounts.IsAuthenticated(r.Context())
}

// viewerID is the signed in user's id, or empty for anonymous requests.
func viewerID(r *http.Request) string {
	if !isAuthenticated(r) {
		return ""
	}

	return accounts.GetSubject(r.Context())
}

func (h *Handler) AuthenticatedOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isAuthenticated(r) {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// csrfMiddleware checks the double submitted token on unsafe requests made
// with a session. Anonymous requests, like signing in, pass through.
func csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) || !isAuthenticated(r) {
			next.ServeHTTP(w, r)

			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		header := r.Header.Get(csrfHeaderName)

		if err != nil || cookie.Value == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
			writeDetail(w, http.StatusForbidden, "CSRF Failed: CSRF token missing or incorrect.")

			return
		}

		next.ServeHTTP(w, r)
	})
}
