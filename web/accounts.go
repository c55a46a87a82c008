package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/feed"
)

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userBody struct {
	User    feed.User `json:"user"`
	Message string    `json:"message"`
}

func (h *Handler) HandleRegister() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body credentialsBody

		err := decodeJSON(w, r, &body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")

			return
		}

		user, session, err := h.accountsSvc.Register(ctx, body.Username, body.Password)
		if err != nil {
			var (
				invalidErr *accounts.InvalidRegistrationError
				existsErr  *accounts.UserAlreadyExistsError
			)

			switch {
			case errors.As(err, &invalidErr):
				writeError(w, http.StatusBadRequest, invalidErr.Error())
			case errors.As(err, &existsErr):
				writeError(w, http.StatusBadRequest, "A user with that username already exists.")
			default:
				writeServiceError(w, r, "failed to register user", err)
			}

			return
		}

		h.startSession(w, r, session, userBody{
			User:    userView(user, 0),
			Message: "User registered successfully",
		}, http.StatusCreated)
	})
}

func (h *Handler) HandleLogin() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body credentialsBody

		err := decodeJSON(w, r, &body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")

			return
		}

		if strings.TrimSpace(body.Username) == "" || body.Password == "" {
			writeError(w, http.StatusBadRequest, "Please provide both username and password")

			return
		}

		user, session, err := h.accountsSvc.Login(ctx, body.Username, body.Password)
		if err != nil {
			if errors.Is(err, accounts.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "Invalid credentials")

				return
			}

			writeServiceError(w, r, "failed to login user", err)

			return
		}

		view, err := h.userView(ctx, user)
		if err != nil {
			writeServiceError(w, r, "failed to build user", err)

			return
		}

		h.startSession(w, r, session, userBody{User: view, Message: "Login successful"}, http.StatusOK)
	})
}

func (h *Handler) startSession(
	w http.ResponseWriter,
	r *http.Request,
	session *accounts.Session,
	body userBody,
	status int,
) {
	err := h.setSessionID(w, r, session.ID)
	if err != nil {
		writeServiceError(w, r, "failed to save session", err)

		return
	}

	writeJSON(r.Context(), w, status, body)
}

func (h *Handler) HandleLogout() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if sessionID, ok := accounts.SessionIDFromContext(ctx); ok {
			err := h.accountsSvc.Logout(ctx, sessionID)

			var notFoundErr *accounts.SessionNotFoundError
			if err != nil && !errors.As(err, &notFoundErr) {
				writeServiceError(w, r, "failed to logout", err)

				return
			}
		}

		err := h.clearSessionID(w, r)
		if err != nil {
			writeServiceError(w, r, "failed to clear session", err)

			return
		}

		writeJSON(ctx, w, http.StatusOK, map[string]string{"message": "Logout successful"})
	})
}

func (h *Handler) HandleCurrentUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := h.accountsSvc.GetCurrentUser(ctx)
		if err != nil {
			writeServiceError(w, r, "failed to get current user", err)

			return
		}

		view, err := h.userView(ctx, user)
		if err != nil {
			writeServiceError(w, r, "failed to build user", err)

			return
		}

		if _, err := r.Cookie(csrfCookieName); err != nil {
			h.issueCSRFToken(w)
		}

		writeJSON(ctx, w, http.StatusOK, view)
	})
}
