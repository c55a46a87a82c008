package web

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	sessionIDKey = "sessionId"

	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
	csrfTokenSize  = 32
)

type SessionValueNotFoundError struct {
	Key string
}

func (err SessionValueNotFoundError) Error() string {
	return fmt.Sprintf("session value for key %q not found", err.Key)
}

// cookieSession loads the signed session cookie. A cookie that no longer
// decodes, for example after a key rotation, yields a fresh session along
// with the decode error.
func (h *Handler) cookieSession(r *http.Request) (*sessions.Session, error) {
	session, err := h.cookieStore.Get(r, h.sessionName)
	if session == nil {
		return nil, fmt.Errorf("failed to load session cookie: %w", err)
	}

	return session, err
}

func (h *Handler) getSessionID(r *http.Request) (string, error) {
	session, err := h.cookieSession(r)
	if err != nil {
		return "", err
	}

	sessionID, _ := session.Values[sessionIDKey].(string)
	if sessionID == "" {
		return "", &SessionValueNotFoundError{Key: sessionIDKey}
	}

	return sessionID, nil
}

// setSessionID binds the browser to sessionID and hands out a CSRF token for
// the new session.
func (h *Handler) setSessionID(w http.ResponseWriter, r *http.Request, sessionID string) error {
	session, _ := h.cookieSession(r)
	if session == nil {
		return fmt.Errorf("failed to create session cookie")
	}

	session.Values[sessionIDKey] = sessionID

	err := session.Save(r, w)
	if err != nil {
		return fmt.Errorf("failed to save session cookie: %w", err)
	}

	h.issueCSRFToken(w)

	return nil
}

func (h *Handler) clearSessionID(w http.ResponseWriter, r *http.Request) error {
	session, _ := h.cookieSession(r)
	if session == nil {
		return fmt.Errorf("failed to load session cookie")
	}

	delete(session.Values, sessionIDKey)
	session.Options.MaxAge = -1

	err := session.Save(r, w)
	if err != nil {
		return fmt.Errorf("failed to expire session cookie: %w", err)
	}

	return nil
}

// issueCSRFToken sets a fresh token cookie that scripts can read and echo back.
func (h *Handler) issueCSRFToken(w http.ResponseWriter) {
	opts := h.cookieStore.Options

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    hex.EncodeToString(securecookie.GenerateRandomKey(csrfTokenSize)),
		Path:     "/",
		MaxAge:   opts.MaxAge,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
