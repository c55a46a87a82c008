package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotAuthenticated is returned when the call needs a session and there is none.
var ErrNotAuthenticated = errors.New("not authenticated")

type LoginFailedError struct {
	Reason string
}

func (err LoginFailedError) Error() string {
	if err.Reason == "" {
		return "login failed"
	}

	return "login failed: " + err.Reason
}

// StatusError is any non-success response the server sent back.
type StatusError struct {
	StatusCode int
	Message    string
}

func (err StatusError) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("unexpected response status %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	}

	return fmt.Sprintf("unexpected response status %d: %s", err.StatusCode, err.Message)
}

// Is makes a 401 match ErrNotAuthenticated.
func (err StatusError) Is(target error) bool {
	return target == ErrNotAuthenticated && err.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var statusErr *StatusError

	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound
}
