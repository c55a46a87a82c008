package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/discuss"
	"github.com/nasermirzaei89/karma/feed"
)

const maxBodySize = 1 << 20

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(context.Background(), w, status, map[string]string{"error": message})
}

func writeDetail(w http.ResponseWriter, status int, message string) {
	writeJSON(context.Background(), w, status, map[string]string{"detail": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v)
	if err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}

	return nil
}

// writeServiceError maps domain errors to responses and logs the rest.
func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var (
		validationErr   *feed.ValidationError
		postNotFound    *contents.PostNotFoundError
		commentNotFound *discuss.CommentNotFoundError
		mismatchErr     *discuss.ParentMismatchError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &postNotFound), errors.As(err, &commentNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, contents.ErrNotPostAuthor), errors.Is(err, discuss.ErrNotCommentAuthor):
		writeDetail(w, http.StatusForbidden, err.Error())
	case errors.As(err, &mismatchErr):
		writeError(w, http.StatusBadRequest, "Parent comment belongs to another post")
	case errors.Is(err, discuss.ErrThreadTooDeep):
		writeError(w, http.StatusBadRequest, feed.ThreadTooDeepText)
	default:
		slog.ErrorContext(r.Context(), msg, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
