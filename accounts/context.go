package accounts

import "context"

// Anonymous is the subject of requests without a session.
const Anonymous = "system:anonymous"

type contextKeySessionID struct{}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, contextKeySessionID{}, sessionID)
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(contextKeySessionID{}).(string)

	return sessionID, ok && sessionID != ""
}

type contextKeySubject struct{}

func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeySubject{}, userID)
}

// GetSubject returns the id of the signed in user, or Anonymous.
func GetSubject(ctx context.Context) string {
	userID, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok || userID == "" {
		return Anonymous
	}

	return userID
}

func IsAuthenticated(ctx context.Context) bool {
	return GetSubject(ctx) != Anonymous
}
