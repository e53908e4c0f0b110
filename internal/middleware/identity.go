// Package middleware annotates requests with the caller's identity.
// Authentication itself happens upstream; requests arrive carrying a user id
// header and this layer only threads it through the context.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userContextKey contextKey = "user"

// UserHeader carries the authenticated user id set by the upstream proxy.
const UserHeader = "X-User-Id"

// defaultUserID keeps the app usable before an auth provider is wired in.
const defaultUserID = "demo-user"

// WithIdentity resolves the caller's user id and stores it on the request
// context.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			userID = defaultUserID
		}
		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the caller's user id from the request context.
func UserID(r *http.Request) string {
	userID, _ := r.Context().Value(userContextKey).(string)
	if userID == "" {
		return defaultUserID
	}
	return userID
}

// WithUserForTest returns a request annotated with the given user id.
func WithUserForTest(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, userID))
}
