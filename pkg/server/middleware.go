package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/smith3v/wx-reminder/pkg/token"
)

type contextKey string

const openidKey contextKey = "openid"

// authMiddleware resolves the caller's openid from a Bearer session token
// into the request context. Requests without a token pass through; handlers
// that need an identity fall back to the explicit openid parameter the
// original API used, so older mini-program clients keep working.
func authMiddleware(tokens *token.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" || tokenString == authHeader {
			next.ServeHTTP(w, r)
			return
		}

		openid, err := tokens.ParseSession(tokenString)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, envelope{ErrCode: http.StatusUnauthorized, ErrMsg: "invalid or expired token"})
			return
		}
		ctx := context.WithValue(r.Context(), openidKey, openid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// identity returns the caller's openid: the authenticated one when present,
// otherwise the explicit query parameter.
func identity(r *http.Request) string {
	if openid, ok := r.Context().Value(openidKey).(string); ok && openid != "" {
		return openid
	}
	return strings.TrimSpace(r.URL.Query().Get("openid"))
}

// identityOr prefers the authenticated openid over a client-supplied one.
func identityOr(r *http.Request, fallback string) string {
	if openid, ok := r.Context().Value(openidKey).(string); ok && openid != "" {
		return openid
	}
	if fallback != "" {
		return strings.TrimSpace(fallback)
	}
	return strings.TrimSpace(r.URL.Query().Get("openid"))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
