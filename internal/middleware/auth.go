package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"wallet/internal/auth"

	"github.com/gorilla/websocket"
)

type contextKey string

const identityKey contextKey = "identity"

type IdentityVerifier interface {
	Verify(credential string) (auth.Identity, error)
}

func IdentityFromContext(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(auth.Identity)
	return identity, ok
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.UserID == "" {
		return "", false
	}
	return identity.UserID, true
}

func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Auth requires a bearer credential. Browsers cannot set headers on a
// websocket handshake, so upgrade requests may pass it as ?token= instead.
func Auth(verifier IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := r.Header.Get("Authorization")
			if credential == "" && websocket.IsWebSocketUpgrade(r) {
				credential = r.URL.Query().Get("token")
			}
			identity, err := verifier.Verify(credential)
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
}
