package auth

import (
	"context"
	"net/http"
	"strings"

	"taskflow-backend/internal/analytics"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Middleware attaches an Identity to every request. A valid bearer token
// wins; requests without one act as their cookie session, which is started on
// first use.
type Middleware struct {
	secret   []byte
	sessions *Sessions
}

func New(secret []byte, sessions *Sessions) Middleware {
	return Middleware{secret: secret, sessions: sessions}
}

func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ident Identity

		h := r.Header.Get("Authorization")
		switch {
		case strings.HasPrefix(h, "Bearer "):
			parsed, err := ParseToken(m.secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ident = parsed
		case h != "":
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		default:
			ident = m.sessions.FromRequest(w, r).CurrentOrCreate()
		}

		ctx := WithIdentity(r.Context(), ident)
		ctx = analytics.WithUserID(ctx, ident.ID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok && ident.ID != ""
}
