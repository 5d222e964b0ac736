package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// AnonymousHandler mints a pseudo identity and a token for it.
func AnonymousHandler(secret []byte, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident := Identity{ID: NewPseudoID()}

		token, err := GenerateToken(secret, ident)
		if err != nil {
			log.Error("sign token failed", zap.Error(err))
			http.Error(w, "token error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":       ident.ID,
			"authenticated": false,
			"token":         token,
		})
	}
}

func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":       ident.ID,
			"authenticated": ident.Authenticated,
		})
	}
}

// SignInHandler attaches the authenticated user of the bearer token to the
// caller's cookie session. Later tokenless requests of that session act as
// the user. Pseudo identities cannot sign in.
func SignInHandler(secret []byte, sessions *Sessions, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		ident, err := ParseToken(secret, strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if !ident.Authenticated {
			http.Error(w, "token does not name a user", http.StatusForbidden)
			return
		}

		provider := sessions.FromRequest(w, r)
		pseudo := provider.CurrentOrCreate()
		provider.SignIn(ident.ID)
		log.Info("session signed in", zap.String("user_id", ident.ID), zap.Bool("was_pseudo", !pseudo.Authenticated))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":       ident.ID,
			"authenticated": true,
		})
	}
}

// LogoutHandler signs the cookie session out; the session falls back to its
// pseudo identity. Bearer tokens are stateless and the client drops its copy.
func LogoutHandler(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if provider, ok := sessions.providerFromCookie(r); ok {
			provider.SignOut()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
		})
	}
}
