package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskflow-backend/internal/analytics"
)

var testSecret = []byte("test-secret")

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "no identity", http.StatusInternalServerError)
			return
		}
		uid, _ := analytics.UserIDFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            ident.ID,
			"authenticated": ident.Authenticated,
			"analytics_uid": uid,
		})
	})
}

func serve(t *testing.T, h http.Handler, authz string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie set", SessionCookie)
	return nil
}

func userToken(t *testing.T, id string) string {
	t.Helper()
	token, err := GenerateToken(testSecret, Identity{ID: id, Authenticated: true})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestMiddleware_BearerToken(t *testing.T) {
	h := New(testSecret, NewSessions(0)).Wrap(echoIdentity())

	rec, body := serve(t, h, userToken(t, "user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", body["id"])
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "user-1", body["analytics_uid"])
	assert.Empty(t, rec.Result().Cookies(), "token requests start no session")
}

func TestMiddleware_EachSessionGetsItsOwnPseudoIdentity(t *testing.T) {
	sessions := NewSessions(0)
	h := New(testSecret, sessions).Wrap(echoIdentity())

	recA, a := serve(t, h, "")
	require.Equal(t, http.StatusOK, recA.Code)
	recB, b := serve(t, h, "")
	require.Equal(t, http.StatusOK, recB.Code)

	assert.True(t, IsPseudo(a["id"].(string)))
	assert.True(t, IsPseudo(b["id"].(string)))
	assert.NotEqual(t, a["id"], b["id"], "clients without a session do not share an identity")
	assert.Equal(t, false, a["authenticated"])
	assert.Equal(t, 2, sessions.Len())

	cookieA := sessionCookie(t, recA)
	assert.True(t, cookieA.HttpOnly)
	rec, again := serve(t, h, "", cookieA)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, a["id"], again["id"], "the session reuses its pseudo id")
	assert.Empty(t, rec.Result().Cookies())

	rec, fresh := serve(t, h, "", &http.Cookie{Name: SessionCookie, Value: "forged"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, a["id"], fresh["id"])
	assert.NotEqual(t, "forged", sessionCookie(t, rec).Value)
}

func TestMiddleware_RejectsBadCredentials(t *testing.T) {
	h := New(testSecret, NewSessions(0)).Wrap(echoIdentity())

	rec, _ := serve(t, h, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, h, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnonymousHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	AnonymousHandler(testSecret, zap.NewNop())(rec, httptest.NewRequest(http.MethodPost, "/auth/anonymous", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID        string `json:"user_id"`
		Authenticated bool   `json:"authenticated"`
		Token         string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, IsPseudo(body.UserID))
	assert.False(t, body.Authenticated)

	ident, err := ParseToken(testSecret, body.Token)
	require.NoError(t, err)
	assert.Equal(t, body.UserID, ident.ID)
}

func TestMeHandler(t *testing.T) {
	h := New(testSecret, NewSessions(0)).Wrap(MeHandler())

	rec, body := serve(t, h, userToken(t, "user-me"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-me", body["user_id"])
	assert.Equal(t, true, body["authenticated"])
}

func TestSignInAndLogout(t *testing.T) {
	sessions := NewSessions(0)
	me := New(testSecret, sessions).Wrap(MeHandler())
	signIn := SignInHandler(testSecret, sessions, zap.NewNop())
	logout := New(testSecret, sessions).Wrap(LogoutHandler(sessions))

	rec, before := serve(t, me, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(t, rec)
	pseudo := before["user_id"]

	rec, body := serve(t, signIn, userToken(t, "user-1"), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", body["user_id"])

	rec, body = serve(t, me, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, true, body["authenticated"])

	rec, _ = serve(t, logout, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = serve(t, me, "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pseudo, body["user_id"], "logout falls back to the session's pseudo id")
	assert.Equal(t, false, body["authenticated"])
}

func TestSignInHandler_RequiresUserToken(t *testing.T) {
	signIn := SignInHandler(testSecret, NewSessions(0), zap.NewNop())

	rec, _ := serve(t, signIn, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(t, signIn, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	pseudo, err := GenerateToken(testSecret, Identity{ID: NewPseudoID()})
	require.NoError(t, err)
	rec, _ = serve(t, signIn, "Bearer "+pseudo)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
