package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/rbac"
)

type mockAuthenticator struct {
	token string
	user  *User
	err   error
}

func (m *mockAuthenticator) Authenticate(_ *http.Request, token string) (*User, error) {
	if token != m.token {
		return nil, ErrUnauthorized
	}
	return m.user, m.err
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	newHandler := func(auth Authenticator) http.Handler {
		return Auth(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			require.True(t, ok)
			actor, ok := orders.ActorFromContext(r.Context())
			require.True(t, ok)
			require.Equal(t, user.UID, actor.ID)
			w.WriteHeader(http.StatusOK)
		}))
	}

	t.Run("missing token answers 401", func(t *testing.T) {
		t.Parallel()
		handler := newHandler(&mockAuthenticator{token: "valid", user: &User{UID: "staff-1"}})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/api/orders", nil))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Equal(t, ReasonMissingToken, decodeError(t, rr)["error"])
	})

	t.Run("valid bearer token passes through", func(t *testing.T) {
		t.Parallel()
		handler := newHandler(&mockAuthenticator{token: "valid", user: &User{UID: "staff-1"}})
		req := httptest.NewRequest(http.MethodGet, "/admin/api/orders", nil)
		req.Header.Set("Authorization", "Bearer valid")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("token from cookie passes through", func(t *testing.T) {
		t.Parallel()
		handler := newHandler(&mockAuthenticator{token: "valid", user: &User{UID: "staff-1"}})
		req := httptest.NewRequest(http.MethodGet, "/admin/api/orders", nil)
		req.AddCookie(&http.Cookie{Name: "__session", Value: "valid"})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("expired token reports reason", func(t *testing.T) {
		t.Parallel()
		handler := newHandler(&mockAuthenticator{
			token: "valid",
			user:  &User{UID: "staff-1"},
			err:   NewAuthError(ReasonTokenExpired, errors.New("expired")),
		})
		req := httptest.NewRequest(http.MethodGet, "/admin/api/orders", nil)
		req.Header.Set("Authorization", "Bearer valid")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Equal(t, ReasonTokenExpired, decodeError(t, rr)["error"])
	})
}

func TestRequireCapability(t *testing.T) {
	t.Parallel()

	handler := RequireCapability(rbac.CapOrdersDelete)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name string
		user *User
		want int
	}{
		{name: "anonymous", want: http.StatusForbidden},
		{name: "sub admin", user: &User{UID: "s", Roles: []string{"sub_admin"}}, want: http.StatusForbidden},
		{name: "admin", user: &User{UID: "a", Roles: []string{"admin"}}, want: http.StatusNoContent},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodDelete, "/admin/api/orders/ORD-42", nil)
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), tc.user))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestUserDisplayNameAndChatRole(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Meera", (&User{Name: "Meera", Email: "meera@shine.in"}).DisplayName())
	require.Equal(t, "meera", (&User{Email: "meera@shine.in"}).DisplayName())
	require.Equal(t, "uid-1", (&User{UID: "uid-1"}).DisplayName())
	require.Equal(t, "SUB_ADMIN", (&User{Roles: []string{"sub_admin"}}).ChatRole())
	require.Equal(t, "ADMIN", (&User{Roles: []string{"support"}}).ChatRole())
}
