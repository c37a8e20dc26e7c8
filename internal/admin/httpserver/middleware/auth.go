// Package middleware authenticates console requests and guards routes by capability.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/shinefiling/filing-admin/internal/admin/httpx"
	"github.com/shinefiling/filing-admin/internal/admin/observability"
	"github.com/shinefiling/filing-admin/internal/admin/orders"
	"github.com/shinefiling/filing-admin/internal/admin/rbac"
)

type authContextKey string

const userContextKey authContextKey = "auth.user"

// User represents the authenticated staff member.
type User struct {
	UID   string
	Email string
	Name  string
	Roles []string
	Token string
}

// DisplayName returns the name shown on outgoing chat messages.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(u.Email); email != "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			return email[:at]
		}
		return email
	}
	return u.UID
}

// ChatRole returns the chat sender role derived from the staff roles.
func (u *User) ChatRole() string {
	if u == nil {
		return rbac.ChatRole(nil)
	}
	return rbac.ChatRole(u.Roles)
}

// Authenticator resolves an incoming Bearer token into a User.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (*User, error)
}

// ErrUnauthorized is returned when authentication fails.
var ErrUnauthorized = errors.New("unauthorized")

// AuthError contains reason codes for failed authentication attempts.
type AuthError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError with the provided reason.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

const (
	// ReasonMissingToken indicates an auth attempt without credentials.
	ReasonMissingToken = "missing_token"
	// ReasonTokenInvalid indicates a malformed or invalid token.
	ReasonTokenInvalid = "token_invalid"
	// ReasonTokenExpired indicates an expired token which may be recoverable.
	ReasonTokenExpired = "token_expired"
)

// DefaultAuthenticator accepts any non-empty bearer token as an admin. Local development only.
func DefaultAuthenticator() Authenticator {
	return &passthroughAuthenticator{}
}

// Auth validates incoming requests and attaches the User and the acting
// staff member to the context. Failures answer 401 with the JSON envelope.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	if authenticator == nil {
		authenticator = DefaultAuthenticator()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := requestToken(r)
			if token == "" {
				unauthorized(w, r, ReasonMissingToken, ErrUnauthorized)
				return
			}

			user, err := authenticator.Authenticate(r, token)
			if err != nil || user == nil {
				reason, cause := failureReason(err)
				unauthorized(w, r, reason, cause)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = orders.WithActor(ctx, orders.Actor{ID: user.UID, Email: user.Email})
			ctx = observability.WithLogger(ctx, observability.FromContext(ctx).With(zap.String("uid", user.UID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// WithUser attaches user to ctx.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// requestToken reads the Bearer header, then the Firebase Hosting session
// cookies.
func requestToken(r *http.Request) string {
	const prefix = "bearer "
	if header := r.Header.Get("Authorization"); len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		if token := strings.TrimSpace(header[len(prefix):]); token != "" {
			return token
		}
	}
	for _, name := range []string{"__session", "idToken"} {
		if c, err := r.Cookie(name); err == nil {
			if val := strings.TrimSpace(c.Value); val != "" {
				return val
			}
		}
	}
	return ""
}

func failureReason(err error) (string, error) {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		if err == nil {
			err = ErrUnauthorized
		}
		return ReasonTokenInvalid, err
	}
	reason := authErr.Reason
	if reason == "" {
		reason = ReasonTokenInvalid
	}
	if authErr.Err == nil {
		return reason, ErrUnauthorized
	}
	return reason, authErr.Err
}

func unauthorized(w http.ResponseWriter, r *http.Request, reason string, err error) {
	observability.FromContext(r.Context()).Warn("auth failure",
		zap.String("reason", reason),
		zap.Error(err),
	)
	message := "authentication required"
	if reason == ReasonTokenExpired {
		message = "session expired, sign in again"
	}
	httpx.WriteError(r.Context(), w, httpx.NewError(reason, message, http.StatusUnauthorized))
}

type passthroughAuthenticator struct{}

func (p *passthroughAuthenticator) Authenticate(_ *http.Request, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	return &User{
		UID:   token,
		Name:  "Support",
		Roles: []string{string(rbac.RoleAdmin)},
		Token: token,
	}, nil
}
