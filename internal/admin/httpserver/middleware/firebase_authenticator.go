package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/shinefiling/filing-admin/internal/admin/rbac"
)

var (
	// ErrTokenExpired is returned when the Firebase token has expired.
	ErrTokenExpired = errors.New("firebase token expired")
	// ErrNoStaffRole is returned for valid tokens that carry no staff role claim.
	ErrNoStaffRole = errors.New("token carries no staff role")
)

// FirebaseTokenVerifier is the subset of the Firebase auth client used here.
type FirebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseAuthenticator verifies Firebase ID tokens issued to filing staff.
// Staff roles come from the role, roles and admin custom claims. Client
// accounts carry none of them and are rejected.
type FirebaseAuthenticator struct {
	verifier FirebaseTokenVerifier
}

// NewFirebaseAuthenticator panics on a nil verifier.
func NewFirebaseAuthenticator(verifier FirebaseTokenVerifier) *FirebaseAuthenticator {
	if verifier == nil {
		panic("firebase token verifier is required")
	}
	return &FirebaseAuthenticator{verifier: verifier}
}

// Authenticate implements Authenticator.
func (f *FirebaseAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}

	verified, err := f.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) || errors.Is(err, ErrTokenExpired) {
			return nil, NewAuthError(ReasonTokenExpired, err)
		}
		return nil, NewAuthError(ReasonTokenInvalid, err)
	}

	claims := parseStaffClaims(verified.Claims)
	if len(claims.roles) == 0 {
		return nil, NewAuthError(ReasonTokenInvalid, ErrNoStaffRole)
	}
	return &User{
		UID:   verified.UID,
		Email: claims.email,
		Name:  claims.name,
		Roles: claims.roles,
		Token: token,
	}, nil
}

type staffClaims struct {
	email string
	name  string
	roles []string
}

func parseStaffClaims(raw map[string]any) staffClaims {
	claims := staffClaims{
		email: claimText(raw["email"]),
		name:  claimText(raw["name"]),
	}

	var names []string
	for _, key := range []string{"role", "roles"} {
		names = append(names, claimList(raw[key])...)
	}
	if claimFlag(raw["admin"]) {
		names = append(names, string(rbac.RoleAdmin))
	}
	for _, role := range rbac.NormaliseRoles(names) {
		if isStaffRole(role) {
			claims.roles = append(claims.roles, string(role))
		}
	}
	return claims
}

func isStaffRole(role rbac.Role) bool {
	switch role {
	case rbac.RoleAdmin, rbac.RoleSubAdmin, rbac.RoleSupport:
		return true
	}
	return false
}

func claimText(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// claimList accepts a single string, a string list, or a map of role flags.
func claimList(value any) []string {
	var out []string
	switch v := value.(type) {
	case string:
		out = append(out, v)
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case map[string]any:
		for name, enabled := range v {
			if claimFlag(enabled) {
				out = append(out, name)
			}
		}
	}
	return out
}

func claimFlag(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	}
	return false
}
