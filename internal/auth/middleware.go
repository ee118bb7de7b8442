package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

type identityContextKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}

// Gate authenticates requests from their bearer access token. It never
// touches the credential store.
type Gate struct {
	codec *TokenCodec
}

func NewGate(codec *TokenCodec) *Gate {
	return &Gate{codec: codec}
}

// Authenticate turns an Authorization header value into an Identity.
func (g *Gate) Authenticate(header string) (Identity, error) {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return Identity{}, ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	claims, err := g.codec.Parse(token, TokenAccess)
	if err != nil {
		return Identity{}, err
	}

	return Identity{AccountID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

func (g *Gate) VerifyAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			status, message := StatusFor(err)
			writeError(w, status, message)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// CheckRole admits only identities whose role is in allowed. It must run
// after VerifyAccessToken.
func CheckRole(allowed ...Role) func(http.Handler) http.Handler {
	denied := fmt.Sprintf("Access denied. Required roles: %s", joinRoles(allowed))
	return checkRole(allowed, denied)
}

// CheckAdminPermission admits the roles that may manage accounts.
func CheckAdminPermission() func(http.Handler) http.Handler {
	return checkRole(RolesWith(CapManageAccounts), "Only admin and system admin can perform this action")
}

func checkRole(allowed []Role, denied string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := requireRole(r.Context(), allowed, denied); err != nil {
				status, message := StatusFor(err)
				writeError(w, status, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requireRole(ctx context.Context, allowed []Role, denied string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.AccountID == "" {
		return ErrAuthenticationRequired
	}
	if !slices.Contains(allowed, identity.Role) {
		return &ForbiddenError{Message: denied}
	}
	return nil
}
