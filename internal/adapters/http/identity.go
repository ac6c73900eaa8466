package httpadapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/telarian/switchboard/internal/core/domain"
)

// IdentityHeaders names the trusted headers the edge proxy sets after
// authenticating the caller. This service never authenticates; it only
// reads the identity the proxy resolved.
type IdentityHeaders struct {
	UserID      string
	Role        string
	Permissions string
}

func DefaultIdentityHeaders() IdentityHeaders {
	return IdentityHeaders{
		UserID:      "X-User-Id",
		Role:        "X-User-Role",
		Permissions: "X-User-Permissions",
	}
}

type userContextKey struct{}

func userFromContext(ctx context.Context) (domain.UserContext, error) {
	user, ok := ctx.Value(userContextKey{}).(domain.UserContext)
	if !ok || strings.TrimSpace(user.UserID) == "" {
		return domain.UserContext{}, domain.WrapError(domain.ErrUnauthorized, "resolve identity", fmt.Errorf("missing user identity"))
	}
	return user, nil
}

func identityMiddleware(headers IdentityHeaders, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(headers.UserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		user := domain.UserContext{
			UserID: userID,
			Role:   strings.TrimSpace(r.Header.Get(headers.Role)),
		}
		if raw := strings.TrimSpace(r.Header.Get(headers.Permissions)); raw != "" {
			for _, perm := range strings.Split(raw, ",") {
				if perm = strings.TrimSpace(perm); perm != "" {
					user.Permissions = append(user.Permissions, perm)
				}
			}
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
