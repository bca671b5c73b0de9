package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-fulfillment/internal/domain/access"
	"github.com/xenking/kart-fulfillment/internal/identity"
	"github.com/xenking/kart-fulfillment/pkg/httpmiddleware"
)

// Authenticator resolves a bearer token to a principal.
type Authenticator interface {
	Authenticate(token string) (*access.Principal, error)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *access.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal, or nil for anonymous
// requests.
func PrincipalFrom(ctx context.Context) *access.Principal {
	p, _ := ctx.Value(principalKey{}).(*access.Principal)
	return p
}

// authenticate attaches the bearer token's principal to the request.
// Requests without a token continue anonymously; the engine denies them
// wherever a principal is required. A present but invalid token is 401.
func authenticate(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				fail(w, r, identity.ErrInvalidToken)
				return
			}
			p, err := auth.Authenticate(strings.TrimSpace(token))
			if err != nil {
				zctx.From(r.Context()).Debug("Rejected token", zap.Error(err))
				fail(w, r, identity.ErrInvalidToken)
				return
			}

			ctx := WithPrincipal(r.Context(), p)
			ctx = zctx.With(ctx, zap.String("principal", p.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitKey keys rate limiting by principal, falling back to the client
// address for anonymous requests.
func RateLimitKey(r *http.Request) string {
	if p := PrincipalFrom(r.Context()); p != nil {
		return "principal:" + p.ID
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}
