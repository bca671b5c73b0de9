// Package httpmiddleware contains the net/http middleware chain shared by
// the API server: panic recovery, request ids, request-scoped logging,
// rate limiting and OpenTelemetry instrumentation.
package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares so that the first one is the outermost.
func Wrap(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RouteFinder returns the route pattern serving r, or "" if none matches.
type RouteFinder func(r *http.Request) string

// MakeRouteFinder resolves route patterns against a chi router. It is used by
// middleware that runs outside the router and so never sees chi's own
// routing context.
func MakeRouteFinder(routes chi.Routes) RouteFinder {
	return func(r *http.Request) string {
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				return p
			}
		}
		rctx := chi.NewRouteContext()
		if !routes.Match(rctx, r.Method, r.URL.Path) {
			return ""
		}
		return rctx.RoutePattern()
	}
}

func routeOr(find RouteFinder, r *http.Request) string {
	if find != nil {
		if p := find(r); p != "" {
			return p
		}
	}
	return "unknown"
}
