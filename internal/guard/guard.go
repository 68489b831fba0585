// Package guard holds the consumers of the session verdict: a navigation
// guard for protected routes and an HTTP client that authenticates requests.
package guard

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/photoctl/internal/session"
)

const (
	LoginPath     = "/auth/login"
	DashboardPath = "/dashboard"
)

// Route describes a navigable path. Segments starting with ':' match any
// single segment.
type Route struct {
	Path         string
	RequiresAuth bool
	GuestOnly    bool
}

// DefaultRoutes are the photo service pages.
var DefaultRoutes = []Route{
	{Path: "/dashboard", RequiresAuth: true},
	{Path: "/images/upload", RequiresAuth: true},
	{Path: "/images/:imageId/tags", RequiresAuth: true},
	{Path: "/auth/login", GuestOnly: true},
	{Path: "/auth/register", GuestOnly: true},
}

// Decision is the guard's verdict. An empty Redirect means navigation may
// proceed.
type Decision struct {
	Redirect string
}

// Allowed reports whether navigation may proceed.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Authenticator is the part of *session.Manager the guard needs.
type Authenticator interface {
	EnsureSession(ctx context.Context, force bool) session.Outcome
	IsAuthenticated() bool
}

// Guard decides whether a navigation may proceed.
type Guard struct {
	auth   Authenticator
	routes []Route
}

// New creates a guard over routes, DefaultRoutes when none are given.
func New(auth Authenticator, routes ...Route) *Guard {
	if len(routes) == 0 {
		routes = DefaultRoutes
	}
	return &Guard{auth: auth, routes: routes}
}

// Check evaluates route for a navigation to fullPath, the path including its
// query, which is carried through the login redirect.
func (g *Guard) Check(ctx context.Context, route Route, fullPath string) Decision {
	g.auth.EnsureSession(ctx, false)
	authenticated := g.auth.IsAuthenticated()

	switch {
	case route.RequiresAuth && !authenticated:
		log.Debug().Str("path", fullPath).Msg("protected route, redirecting to login")
		return Decision{Redirect: LoginPath + "?" + url.Values{"redirect": {fullPath}}.Encode()}
	case route.GuestOnly && authenticated:
		return Decision{Redirect: DashboardPath}
	default:
		return Decision{}
	}
}

// Navigate resolves fullPath against the route table and checks it. The root
// and unknown paths redirect to the dashboard.
func (g *Guard) Navigate(ctx context.Context, fullPath string) Decision {
	route, ok := g.Match(fullPath)
	if !ok {
		return Decision{Redirect: DashboardPath}
	}
	return g.Check(ctx, route, fullPath)
}

// Match finds the route for fullPath, ignoring any query or fragment.
func (g *Guard) Match(fullPath string) (Route, bool) {
	path := fullPath
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	segments := splitPath(path)

	for _, r := range g.routes {
		if matchSegments(splitPath(r.Path), segments) {
			return r, true
		}
	}
	return Route{}, false
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, ":") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if seg != segments[i] {
			return false
		}
	}
	return true
}
