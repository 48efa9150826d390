package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	domainauth "github.com/skala/skip-session/internal/domain/auth"
	"github.com/skala/skip-session/internal/ports"
	"github.com/skala/skip-session/internal/service"
)

// maxRedirects bounds guard redirect chains.
const maxRedirects = 5

// ErrRedirectLoop is returned when guard redirects do not settle.
var ErrRedirectLoop = errors.New("too many navigation redirects")

// RouteGuard decides whether a transition may proceed.
type RouteGuard interface {
	Before(ctx context.Context, to domainauth.Route) service.Decision
}

// Options groups dependencies for Router.
type Options struct {
	Table  *Table     // Required
	Guard  RouteGuard // Optional: nil allows every transition
	Logger *slog.Logger
}

// Router tracks the current route. Push runs the guard; Navigate is the
// unguarded redirect used by the request pipeline and is safe to call while
// a Push is evaluating its guard.
type Router struct {
	table  *Table
	guard  RouteGuard
	logger *slog.Logger

	mu      sync.RWMutex
	current domainauth.Route
	started bool
	// gen increments on every applied transition so a Push whose guard ran
	// concurrently with a hard Navigate yields to it.
	gen uint64
}

var _ ports.Navigator = (*Router)(nil)

// New constructs a Router.
func New(opts Options) *Router {
	if opts.Table == nil {
		panic("route table is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		table:  opts.Table,
		guard:  opts.Guard,
		logger: logger.With("component", "router"),
	}
}

// SetGuard installs the guard after construction; the guard depends on a
// session whose pipeline depends on this router.
func (r *Router) SetGuard(g RouteGuard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guard = g
}

// Push requests a guarded transition to path, following redirects, and
// returns the route finally shown.
func (r *Router) Push(ctx context.Context, path string) (domainauth.Route, error) {
	r.mu.RLock()
	guard := r.guard
	gen := r.gen
	r.mu.RUnlock()

	target := path
	for range maxRedirects + 1 {
		route, err := r.table.Lookup(target)
		if err != nil {
			return domainauth.Route{}, err
		}

		if guard != nil {
			d := guard.Before(ctx, route)
			if !d.Allowed() {
				r.logger.DebugContext(ctx, "redirected", "from", route.Path, "to", d.Path, "decision", d.Kind)
				target = d.Path
				continue
			}
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen != gen {
			// A hard navigation won the race.
			return r.current, nil
		}
		r.apply(route)
		r.logger.InfoContext(ctx, "navigated", "path", route.Path, "requested", path)
		return route, nil
	}
	return domainauth.Route{}, fmt.Errorf("%w: %s", ErrRedirectLoop, path)
}

// Navigate moves to path without consulting the guard.
func (r *Router) Navigate(ctx context.Context, path string) error {
	route, err := r.table.Lookup(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.apply(route)
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "redirected", "path", route.Path)
	return nil
}

func (r *Router) apply(route domainauth.Route) {
	r.current = route
	r.started = true
	r.gen++
}

// Current returns the route being shown; ok is false before the first
// transition.
func (r *Router) Current() (route domainauth.Route, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.started
}

// Table returns the route table.
func (r *Router) Table() *Table { return r.table }
