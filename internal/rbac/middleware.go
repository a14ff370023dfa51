package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/procureflow/internal/platform/httpx"
	"github.com/odyssey-erp/procureflow/internal/shared"
)

// SessionResolver maps a request token to a user id.
type SessionResolver interface {
	TokenFromRequest(r *http.Request) string
	Lookup(ctx context.Context, token string) (int64, error)
}

// ActorLoader resolves a user id to an actor.
type ActorLoader interface {
	LoadActor(ctx context.Context, userID int64) (shared.Actor, error)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Sessions SessionResolver
	Actors   ActorLoader
	Logger   *slog.Logger
}

// ActorMiddleware attaches the session's actor to the request context.
// Requests without a valid session pass through anonymously and the handlers
// decide whether that is acceptable.
func (m Middleware) ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.Sessions.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := m.Sessions.Lookup(r.Context(), token)
		if err != nil {
			if !errors.Is(err, shared.ErrSessionNotFound) {
				m.logger().Error("rbac session lookup", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		actor, err := m.Actors.LoadActor(r.Context(), userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInactiveUser) {
				next.ServeHTTP(w, r)
				return
			}
			m.logger().Error("rbac load actor", slog.Int64("user_id", userID), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireAny ensures the current actor has at least one of the capabilities.
func (m Middleware) RequireAny(caps ...shared.Capability) func(http.Handler) http.Handler {
	return m.require(func(a shared.Actor) bool { return len(caps) == 0 || a.HasAny(caps...) })
}

// RequireAll ensures the current actor has every capability.
func (m Middleware) RequireAll(caps ...shared.Capability) func(http.Handler) http.Handler {
	return m.require(func(a shared.Actor) bool {
		for _, c := range caps {
			if !a.Has(c) {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(allowed func(shared.Actor) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !allowed(actor) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
