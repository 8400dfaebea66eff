package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/watchcraft/shop"
)

type actorKey struct{}

func withActor(ctx context.Context, a shop.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFrom returns the authenticated actor. Outside RequireAuth it is the
// zero Actor, whose empty role has no sections.
func actorFrom(ctx context.Context) shop.Actor {
	a, _ := ctx.Value(actorKey{}).(shop.Actor)
	return a
}

// RequireAuth checks HTTP Basic credentials on every request. There is no
// server-side session.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="watchcraft"`)
			writeError(w, http.StatusUnauthorized, "authentication required", nil)
			return
		}
		actor, err := h.Engine.Authenticate(r.Context(), username, password)
		if err != nil {
			h.Logger.WarnContext(r.Context(), "authentication failed",
				slog.String("user", username),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}
