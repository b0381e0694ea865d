// internal/app/features/reconcile/routes.go
package reconcile

import (
	"github.com/dalemusser/compliancehub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the reconcile router. A full scan is expensive, so
// requests are throttled per client by limiter.
func Routes(h *Handler, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.With(ratelimit.Middleware(limiter)).Post("/", h.Serve)
	return r
}
