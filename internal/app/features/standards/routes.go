// internal/app/features/standards/routes.go
package standards

import (
	"github.com/dalemusser/compliancehub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the standards router, mounted under /standards.
// Reads are open to any identified caller.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{number}", h.Show)
	r.With(authz.RequireRole(authz.RoleReviewer)).Post("/{number}/derive", h.Derive)
	r.With(authz.RequireRole(authz.RoleAdmin)).Post("/derive", h.DeriveAll)
	return r
}
