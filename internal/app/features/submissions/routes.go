// internal/app/features/submissions/routes.go
package submissions

import (
	"github.com/dalemusser/compliancehub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the submissions router, mounted under /submissions.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Agency-owned operations.
	r.Group(func(r chi.Router) {
		r.Use(authz.RequireAgency)
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	r.With(authz.RequireRole(authz.RoleReviewer)).Put("/{id}/status", h.UpdateStatus)
	return r
}
