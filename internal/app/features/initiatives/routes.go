// internal/app/features/initiatives/routes.go
package initiatives

import (
	"github.com/dalemusser/compliancehub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the initiatives router, mounted under /initiatives.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.Show)
	r.Post("/{id}/volunteers/{volunteerID}", h.Enroll)
	r.Delete("/{id}/volunteers/{volunteerID}", h.Withdraw)
	r.With(authz.RequireRole(authz.RoleAdmin)).Put("/{id}/status", h.SetStatus)
	return r
}
