// internal/app/features/submissions/view.go
package submissions

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/system/authz"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/domain/models"
)

// List handles GET /submissions: the caller's agency submissions, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := authz.CallerCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	subs, err := h.Submissions.ListByAgency(ctx, caller.AgencyID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	errorsfeature.JSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// Show handles GET /submissions/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	caller, _ := authz.CallerCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sub, err := h.Submissions.Get(ctx, id, caller.AgencyID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, sub)
}
