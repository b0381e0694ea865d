// internal/app/features/submissions/edit.go
package submissions

import (
	"net/http"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/system/authz"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/domain/models"
)

type patchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Notes       *string `json:"notes"`
}

type statusRequest struct {
	Status  models.SubmissionStatus `json:"status"`
	Comment string                  `json:"comment"`
}

// Update handles PATCH /submissions/{id}. Only the owning agency may edit.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var req patchRequest
	if err := errorsfeature.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	caller, _ := authz.CallerCtx(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update submission")
	defer cancel()

	sub, err := h.Submissions.Update(ctx, id, caller.AgencyID, models.SubmissionPatch{
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, sub)
}

// UpdateStatus handles PUT /submissions/{id}/status (reviewers).
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var req statusRequest
	if err := errorsfeature.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "review submission")
	defer cancel()

	sub, err := h.Submissions.UpdateStatus(ctx, id, req.Status, req.Comment)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, sub)
}

// Delete handles DELETE /submissions/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	caller, _ := authz.CallerCtx(r)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "delete submission")
	defer cancel()

	if err := h.Submissions.Delete(ctx, id, caller.AgencyID); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
