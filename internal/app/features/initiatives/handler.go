// internal/app/features/initiatives/handler.go
package initiatives

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/system/enrollment"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Service is the enrollment consistency manager.
type Service interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Initiative, error)
	Enroll(ctx context.Context, initiativeID, volunteerID primitive.ObjectID) (enrollment.EnrollResult, error)
	Withdraw(ctx context.Context, initiativeID, volunteerID primitive.ObjectID) (enrollment.WithdrawResult, error)
	SetStatus(ctx context.Context, initiativeID primitive.ObjectID, next models.InitiativeStatus) (models.Initiative, error)
}

// Handler serves the initiatives endpoints.
type Handler struct {
	Enrollment Service
	Log        *zap.Logger
	ErrLog     *errorsfeature.ErrorLogger
}

func NewHandler(svc Service, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Enrollment: svc,
		Log:        logger,
		ErrLog:     errLog,
	}
}

func objectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, errs.Invalid("%s is not an object id", name)
	}
	return id, nil
}

// pairParams reads {id} and {volunteerID}.
func pairParams(r *http.Request) (initiativeID, volunteerID primitive.ObjectID, err error) {
	if initiativeID, err = objectIDParam(r, "id"); err != nil {
		return
	}
	volunteerID, err = objectIDParam(r, "volunteerID")
	return
}

// Show handles GET /initiatives/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	in, err := h.Enrollment.Get(ctx, id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, in)
}

// Enroll handles POST /initiatives/{id}/volunteers/{volunteerID}.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	initiativeID, volunteerID, err := pairParams(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "enroll volunteer")
	defer cancel()

	res, err := h.Enrollment.Enroll(ctx, initiativeID, volunteerID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, res)
}

// Withdraw handles DELETE /initiatives/{id}/volunteers/{volunteerID}.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	initiativeID, volunteerID, err := pairParams(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "withdraw volunteer")
	defer cancel()

	res, err := h.Enrollment.Withdraw(ctx, initiativeID, volunteerID)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, res)
}

type statusRequest struct {
	Status models.InitiativeStatus `json:"status"`
}

// SetStatus handles PUT /initiatives/{id}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := objectIDParam(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var req statusRequest
	if err := errorsfeature.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "set initiative status")
	defer cancel()

	in, err := h.Enrollment.SetStatus(ctx, id, req.Status)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, in)
}
