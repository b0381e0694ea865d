// internal/app/features/standards/handler.go
package standards

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/system/derivation"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Reader loads a standard by number.
type Reader interface {
	GetByNumber(ctx context.Context, number int) (models.Standard, error)
}

// Deriver is the status derivation engine.
type Deriver interface {
	Derive(ctx context.Context, number int) (derivation.Result, error)
	DeriveAll(ctx context.Context, parallelism int) (derivation.AllResult, error)
}

// Handler serves the standards endpoints.
type Handler struct {
	Standards Reader
	Engine    Deriver
	Log       *zap.Logger
	ErrLog    *errorsfeature.ErrorLogger
}

func NewHandler(standards Reader, engine Deriver, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Standards: standards,
		Engine:    engine,
		Log:       logger,
		ErrLog:    errLog,
	}
}

func numberParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n <= 0 {
		return 0, errs.Invalid("standard number must be a positive integer")
	}
	return n, nil
}

// Show handles GET /standards/{number}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	n, err := numberParam(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	st, err := h.Standards.GetByNumber(ctx, n)
	if err == mongo.ErrNoDocuments {
		h.ErrLog.Write(w, r, fmt.Errorf("standard %d: %w", n, errs.ErrNotFound))
		return
	}
	if err != nil {
		h.ErrLog.Write(w, r, errs.Storage("load standard", err))
		return
	}
	errorsfeature.JSON(w, http.StatusOK, st)
}

// Derive handles POST /standards/{number}/derive.
func (h *Handler) Derive(w http.ResponseWriter, r *http.Request) {
	n, err := numberParam(r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "derive standard")
	defer cancel()

	res, err := h.Engine.Derive(ctx, n)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusOK, res)
}

// DeriveAll handles POST /standards/derive.
func (h *Handler) DeriveAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "derive all standards")
	defer cancel()

	res, err := h.Engine.DeriveAll(ctx, 0)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Log.Info("re-derived all standards",
		zap.Int("derived", res.Derived),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	errorsfeature.JSON(w, http.StatusOK, res)
}
