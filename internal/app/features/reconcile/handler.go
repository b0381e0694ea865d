// internal/app/features/reconcile/handler.go
package reconcile

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/system/enrollment"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Runner performs one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (enrollment.Report, error)
}

type Handler struct {
	Reconciler Runner
	Log        *zap.Logger
	ErrLog     *errorsfeature.ErrorLogger
}

func NewHandler(rec Runner, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Reconciler: rec,
		Log:        logger,
		ErrLog:     errLog,
	}
}

type response struct {
	enrollment.Report
	TotalRepairs int `json:"total_repairs"`
}

// Serve handles POST /admin/reconcile.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "enrollment reconcile")
	defer cancel()

	report, err := h.Reconciler.Run(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	h.Log.Info("on-demand reconciliation finished",
		zap.Int("repairs", report.Total()),
		zap.Int("errors", report.Errors))
	errorsfeature.JSON(w, http.StatusOK, response{Report: report, TotalRepairs: report.Total()})
}
