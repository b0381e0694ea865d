// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"
	"time"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Store is the audit query API shared by the Mongo and in-memory stores.
type Store interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
	GetInconsistencies(ctx context.Context, since time.Time, limit int64) ([]audit.Event, error)
}

type Handler struct {
	Store  Store
	Log    *zap.Logger
	ErrLog *errorsfeature.ErrorLogger
}

// NewHandler constructs an audit log feature handler.
func NewHandler(store Store, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		Log:    logger,
		ErrLog: errLog,
	}
}
