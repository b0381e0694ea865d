// internal/app/features/submissions/handler.go
package submissions

import (
	"context"
	"net/http"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	lifecycle "github.com/dalemusser/compliancehub/internal/app/system/submissions"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Service is the submission lifecycle manager.
type Service interface {
	Create(ctx context.Context, agencyID primitive.ObjectID, number int, content lifecycle.Content) (models.Submission, error)
	Get(ctx context.Context, id, agencyID primitive.ObjectID) (models.Submission, error)
	ListByAgency(ctx context.Context, agencyID primitive.ObjectID) ([]models.Submission, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SubmissionStatus, comment string) (models.Submission, error)
	Update(ctx context.Context, id, agencyID primitive.ObjectID, patch models.SubmissionPatch) (models.Submission, error)
	Delete(ctx context.Context, id, agencyID primitive.ObjectID) error
}

// Handler serves the submissions endpoints.
type Handler struct {
	Submissions Service
	Log         *zap.Logger
	ErrLog      *errorsfeature.ErrorLogger
}

func NewHandler(svc Service, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Submissions: svc,
		Log:         logger,
		ErrLog:      errLog,
	}
}

func idParam(r *http.Request) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		return primitive.NilObjectID, errs.Invalid("submission id is not an object id")
	}
	return id, nil
}
