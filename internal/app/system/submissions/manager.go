// internal/app/system/submissions/manager.go

// Package submissions manages the submission lifecycle: agencies create,
// edit, and delete their evidence; reviewers change its status. Every
// committed change re-derives the affected standard.
package submissions

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalemusser/compliancehub/internal/app/system/attachments"
	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/app/system/derivation"
	"github.com/dalemusser/compliancehub/internal/app/system/metrics"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Derivation triggers, recorded on swallowed failures.
const (
	TriggerCreated       = "submission_created"
	TriggerUpdated       = "submission_updated"
	TriggerStatusChanged = "submission_status_changed"
	TriggerDeleted       = "submission_deleted"
	TriggerRolledBack    = "submission_rolled_back"
)

// SubmissionStore is the subset of the submissions store the manager needs.
type SubmissionStore interface {
	Create(ctx context.Context, sub models.Submission) (models.Submission, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Submission, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SubmissionStatus, comment string) (models.Submission, error)
	UpdateContent(ctx context.Context, id primitive.ObjectID, patch models.SubmissionPatch) (models.Submission, error)
	AddAttachments(ctx context.Context, id primitive.ObjectID, urls []string) (models.Submission, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	ListByAgency(ctx context.Context, agency primitive.ObjectID) ([]models.Submission, error)
}

// StandardReader checks that a standard exists.
type StandardReader interface {
	GetByNumber(ctx context.Context, number int) (models.Standard, error)
}

// Deriver recomputes a standard's cached status.
type Deriver interface {
	Derive(ctx context.Context, number int) (derivation.Result, error)
}

// AttachmentStore moves uploaded files into permanent storage.
type AttachmentStore interface {
	MoveToPermanent(ctx context.Context, ownerID string, files []attachments.TempFile) ([]string, error)
	Remove(ctx context.Context, urls []string) error
}

// Content is the agency-authored part of a new submission.
type Content struct {
	Title       string
	Description string
	Notes       string
	Files       []attachments.TempFile
}

// Manager is the submission lifecycle manager.
type Manager struct {
	subs        SubmissionStore
	standards   StandardReader
	deriver     Deriver
	attachments AttachmentStore
	audit       *auditlog.Logger
	metrics     *metrics.Metrics
	log         *zap.Logger
}

// New constructs a Manager. attach may be nil when uploads are disabled;
// creating a submission with files then fails as invalid input.
func New(subs SubmissionStore, standards StandardReader, deriver Deriver, attach AttachmentStore,
	audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Manager {
	return &Manager{
		subs:        subs,
		standards:   standards,
		deriver:     deriver,
		attachments: attach,
		audit:       audit,
		metrics:     m,
		log:         logger,
	}
}

// Create files a new pending submission for agencyID against the standard.
//
// When files are attached, the record is inserted first and the files are
// moved into permanent storage afterwards. If that fails the new record is
// deleted again and the error is returned.
func (m *Manager) Create(ctx context.Context, agencyID primitive.ObjectID, number int, content Content) (models.Submission, error) {
	if agencyID.IsZero() {
		return models.Submission{}, errs.Invalid("agency is required")
	}
	if number <= 0 {
		return models.Submission{}, errs.Invalid("standard number must be positive")
	}
	if strings.TrimSpace(content.Title) == "" {
		return models.Submission{}, errs.Invalid("title is required")
	}
	if len(content.Files) > 0 && m.attachments == nil {
		return models.Submission{}, errs.Invalid("attachments are not enabled")
	}

	if _, err := m.standards.GetByNumber(ctx, number); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Submission{}, fmt.Errorf("standard %d: %w", number, errs.ErrNotFound)
		}
		return models.Submission{}, errs.Storage("load standard", err)
	}

	sub, err := m.subs.Create(ctx, models.Submission{
		StandardNumber: number,
		Agency:         agencyID,
		Status:         models.SubmissionPending,
		Title:          strings.TrimSpace(content.Title),
		Description:    content.Description,
		Notes:          content.Notes,
	})
	if err != nil {
		return models.Submission{}, errs.Storage("create submission", err)
	}

	if len(content.Files) > 0 {
		withFiles, err := m.attach(ctx, sub, content.Files)
		if err != nil {
			m.rollback(ctx, sub, err)
			return models.Submission{}, err
		}
		sub = withFiles
	}

	m.audit.SubmissionCreated(ctx, sub)
	m.rederive(ctx, sub.StandardNumber, TriggerCreated)
	return sub, nil
}

func (m *Manager) attach(ctx context.Context, sub models.Submission, files []attachments.TempFile) (models.Submission, error) {
	urls, err := m.attachments.MoveToPermanent(ctx, sub.Agency.Hex(), files)
	if err != nil {
		return models.Submission{}, errs.Storage("store attachments", err)
	}
	updated, err := m.subs.AddAttachments(ctx, sub.ID, urls)
	if err != nil {
		if rmErr := m.attachments.Remove(context.WithoutCancel(ctx), urls); rmErr != nil {
			m.log.Warn("failed to remove attachments after record update failed",
				zap.String("submission_id", sub.ID.Hex()),
				zap.Error(rmErr))
		}
		return models.Submission{}, errs.Storage("record attachments", err)
	}
	return updated, nil
}

// rollback deletes a just-created submission whose attachments could not be
// stored, then re-derives in case a concurrent derivation counted it.
func (m *Manager) rollback(ctx context.Context, sub models.Submission, cause error) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()

	m.metrics.IncrementRollback()
	_, err := m.subs.Delete(dctx, sub.ID)
	if err != nil {
		m.log.Error("failed to roll back submission after attachment failure",
			zap.String("submission_id", sub.ID.Hex()),
			zap.Int("standard_number", sub.StandardNumber),
			zap.NamedError("cause", cause),
			zap.Error(err))
	} else {
		m.log.Warn("rolled back submission after attachment failure",
			zap.String("submission_id", sub.ID.Hex()),
			zap.Int("standard_number", sub.StandardNumber),
			zap.Error(cause))
	}
	m.audit.SubmissionRolledBack(dctx, sub, cause, err == nil)
	m.rederive(ctx, sub.StandardNumber, TriggerRolledBack)
}

// Get returns a submission owned by agencyID.
func (m *Manager) Get(ctx context.Context, id, agencyID primitive.ObjectID) (models.Submission, error) {
	sub, err := m.load(ctx, id)
	if err != nil {
		return models.Submission{}, err
	}
	if sub.Agency != agencyID {
		return models.Submission{}, errs.ErrForbidden
	}
	return sub, nil
}

// ListByAgency returns an agency's submissions, newest first.
func (m *Manager) ListByAgency(ctx context.Context, agencyID primitive.ObjectID) ([]models.Submission, error) {
	subs, err := m.subs.ListByAgency(ctx, agencyID)
	if err != nil {
		return nil, errs.Storage("list submissions", err)
	}
	return subs, nil
}

// UpdateStatus records a review decision.
func (m *Manager) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SubmissionStatus, comment string) (models.Submission, error) {
	if !status.Valid() {
		return models.Submission{}, errs.Invalid("unknown submission status %q", status)
	}
	before, err := m.load(ctx, id)
	if err != nil {
		return models.Submission{}, err
	}

	sub, err := m.subs.UpdateStatus(ctx, id, status, comment)
	if err == mongo.ErrNoDocuments {
		return models.Submission{}, fmt.Errorf("submission %s: %w", id.Hex(), errs.ErrNotFound)
	}
	if err != nil {
		return models.Submission{}, errs.Storage("update submission status", err)
	}

	m.audit.SubmissionStatusChanged(ctx, sub, before.Status)
	m.rederive(ctx, sub.StandardNumber, TriggerStatusChanged)
	return sub, nil
}

// Update edits the content of a submission owned by agencyID. The review
// status is left as is.
func (m *Manager) Update(ctx context.Context, id, agencyID primitive.ObjectID, patch models.SubmissionPatch) (models.Submission, error) {
	sub, err := m.load(ctx, id)
	if err != nil {
		return models.Submission{}, err
	}
	if sub.Agency != agencyID {
		return models.Submission{}, errs.ErrForbidden
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Submission{}, errs.Invalid("title cannot be empty")
	}
	if patch.IsEmpty() {
		return sub, nil
	}

	updated, err := m.subs.UpdateContent(ctx, id, patch)
	if err == mongo.ErrNoDocuments {
		return models.Submission{}, fmt.Errorf("submission %s: %w", id.Hex(), errs.ErrNotFound)
	}
	if err != nil {
		return models.Submission{}, errs.Storage("update submission", err)
	}

	m.audit.SubmissionUpdated(ctx, updated, changedFields(patch))
	m.rederive(ctx, updated.StandardNumber, TriggerUpdated)
	return updated, nil
}

// Delete removes a submission owned by agencyID along with its attachments.
// Attachment removal is best-effort.
func (m *Manager) Delete(ctx context.Context, id, agencyID primitive.ObjectID) error {
	sub, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if sub.Agency != agencyID {
		return errs.ErrForbidden
	}

	n, err := m.subs.Delete(ctx, id)
	if err != nil {
		return errs.Storage("delete submission", err)
	}
	if n == 0 {
		return fmt.Errorf("submission %s: %w", id.Hex(), errs.ErrNotFound)
	}

	if len(sub.Attachments) > 0 && m.attachments != nil {
		if err := m.attachments.Remove(ctx, sub.Attachments); err != nil {
			m.log.Warn("failed to remove attachments of deleted submission",
				zap.String("submission_id", id.Hex()),
				zap.Error(err))
		}
	}

	m.audit.SubmissionDeleted(ctx, sub)
	m.rederive(ctx, sub.StandardNumber, TriggerDeleted)
	return nil
}

func (m *Manager) load(ctx context.Context, id primitive.ObjectID) (models.Submission, error) {
	sub, err := m.subs.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return models.Submission{}, fmt.Errorf("submission %s: %w", id.Hex(), errs.ErrNotFound)
	}
	if err != nil {
		return models.Submission{}, errs.Storage("load submission", err)
	}
	return sub, nil
}

// rederive runs after the triggering write has committed. Failures are
// logged and never returned: the submission write stands on its own.
func (m *Manager) rederive(ctx context.Context, number int, trigger string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Medium())
	defer cancel()

	if _, err := m.deriver.Derive(dctx, number); err != nil {
		m.metrics.IncrementDerivationSwallowed(trigger)
		m.log.Error("standard derivation failed after submission change",
			zap.Int("standard_number", number),
			zap.String("trigger", trigger),
			zap.String("kind", string(errs.KindOf(err))),
			zap.Error(err))
		m.audit.DerivationFailed(dctx, number, trigger, err)
	}
}

func changedFields(p models.SubmissionPatch) string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Notes != nil {
		fields = append(fields, "notes")
	}
	return strings.Join(fields, ",")
}
