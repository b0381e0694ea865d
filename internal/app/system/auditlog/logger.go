// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/compliancehub/internal/app/store/audit"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Logging modes accepted by Config fields.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Compliance controls logging for submission and derivation events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Compliance string
	// Enrollment controls logging for roster changes and consistency repairs.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Enrollment string
}

// Writer persists audit events. *audit.Store and the in-memory recorder
// both satisfy it.
type Writer interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to a Writer and to structured logs (via zap).
type Logger struct {
	store  Writer
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil, in which case "db"
// destinations are skipped.
func New(store Writer, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}

	if event.AgencyID != nil {
		fields = append(fields, zap.String("agency_id", event.AgencyID.Hex()))
	}
	if event.StandardNumber > 0 {
		fields = append(fields, zap.Int("standard_number", event.StandardNumber))
	}
	if event.SubmissionID != nil {
		fields = append(fields, zap.String("submission_id", event.SubmissionID.Hex()))
	}
	if event.InitiativeID != nil {
		fields = append(fields, zap.String("initiative_id", event.InitiativeID.Hex()))
	}
	if event.VolunteerID != nil {
		fields = append(fields, zap.String("volunteer_id", event.VolunteerID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryCompliance:
		setting = l.config.Compliance
	case audit.CategoryEnrollment:
		setting = l.config.Enrollment
	}
	if setting == "" {
		setting = ModeAll
	}

	if setting == ModeOff {
		return
	}

	if setting == ModeAll || setting == ModeLog {
		l.logToZap(event)
	}

	if (setting == ModeAll || setting == ModeDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Compliance Events ---

// SubmissionCreated logs a new submission.
func (l *Logger) SubmissionCreated(ctx context.Context, sub models.Submission) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		EventType:      audit.EventSubmissionCreated,
		AgencyID:       &sub.Agency,
		StandardNumber: sub.StandardNumber,
		SubmissionID:   &sub.ID,
		Success:        true,
		Details: map[string]string{
			"attachments": strconv.Itoa(len(sub.Attachments)),
		},
	})
}

// SubmissionUpdated logs a content edit by the owning agency.
func (l *Logger) SubmissionUpdated(ctx context.Context, sub models.Submission, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		EventType:      audit.EventSubmissionUpdated,
		AgencyID:       &sub.Agency,
		StandardNumber: sub.StandardNumber,
		SubmissionID:   &sub.ID,
		Success:        true,
		Details: map[string]string{
			"fields_changed": fieldsChanged,
		},
	})
}

// SubmissionStatusChanged logs a review decision.
func (l *Logger) SubmissionStatusChanged(ctx context.Context, sub models.Submission, from models.SubmissionStatus) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		EventType:      audit.EventSubmissionStatusChanged,
		AgencyID:       &sub.Agency,
		StandardNumber: sub.StandardNumber,
		SubmissionID:   &sub.ID,
		Success:        true,
		Details: map[string]string{
			"from": string(from),
			"to":   string(sub.Status),
		},
	})
}

// SubmissionDeleted logs removal of a submission by its agency.
func (l *Logger) SubmissionDeleted(ctx context.Context, sub models.Submission) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		EventType:      audit.EventSubmissionDeleted,
		AgencyID:       &sub.Agency,
		StandardNumber: sub.StandardNumber,
		SubmissionID:   &sub.ID,
		Success:        true,
	})
}

// SubmissionRolledBack logs a created submission removed because its
// attachments could not be stored.
func (l *Logger) SubmissionRolledBack(ctx context.Context, sub models.Submission, cause error, deleted bool) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		EventType:      audit.EventSubmissionRolledBack,
		AgencyID:       &sub.Agency,
		StandardNumber: sub.StandardNumber,
		SubmissionID:   &sub.ID,
		Success:        deleted,
		FailureReason:  errString(cause),
		Details: map[string]string{
			"deleted": strconv.FormatBool(deleted),
		},
	})
}

// StandardDerived logs a recomputed status and progress.
func (l *Logger) StandardDerived(ctx context.Context, number int, status models.StandardStatus, progress int) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		EventType:      audit.EventStandardDerived,
		StandardNumber: number,
		Success:        true,
		Details: map[string]string{
			"status":   string(status),
			"progress": strconv.Itoa(progress),
		},
	})
}

// DerivationFailed logs a derivation that did not complete. The triggering
// write has already committed.
func (l *Logger) DerivationFailed(ctx context.Context, number int, trigger string, cause error) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryCompliance,
		EventType:      audit.EventDerivationFailed,
		StandardNumber: number,
		Success:        false,
		FailureReason:  errString(cause),
		Details: map[string]string{
			"trigger": trigger,
		},
	})
}

// --- Enrollment Events ---

// VolunteerEnrolled logs a roster addition.
func (l *Logger) VolunteerEnrolled(ctx context.Context, initiativeID, volunteerID primitive.ObjectID, current, max int) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryEnrollment,
		EventType:    audit.EventVolunteerEnrolled,
		InitiativeID: &initiativeID,
		VolunteerID:  &volunteerID,
		Success:      true,
		Details: map[string]string{
			"current_volunteers": strconv.Itoa(current),
			"max_volunteers":     strconv.Itoa(max),
		},
	})
}

// VolunteerWithdrawn logs a roster removal.
func (l *Logger) VolunteerWithdrawn(ctx context.Context, initiativeID, volunteerID primitive.ObjectID, current int) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryEnrollment,
		EventType:    audit.EventVolunteerWithdrawn,
		InitiativeID: &initiativeID,
		VolunteerID:  &volunteerID,
		Success:      true,
		Details: map[string]string{
			"current_volunteers": strconv.Itoa(current),
		},
	})
}

// EnrollmentInconsistency logs a roster change whose volunteer-side write
// failed, leaving a one-sided reference for reconciliation.
func (l *Logger) EnrollmentInconsistency(ctx context.Context, initiativeID, volunteerID primitive.ObjectID, operation string, cause error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryEnrollment,
		EventType:     audit.EventEnrollmentInconsistency,
		InitiativeID:  &initiativeID,
		VolunteerID:   &volunteerID,
		Success:       false,
		FailureReason: errString(cause),
		Details: map[string]string{
			"operation": operation,
		},
	})
}

// EnrollmentRepaired logs a reconciliation fix.
func (l *Logger) EnrollmentRepaired(ctx context.Context, initiativeID, volunteerID *primitive.ObjectID, repair string) {
	l.Log(ctx, audit.Event{
		Category:     audit.CategoryEnrollment,
		EventType:    audit.EventEnrollmentRepaired,
		InitiativeID: initiativeID,
		VolunteerID:  volunteerID,
		Success:      true,
		Details: map[string]string{
			"repair": repair,
		},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
