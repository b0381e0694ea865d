// internal/app/system/enrollment/manager.go

// Package enrollment keeps initiative rosters and volunteer membership
// lists in step without a multi-record transaction.
//
// Every enrollment change writes the initiative roster first and the
// volunteer record second. A roster entry with no volunteer-side mirror is
// harmless (the initiative still counts toward capacity) and is repaired
// by reconciliation; the reverse would let a volunteer bypass the capacity
// check, so it is never produced here.
package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/app/system/keylock"
	"github.com/dalemusser/compliancehub/internal/app/system/metrics"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Operation labels for metrics and audit details.
const (
	OpEnroll   = "enroll"
	OpWithdraw = "withdraw"
)

// InitiativeStore is the subset of the initiatives store the manager needs.
type InitiativeStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Initiative, error)
	SaveRoster(ctx context.Context, id primitive.ObjectID, roster []models.RosterEntry) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.InitiativeStatus) error
}

// VolunteerStore is the subset of the volunteers store the manager needs.
type VolunteerStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Volunteer, error)
	SaveInitiatives(ctx context.Context, id primitive.ObjectID, entries []models.VolunteerMembership) error
}

// EnrollResult is the outcome of a successful Enroll.
type EnrollResult struct {
	Initiative models.Initiative `json:"initiative"`
	Volunteer  models.Volunteer  `json:"volunteer"`
	// VolunteerSynced is false when the volunteer-side write failed and the
	// membership is currently recorded on the roster only.
	VolunteerSynced bool `json:"volunteer_synced"`
}

// WithdrawResult is the outcome of a successful Withdraw.
type WithdrawResult struct {
	Initiative      models.Initiative `json:"initiative"`
	VolunteerSynced bool              `json:"volunteer_synced"`
}

// Manager is the enrollment consistency manager.
type Manager struct {
	initiatives InitiativeStore
	volunteers  VolunteerStore
	locker      keylock.Locker
	audit       *auditlog.Logger
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time
}

// New constructs a Manager. A nil locker falls back to an in-process one.
func New(initiatives InitiativeStore, volunteers VolunteerStore, locker keylock.Locker,
	audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if locker == nil {
		locker = keylock.NewLocal()
	}
	return &Manager{
		initiatives: initiatives,
		volunteers:  volunteers,
		locker:      locker,
		audit:       audit,
		metrics:     m,
		log:         logger,
		now:         time.Now,
	}
}

// Get returns an initiative by id.
func (m *Manager) Get(ctx context.Context, id primitive.ObjectID) (models.Initiative, error) {
	return m.loadInitiative(ctx, id)
}

// Enroll adds volunteerID to the initiative's roster.
//
// Checks run in order: both records exist, the initiative accepts
// volunteers, the volunteer is not already on the roster, the roster has
// room. The whole sequence holds the initiative's lock, so concurrent
// enrollments cannot both pass the capacity check.
func (m *Manager) Enroll(ctx context.Context, initiativeID, volunteerID primitive.ObjectID) (EnrollResult, error) {
	res, err := m.enroll(ctx, initiativeID, volunteerID)
	m.metrics.IncrementEnrollment(OpEnroll, resultLabel(err))
	return res, err
}

func (m *Manager) enroll(ctx context.Context, initiativeID, volunteerID primitive.ObjectID) (EnrollResult, error) {
	unlock, err := m.locker.Lock(ctx, keylock.InitiativeKey(initiativeID.Hex()))
	if err != nil {
		return EnrollResult{}, errs.Storage("lock initiative", err)
	}
	defer unlock()

	in, err := m.loadInitiative(ctx, initiativeID)
	if err != nil {
		return EnrollResult{}, err
	}
	v, err := m.loadVolunteer(ctx, volunteerID)
	if err != nil {
		return EnrollResult{}, err
	}

	if !in.Status.AcceptsVolunteers() {
		return EnrollResult{}, errs.ErrNotAcceptingVolunteers
	}
	if in.RosterIndex(volunteerID) >= 0 {
		return EnrollResult{}, errs.ErrAlreadyEnrolled
	}
	if in.IsFull() {
		return EnrollResult{}, errs.ErrCapacityExceeded
	}

	now := m.now().UTC()
	vid := volunteerID
	roster := append(append([]models.RosterEntry{}, in.Volunteers...), models.RosterEntry{
		Volunteer: &vid,
		JoinedAt:  now,
	})
	if err := m.saveRoster(ctx, initiativeID, roster); err != nil {
		return EnrollResult{}, err
	}
	in.Volunteers = roster
	in.CurrentVolunteers = len(roster)
	in.UpdatedAt = now

	res := EnrollResult{Initiative: in, Volunteer: v, VolunteerSynced: true}

	// The roster write has committed. From here on failures are recorded
	// for reconciliation, never returned.
	updated, err := m.updateVolunteer(ctx, volunteerID, func(v *models.Volunteer) bool {
		if v.MembershipIndex(initiativeID) >= 0 {
			return false
		}
		v.Initiatives = append(v.Initiatives, models.VolunteerMembership{
			Initiative: initiativeID,
			JoinedAt:   now,
		})
		return true
	})
	if err != nil {
		m.inconsistency(ctx, OpEnroll, initiativeID, volunteerID, err)
		res.VolunteerSynced = false
	} else {
		res.Volunteer = updated
	}

	m.audit.VolunteerEnrolled(ctx, initiativeID, volunteerID, in.CurrentVolunteers, in.MaxVolunteers)
	return res, nil
}

// Withdraw removes volunteerID from the initiative's roster. A missing
// volunteer-side entry is tolerated; the volunteer record is only written
// when an entry was actually removed.
func (m *Manager) Withdraw(ctx context.Context, initiativeID, volunteerID primitive.ObjectID) (WithdrawResult, error) {
	res, err := m.withdraw(ctx, initiativeID, volunteerID)
	m.metrics.IncrementEnrollment(OpWithdraw, resultLabel(err))
	return res, err
}

func (m *Manager) withdraw(ctx context.Context, initiativeID, volunteerID primitive.ObjectID) (WithdrawResult, error) {
	unlock, err := m.locker.Lock(ctx, keylock.InitiativeKey(initiativeID.Hex()))
	if err != nil {
		return WithdrawResult{}, errs.Storage("lock initiative", err)
	}
	defer unlock()

	in, err := m.loadInitiative(ctx, initiativeID)
	if err != nil {
		return WithdrawResult{}, err
	}
	if _, err := m.loadVolunteer(ctx, volunteerID); err != nil {
		return WithdrawResult{}, err
	}

	idx := in.RosterIndex(volunteerID)
	if idx < 0 {
		return WithdrawResult{}, errs.ErrNotEnrolled
	}

	roster := make([]models.RosterEntry, 0, len(in.Volunteers)-1)
	roster = append(roster, in.Volunteers[:idx]...)
	roster = append(roster, in.Volunteers[idx+1:]...)
	if err := m.saveRoster(ctx, initiativeID, roster); err != nil {
		return WithdrawResult{}, err
	}
	in.Volunteers = roster
	in.CurrentVolunteers = len(roster)
	in.UpdatedAt = m.now().UTC()

	res := WithdrawResult{Initiative: in, VolunteerSynced: true}

	removed := false
	_, err = m.updateVolunteer(ctx, volunteerID, func(v *models.Volunteer) bool {
		vi := v.MembershipIndex(initiativeID)
		if vi < 0 {
			return false
		}
		v.Initiatives = append(v.Initiatives[:vi:vi], v.Initiatives[vi+1:]...)
		removed = true
		return true
	})
	switch {
	case err != nil:
		m.inconsistency(ctx, OpWithdraw, initiativeID, volunteerID, err)
		res.VolunteerSynced = false
	case !removed:
		m.log.Info("volunteer-side membership already absent on withdraw",
			zap.String("initiative_id", initiativeID.Hex()),
			zap.String("volunteer_id", volunteerID.Hex()))
	}

	m.audit.VolunteerWithdrawn(ctx, initiativeID, volunteerID, in.CurrentVolunteers)
	return res, nil
}

// SetStatus moves the initiative through its lifecycle:
// gathering_volunteers -> active -> completed, with cancelled reachable
// from either non-terminal state. Setting the current status is a no-op.
func (m *Manager) SetStatus(ctx context.Context, initiativeID primitive.ObjectID, next models.InitiativeStatus) (models.Initiative, error) {
	if !next.Valid() {
		return models.Initiative{}, errs.Invalid("unknown initiative status %q", next)
	}

	unlock, err := m.locker.Lock(ctx, keylock.InitiativeKey(initiativeID.Hex()))
	if err != nil {
		return models.Initiative{}, errs.Storage("lock initiative", err)
	}
	defer unlock()

	in, err := m.loadInitiative(ctx, initiativeID)
	if err != nil {
		return models.Initiative{}, err
	}
	if in.Status == next {
		return in, nil
	}
	if !in.Status.CanTransitionTo(next) {
		return models.Initiative{}, fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, in.Status, next)
	}

	if err := m.initiatives.SetStatus(ctx, initiativeID, next); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Initiative{}, fmt.Errorf("initiative %s: %w", initiativeID.Hex(), errs.ErrNotFound)
		}
		return models.Initiative{}, errs.Storage("set initiative status", err)
	}

	m.log.Info("initiative status changed",
		zap.String("initiative_id", initiativeID.Hex()),
		zap.String("from", string(in.Status)),
		zap.String("to", string(next)))

	in.Status = next
	in.UpdatedAt = m.now().UTC()
	return in, nil
}

func (m *Manager) loadInitiative(ctx context.Context, id primitive.ObjectID) (models.Initiative, error) {
	in, err := m.initiatives.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return models.Initiative{}, fmt.Errorf("initiative %s: %w", id.Hex(), errs.ErrNotFound)
	}
	if err != nil {
		return models.Initiative{}, errs.Storage("load initiative", err)
	}
	return in, nil
}

func (m *Manager) loadVolunteer(ctx context.Context, id primitive.ObjectID) (models.Volunteer, error) {
	v, err := m.volunteers.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		return models.Volunteer{}, fmt.Errorf("volunteer %s: %w", id.Hex(), errs.ErrNotFound)
	}
	if err != nil {
		return models.Volunteer{}, errs.Storage("load volunteer", err)
	}
	return v, nil
}

func (m *Manager) saveRoster(ctx context.Context, id primitive.ObjectID, roster []models.RosterEntry) error {
	err := m.initiatives.SaveRoster(ctx, id, roster)
	if err == mongo.ErrNoDocuments {
		return fmt.Errorf("initiative %s: %w", id.Hex(), errs.ErrNotFound)
	}
	if err != nil {
		return errs.Storage("save roster", err)
	}
	return nil
}

// updateVolunteer re-reads the volunteer under its lock, applies mutate,
// and saves only when mutate reports a change. The caller must already
// hold any initiative lock it needs.
func (m *Manager) updateVolunteer(ctx context.Context, id primitive.ObjectID, mutate func(*models.Volunteer) bool) (models.Volunteer, error) {
	unlock, err := m.locker.Lock(ctx, keylock.VolunteerKey(id.Hex()))
	if err != nil {
		return models.Volunteer{}, errs.Storage("lock volunteer", err)
	}
	defer unlock()

	v, err := m.loadVolunteer(ctx, id)
	if err != nil {
		return models.Volunteer{}, err
	}
	if !mutate(&v) {
		return v, nil
	}
	if err := m.volunteers.SaveInitiatives(ctx, id, v.Initiatives); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Volunteer{}, fmt.Errorf("volunteer %s: %w", id.Hex(), errs.ErrNotFound)
		}
		return models.Volunteer{}, errs.Storage("save volunteer memberships", err)
	}
	v.UpdatedAt = m.now().UTC()
	return v, nil
}

// inconsistency records a committed roster change whose volunteer-side
// mirror could not be written.
func (m *Manager) inconsistency(ctx context.Context, op string, initiativeID, volunteerID primitive.ObjectID, cause error) {
	m.metrics.IncrementInconsistency(op)
	m.log.Warn("volunteer-side membership write failed; roster change kept for reconciliation",
		zap.String("operation", op),
		zap.String("initiative_id", initiativeID.Hex()),
		zap.String("volunteer_id", volunteerID.Hex()),
		zap.Error(cause))
	m.audit.EnrollmentInconsistency(context.WithoutCancel(ctx), initiativeID, volunteerID, op, cause)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(errs.KindOf(err))
}
