package enrollment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/system/keylock"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Repair kinds reported by the reconciler.
const (
	RepairDanglingRosterEntry    = "dangling_roster_entry"    // roster references a deleted volunteer
	RepairDuplicateRosterEntry   = "duplicate_roster_entry"   // volunteer listed twice on one roster
	RepairStaleCount             = "stale_count"              // current_volunteers != len(volunteers)
	RepairMissingVolunteerEntry  = "missing_volunteer_entry"  // on the roster, absent from the volunteer
	RepairOrphanVolunteerEntry   = "orphan_volunteer_entry"   // on the volunteer, absent from the roster
	RepairDanglingVolunteerEntry = "dangling_volunteer_entry" // volunteer references a deleted initiative
)

// InitiativeLister lists every initiative.
type InitiativeLister interface {
	List(ctx context.Context) ([]models.Initiative, error)
}

// VolunteerLister lists every volunteer.
type VolunteerLister interface {
	List(ctx context.Context) ([]models.Volunteer, error)
}

// Report summarizes one reconciliation pass.
type Report struct {
	InitiativesScanned int            `json:"initiatives_scanned"`
	VolunteersScanned  int            `json:"volunteers_scanned"`
	Repairs            map[string]int `json:"repairs"`
	Errors             int            `json:"errors"`
	Duration           time.Duration  `json:"duration_ns"`
}

// Total returns the number of repairs applied.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Repairs {
		n += c
	}
	return n
}

// Reconciler scans for one-sided enrollment references and repairs them.
//
// The initiative roster is authoritative: a roster entry missing from the
// volunteer is added there (joined_at copied from the roster), and a
// volunteer entry with no roster entry is removed. References to deleted
// records are dropped and stale current_volunteers caches are rewritten.
// A pass is idempotent; running it twice applies no further repairs.
type Reconciler struct {
	m           *Manager
	initiatives InitiativeLister
	volunteers  VolunteerLister
	parallelism int
}

// pass holds the state of one Run. Overlapping runs (the scheduled job and
// the admin endpoint) each get their own.
type pass struct {
	m      *Manager
	mu     sync.Mutex
	report Report
}

// NewReconciler builds a Reconciler that repairs through m's stores and
// locks, so it serializes with concurrent enrollments.
func NewReconciler(m *Manager, initiatives InitiativeLister, volunteers VolunteerLister) *Reconciler {
	return &Reconciler{
		m:           m,
		initiatives: initiatives,
		volunteers:  volunteers,
		parallelism: 4,
	}
}

// Run performs one reconciliation pass. Per-record failures are logged and
// counted in the report; only failing to list records is returned.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	start := time.Now()

	var (
		ins  []models.Initiative
		vols []models.Volunteer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ins, err = r.initiatives.List(gctx)
		return errs.Storage("list initiatives", err)
	})
	g.Go(func() error {
		var err error
		vols, err = r.volunteers.List(gctx)
		return errs.Storage("list volunteers", err)
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	p := &pass{
		m: r.m,
		report: Report{
			InitiativesScanned: len(ins),
			VolunteersScanned:  len(vols),
			Repairs:            make(map[string]int),
		},
	}

	// Volunteer-side claims per initiative, from the snapshot.
	known := make(map[primitive.ObjectID]bool, len(ins))
	for _, in := range ins {
		known[in.ID] = true
	}
	claims := make(map[primitive.ObjectID][]primitive.ObjectID)
	unknown := make(map[primitive.ObjectID][]primitive.ObjectID)
	for _, v := range vols {
		for _, mem := range v.Initiatives {
			if known[mem.Initiative] {
				claims[mem.Initiative] = append(claims[mem.Initiative], v.ID)
			} else {
				unknown[v.ID] = append(unknown[v.ID], mem.Initiative)
			}
		}
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, in := range ins {
		g.Go(func() error {
			p.reconcileInitiative(gctx, in.ID, claims[in.ID])
			return nil
		})
	}
	_ = g.Wait()

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for vid, initiativeIDs := range unknown {
		g.Go(func() error {
			p.dropDanglingMemberships(gctx, vid, initiativeIDs)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	rep := p.report
	p.mu.Unlock()
	rep.Duration = time.Since(start)

	for kind, n := range rep.Repairs {
		r.m.metrics.AddRepairs(kind, n)
	}
	r.m.metrics.ObserveReconcile(rep.Duration)

	logFn := r.m.log.Debug
	if rep.Total() > 0 || rep.Errors > 0 {
		logFn = r.m.log.Info
	}
	logFn("enrollment reconciliation finished",
		zap.Int("initiatives", rep.InitiativesScanned),
		zap.Int("volunteers", rep.VolunteersScanned),
		zap.Int("repairs", rep.Total()),
		zap.Int("errors", rep.Errors),
		zap.Duration("duration", rep.Duration))

	return rep, ctx.Err()
}

func (p *pass) repaired(ctx context.Context, kind string, initiativeID, volunteerID *primitive.ObjectID) {
	p.mu.Lock()
	p.report.Repairs[kind]++
	p.mu.Unlock()
	p.m.audit.EnrollmentRepaired(ctx, initiativeID, volunteerID, kind)
}

func (p *pass) failed(msg string, fields ...zap.Field) {
	p.mu.Lock()
	p.report.Errors++
	p.mu.Unlock()
	p.m.log.Warn(msg, fields...)
}

// reconcileInitiative repairs one roster and the volunteer entries that
// mirror it, holding the initiative lock throughout.
func (p *pass) reconcileInitiative(ctx context.Context, id primitive.ObjectID, claimants []primitive.ObjectID) {
	unlock, err := p.m.locker.Lock(ctx, keylock.InitiativeKey(id.Hex()))
	if err != nil {
		p.failed("reconcile: lock initiative", zap.String("initiative_id", id.Hex()), zap.Error(err))
		return
	}
	defer unlock()

	in, err := p.m.initiatives.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		// Removed since the snapshot; its volunteer entries are handled
		// as dangling on the next pass.
		return
	}
	if err != nil {
		p.failed("reconcile: load initiative", zap.String("initiative_id", id.Hex()), zap.Error(err))
		return
	}

	// Roster side
	kept := make([]models.RosterEntry, 0, len(in.Volunteers))
	onRoster := make(map[primitive.ObjectID]time.Time, len(in.Volunteers))
	var dangling, duplicates []primitive.ObjectID
	for _, e := range in.Volunteers {
		if e.Volunteer == nil {
			kept = append(kept, e)
			continue
		}
		vid := *e.Volunteer
		if _, dup := onRoster[vid]; dup {
			duplicates = append(duplicates, vid)
			continue
		}
		_, err := p.m.volunteers.GetByID(ctx, vid)
		if err == mongo.ErrNoDocuments {
			dangling = append(dangling, vid)
			continue
		}
		if err != nil {
			p.failed("reconcile: load volunteer", zap.String("volunteer_id", vid.Hex()), zap.Error(err))
		}
		kept = append(kept, e)
		onRoster[vid] = e.JoinedAt
	}

	rosterChanged := len(kept) != len(in.Volunteers)
	stale := !rosterChanged && in.CurrentVolunteers != len(in.Volunteers)
	if rosterChanged || in.CurrentVolunteers != len(kept) {
		if err := p.m.initiatives.SaveRoster(ctx, id, kept); err != nil {
			p.failed("reconcile: save roster", zap.String("initiative_id", id.Hex()), zap.Error(err))
			return
		}
		for _, vid := range dangling {
			p.repaired(ctx, RepairDanglingRosterEntry, &id, &vid)
		}
		for _, vid := range duplicates {
			p.repaired(ctx, RepairDuplicateRosterEntry, &id, &vid)
		}
		if stale {
			p.repaired(ctx, RepairStaleCount, &id, nil)
		}
	}

	// Volunteer side: every roster volunteer mirrors the membership.
	for vid, joinedAt := range onRoster {
		added := false
		_, err := p.m.updateVolunteer(ctx, vid, func(v *models.Volunteer) bool {
			if v.MembershipIndex(id) >= 0 {
				return false
			}
			v.Initiatives = append(v.Initiatives, models.VolunteerMembership{Initiative: id, JoinedAt: joinedAt})
			added = true
			return true
		})
		switch {
		case err != nil && !errors.Is(err, errs.ErrNotFound):
			p.failed("reconcile: add volunteer membership", zap.String("volunteer_id", vid.Hex()), zap.Error(err))
		case added:
			p.repaired(ctx, RepairMissingVolunteerEntry, &id, &vid)
		}
	}

	// Volunteer side: claims the roster does not back are dropped.
	seen := make(map[primitive.ObjectID]bool)
	for _, vid := range claimants {
		if _, ok := onRoster[vid]; ok || seen[vid] {
			continue
		}
		seen[vid] = true
		removed := 0
		_, err := p.m.updateVolunteer(ctx, vid, func(v *models.Volunteer) bool {
			out := v.Initiatives[:0:0]
			for _, mem := range v.Initiatives {
				if mem.Initiative == id {
					removed++
					continue
				}
				out = append(out, mem)
			}
			v.Initiatives = out
			return removed > 0
		})
		switch {
		case err != nil && !errors.Is(err, errs.ErrNotFound):
			p.failed("reconcile: remove orphan membership", zap.String("volunteer_id", vid.Hex()), zap.Error(err))
		case err == nil && removed > 0:
			p.repaired(ctx, RepairOrphanVolunteerEntry, &id, &vid)
		}
	}
}

// dropDanglingMemberships removes a volunteer's entries for initiatives
// that no longer exist. Each candidate is re-checked so an initiative
// created after the snapshot is left alone.
func (p *pass) dropDanglingMemberships(ctx context.Context, vid primitive.ObjectID, candidates []primitive.ObjectID) {
	gone := make(map[primitive.ObjectID]bool)
	for _, iid := range candidates {
		_, err := p.m.initiatives.GetByID(ctx, iid)
		if err == mongo.ErrNoDocuments {
			gone[iid] = true
			continue
		}
		if err != nil {
			p.failed("reconcile: load initiative", zap.String("initiative_id", iid.Hex()), zap.Error(err))
		}
	}
	if len(gone) == 0 {
		return
	}

	var removed []primitive.ObjectID
	_, err := p.m.updateVolunteer(ctx, vid, func(v *models.Volunteer) bool {
		out := v.Initiatives[:0:0]
		for _, mem := range v.Initiatives {
			if gone[mem.Initiative] {
				removed = append(removed, mem.Initiative)
				continue
			}
			out = append(out, mem)
		}
		v.Initiatives = out
		return len(removed) > 0
	})
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			p.failed("reconcile: drop dangling memberships", zap.String("volunteer_id", vid.Hex()), zap.Error(err))
		}
		return
	}
	for _, iid := range removed {
		p.repaired(ctx, RepairDanglingVolunteerEntry, &iid, &vid)
	}
}
