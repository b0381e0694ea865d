// Package memstore provides in-memory implementations of the record stores
// for tests and ephemeral environments (record_store = "memory").
//
// The stores mirror the MongoDB stores method for method, including
// returning mongo.ErrNoDocuments for absent records, so services cannot
// tell them apart. Every record is copied on the way in and out.
//
// Failure injection: FailOn makes the named operation return an error,
// which tests use to simulate record store outages part-way through a
// multi-step sequence.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	metricsstore "github.com/dalemusser/compliancehub/internal/app/store/metrics"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Operation names accepted by FailOn.
const (
	OpStandardGet          = "standards.GetByNumber"
	OpStandardSetDerived   = "standards.SetDerived"
	OpStandardUpsert       = "standards.Upsert"
	OpSubmissionCreate     = "submissions.Create"
	OpSubmissionGet        = "submissions.GetByID"
	OpSubmissionUpdate     = "submissions.Update"
	OpSubmissionDelete     = "submissions.Delete"
	OpSubmissionFind       = "submissions.FindForStandard"
	OpInitiativeGet        = "initiatives.GetByID"
	OpInitiativeSaveRoster = "initiatives.SaveRoster"
	OpInitiativeSetStatus  = "initiatives.SetStatus"
	OpInitiativeList       = "initiatives.List"
	OpVolunteerGet         = "volunteers.GetByID"
	OpVolunteerSave        = "volunteers.SaveInitiatives"
	OpVolunteerList        = "volunteers.List"
)

// DB holds all in-memory collections behind one lock.
type DB struct {
	mu          sync.Mutex
	standards   map[int]models.Standard
	submissions map[primitive.ObjectID]models.Submission
	initiatives map[primitive.ObjectID]models.Initiative
	volunteers  map[primitive.ObjectID]models.Volunteer
	failures    map[string]error
}

// NewDB returns an empty in-memory database.
func NewDB() *DB {
	return &DB{
		standards:   make(map[int]models.Standard),
		submissions: make(map[primitive.ObjectID]models.Submission),
		initiatives: make(map[primitive.ObjectID]models.Initiative),
		volunteers:  make(map[primitive.ObjectID]models.Volunteer),
		failures:    make(map[string]error),
	}
}

// FailOn makes op return err until cleared with FailOn(op, nil).
func (db *DB) FailOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

// fail must be called with db.mu held.
func (db *DB) fail(op string) error {
	return db.failures[op]
}

func (db *DB) Standards() *Standards     { return &Standards{db: db} }
func (db *DB) Submissions() *Submissions { return &Submissions{db: db} }
func (db *DB) Initiatives() *Initiatives { return &Initiatives{db: db} }
func (db *DB) Volunteers() *Volunteers   { return &Volunteers{db: db} }

/* -------------------------------------------------------------------------- */
/* copies                                                                     */
/* -------------------------------------------------------------------------- */

func copyStandard(s models.Standard) models.Standard {
	s.AssignedAgencies = append([]primitive.ObjectID(nil), s.AssignedAgencies...)
	if s.DerivedAt != nil {
		t := *s.DerivedAt
		s.DerivedAt = &t
	}
	return s
}

func copySubmission(s models.Submission) models.Submission {
	s.Attachments = append([]string(nil), s.Attachments...)
	if s.ReviewedAt != nil {
		t := *s.ReviewedAt
		s.ReviewedAt = &t
	}
	return s
}

func copyRoster(in []models.RosterEntry) []models.RosterEntry {
	out := make([]models.RosterEntry, len(in))
	for i, e := range in {
		if e.Volunteer != nil {
			id := *e.Volunteer
			e.Volunteer = &id
		}
		if e.Contact != nil {
			c := *e.Contact
			e.Contact = &c
		}
		out[i] = e
	}
	return out
}

func copyInitiative(in models.Initiative) models.Initiative {
	in.Volunteers = copyRoster(in.Volunteers)
	return in
}

func copyVolunteer(v models.Volunteer) models.Volunteer {
	v.Initiatives = append([]models.VolunteerMembership{}, v.Initiatives...)
	return v
}

/* -------------------------------------------------------------------------- */
/* standards                                                                  */
/* -------------------------------------------------------------------------- */

type Standards struct{ db *DB }

func (s *Standards) GetByNumber(ctx context.Context, number int) (models.Standard, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpStandardGet); err != nil {
		return models.Standard{}, err
	}
	st, ok := s.db.standards[number]
	if !ok {
		return models.Standard{}, mongo.ErrNoDocuments
	}
	return copyStandard(st), nil
}

func (s *Standards) SetDerived(ctx context.Context, number int, status models.StandardStatus, progress int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpStandardSetDerived); err != nil {
		return err
	}
	st, ok := s.db.standards[number]
	if !ok {
		return mongo.ErrNoDocuments
	}
	now := time.Now().UTC()
	st.Status = status
	st.Progress = progress
	st.DerivedAt = &now
	st.UpdatedAt = now
	s.db.standards[number] = st
	return nil
}

func (s *Standards) Numbers(ctx context.Context) ([]int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]int, 0, len(s.db.standards))
	for n := range s.db.standards {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func (s *Standards) Upsert(ctx context.Context, st models.Standard) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpStandardUpsert); err != nil {
		return false, err
	}
	now := time.Now().UTC()
	existing, ok := s.db.standards[st.Number]
	if ok {
		existing.Title = st.Title
		existing.Description = st.Description
		existing.AssignedAgencies = append([]primitive.ObjectID{}, st.AssignedAgencies...)
		existing.UpdatedAt = now
		s.db.standards[st.Number] = existing
		return false, nil
	}
	st = copyStandard(st)
	if st.AssignedAgencies == nil {
		st.AssignedAgencies = []primitive.ObjectID{}
	}
	st.ID = primitive.NewObjectID()
	st.Status = models.StandardDidntSubmit
	st.Progress = 0
	st.CreatedAt = now
	st.UpdatedAt = now
	s.db.standards[st.Number] = st
	return true, nil
}

// Put stores st as-is, including status and progress. Test setup only.
func (s *Standards) Put(st models.Standard) models.Standard {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if st.ID.IsZero() {
		st.ID = primitive.NewObjectID()
	}
	s.db.standards[st.Number] = copyStandard(st)
	return st
}

/* -------------------------------------------------------------------------- */
/* submissions                                                                */
/* -------------------------------------------------------------------------- */

type Submissions struct{ db *DB }

func (s *Submissions) Create(ctx context.Context, sub models.Submission) (models.Submission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpSubmissionCreate); err != nil {
		return models.Submission{}, err
	}
	now := time.Now().UTC()
	sub.ID = primitive.NewObjectID()
	if sub.Status == "" {
		sub.Status = models.SubmissionPending
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now
	s.db.submissions[sub.ID] = copySubmission(sub)
	return sub, nil
}

func (s *Submissions) GetByID(ctx context.Context, id primitive.ObjectID) (models.Submission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpSubmissionGet); err != nil {
		return models.Submission{}, err
	}
	sub, ok := s.db.submissions[id]
	if !ok {
		return models.Submission{}, mongo.ErrNoDocuments
	}
	return copySubmission(sub), nil
}

func (s *Submissions) update(id primitive.ObjectID, mut func(*models.Submission)) (models.Submission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpSubmissionUpdate); err != nil {
		return models.Submission{}, err
	}
	sub, ok := s.db.submissions[id]
	if !ok {
		return models.Submission{}, mongo.ErrNoDocuments
	}
	mut(&sub)
	sub.UpdatedAt = time.Now().UTC()
	s.db.submissions[id] = copySubmission(sub)
	return copySubmission(sub), nil
}

func (s *Submissions) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SubmissionStatus, comment string) (models.Submission, error) {
	return s.update(id, func(sub *models.Submission) {
		now := time.Now().UTC()
		sub.Status = status
		sub.ReviewedAt = &now
		if comment != "" {
			sub.ReviewerComment = comment
		}
	})
}

func (s *Submissions) UpdateContent(ctx context.Context, id primitive.ObjectID, patch models.SubmissionPatch) (models.Submission, error) {
	return s.update(id, func(sub *models.Submission) {
		if patch.Title != nil {
			sub.Title = *patch.Title
		}
		if patch.Description != nil {
			sub.Description = *patch.Description
		}
		if patch.Notes != nil {
			sub.Notes = *patch.Notes
		}
	})
}

func (s *Submissions) AddAttachments(ctx context.Context, id primitive.ObjectID, urls []string) (models.Submission, error) {
	return s.update(id, func(sub *models.Submission) {
		sub.Attachments = append(sub.Attachments, urls...)
	})
}

func (s *Submissions) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpSubmissionDelete); err != nil {
		return 0, err
	}
	if _, ok := s.db.submissions[id]; !ok {
		return 0, nil
	}
	delete(s.db.submissions, id)
	return 1, nil
}

func (s *Submissions) FindForStandard(ctx context.Context, number int, agencies []primitive.ObjectID) ([]models.Submission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpSubmissionFind); err != nil {
		return nil, err
	}
	allowed := make(map[primitive.ObjectID]bool, len(agencies))
	for _, a := range agencies {
		allowed[a] = true
	}
	var out []models.Submission
	for _, sub := range s.db.submissions {
		if sub.StandardNumber == number && allowed[sub.Agency] {
			out = append(out, copySubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (s *Submissions) ListByAgency(ctx context.Context, agency primitive.ObjectID) ([]models.Submission, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpSubmissionFind); err != nil {
		return nil, err
	}
	var out []models.Submission
	for _, sub := range s.db.submissions {
		if sub.Agency == agency {
			out = append(out, copySubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Count returns the number of stored submissions.
func (s *Submissions) Count() int {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return len(s.db.submissions)
}

/* -------------------------------------------------------------------------- */
/* initiatives                                                                */
/* -------------------------------------------------------------------------- */

type Initiatives struct{ db *DB }

func (s *Initiatives) Create(ctx context.Context, in models.Initiative) (models.Initiative, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	in.ID = primitive.NewObjectID()
	if in.Status == "" {
		in.Status = models.InitiativeGathering
	}
	if in.Volunteers == nil {
		in.Volunteers = []models.RosterEntry{}
	}
	in.CurrentVolunteers = len(in.Volunteers)
	in.CreatedAt = now
	in.UpdatedAt = now
	s.db.initiatives[in.ID] = copyInitiative(in)
	return copyInitiative(in), nil
}

func (s *Initiatives) GetByID(ctx context.Context, id primitive.ObjectID) (models.Initiative, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpInitiativeGet); err != nil {
		return models.Initiative{}, err
	}
	in, ok := s.db.initiatives[id]
	if !ok {
		return models.Initiative{}, mongo.ErrNoDocuments
	}
	return copyInitiative(in), nil
}

func (s *Initiatives) SaveRoster(ctx context.Context, id primitive.ObjectID, roster []models.RosterEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpInitiativeSaveRoster); err != nil {
		return err
	}
	in, ok := s.db.initiatives[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	in.Volunteers = copyRoster(roster)
	in.CurrentVolunteers = len(roster)
	in.UpdatedAt = time.Now().UTC()
	s.db.initiatives[id] = in
	return nil
}

func (s *Initiatives) SetStatus(ctx context.Context, id primitive.ObjectID, status models.InitiativeStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpInitiativeSetStatus); err != nil {
		return err
	}
	in, ok := s.db.initiatives[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	in.Status = status
	in.UpdatedAt = time.Now().UTC()
	s.db.initiatives[id] = in
	return nil
}

func (s *Initiatives) List(ctx context.Context) ([]models.Initiative, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpInitiativeList); err != nil {
		return nil, err
	}
	out := make([]models.Initiative, 0, len(s.db.initiatives))
	for _, in := range s.db.initiatives {
		out = append(out, copyInitiative(in))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

// Put stores in as-is, without recomputing CurrentVolunteers. Test setup only.
func (s *Initiatives) Put(in models.Initiative) models.Initiative {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if in.ID.IsZero() {
		in.ID = primitive.NewObjectID()
	}
	s.db.initiatives[in.ID] = copyInitiative(in)
	return in
}

// Remove deletes an initiative outright, leaving any volunteer-side
// references dangling. Test setup only.
func (s *Initiatives) Remove(id primitive.ObjectID) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.initiatives, id)
}

/* -------------------------------------------------------------------------- */
/* volunteers                                                                 */
/* -------------------------------------------------------------------------- */

type Volunteers struct{ db *DB }

func (s *Volunteers) Create(ctx context.Context, v models.Volunteer) (models.Volunteer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	v.ID = primitive.NewObjectID()
	if v.Initiatives == nil {
		v.Initiatives = []models.VolunteerMembership{}
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	s.db.volunteers[v.ID] = copyVolunteer(v)
	return copyVolunteer(v), nil
}

func (s *Volunteers) GetByID(ctx context.Context, id primitive.ObjectID) (models.Volunteer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpVolunteerGet); err != nil {
		return models.Volunteer{}, err
	}
	v, ok := s.db.volunteers[id]
	if !ok {
		return models.Volunteer{}, mongo.ErrNoDocuments
	}
	return copyVolunteer(v), nil
}

func (s *Volunteers) SaveInitiatives(ctx context.Context, id primitive.ObjectID, entries []models.VolunteerMembership) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpVolunteerSave); err != nil {
		return err
	}
	v, ok := s.db.volunteers[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	v.Initiatives = append([]models.VolunteerMembership{}, entries...)
	v.UpdatedAt = time.Now().UTC()
	s.db.volunteers[id] = v
	return nil
}

func (s *Volunteers) List(ctx context.Context) ([]models.Volunteer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fail(OpVolunteerList); err != nil {
		return nil, err
	}
	out := make([]models.Volunteer, 0, len(s.db.volunteers))
	for _, v := range s.db.volunteers {
		out = append(out, copyVolunteer(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

// Put stores v as-is. Test setup only.
func (s *Volunteers) Put(v models.Volunteer) models.Volunteer {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	s.db.volunteers[v.ID] = copyVolunteer(v)
	return v
}

// Remove deletes a volunteer outright, leaving any roster references
// dangling. Test setup only.
func (s *Volunteers) Remove(id primitive.ObjectID) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.volunteers, id)
}

/* -------------------------------------------------------------------------- */
/* counts                                                                     */
/* -------------------------------------------------------------------------- */

// StandardsByStatus returns the number of standards per derived status.
func (db *DB) StandardsByStatus(ctx context.Context) (map[string]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make(map[string]int64)
	for _, st := range db.standards {
		out[string(st.Status)]++
	}
	return out, nil
}

// FetchCounts returns the size of each collection.
func (db *DB) FetchCounts(ctx context.Context) metricsstore.Counts {
	db.mu.Lock()
	defer db.mu.Unlock()
	return metricsstore.Counts{
		Standards:   int64(len(db.standards)),
		Submissions: int64(len(db.submissions)),
		Initiatives: int64(len(db.initiatives)),
		Volunteers:  int64(len(db.volunteers)),
	}
}
