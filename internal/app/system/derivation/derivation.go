// internal/app/system/derivation/derivation.go

// Package derivation recomputes a standard's cached status and progress
// from the submissions of its assigned agencies.
package derivation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/app/system/keylock"
	"github.com/dalemusser/compliancehub/internal/app/system/metrics"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"github.com/dalemusser/compliancehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StandardStore is the subset of the standards store the engine needs.
type StandardStore interface {
	GetByNumber(ctx context.Context, number int) (models.Standard, error)
	SetDerived(ctx context.Context, number int, status models.StandardStatus, progress int) error
	Numbers(ctx context.Context) ([]int, error)
}

// SubmissionFinder loads the submissions that count toward a standard.
type SubmissionFinder interface {
	FindForStandard(ctx context.Context, number int, agencies []primitive.ObjectID) ([]models.Submission, error)
}

// Counts is the per-bucket agency tally for one standard. Each assigned
// agency lands in exactly one bucket.
type Counts struct {
	Total       int `json:"total"`
	Approved    int `json:"approved"`
	Pending     int `json:"pending"`
	Rejected    int `json:"rejected"`
	DidntSubmit int `json:"didnt_submit"`
}

// Result is the outcome of one derivation.
type Result struct {
	Number   int                   `json:"number"`
	Status   models.StandardStatus `json:"status"`
	Progress int                   `json:"progress"`
	Counts   Counts                `json:"counts"`
	// Written is false when the standard has no assigned agencies and the
	// stored values were left untouched.
	Written bool `json:"written"`
	// Changed reports whether the written values differ from the prior cache.
	Changed bool `json:"changed"`
}

// Engine is the status derivation engine.
type Engine struct {
	standards   StandardStore
	submissions SubmissionFinder
	locker      keylock.Locker
	audit       *auditlog.Logger
	metrics     *metrics.Metrics
	log         *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the per-standard lock. Defaults to an in-process locker.
func WithLocker(l keylock.Locker) Option { return func(e *Engine) { e.locker = l } }

// WithAudit records standard_derived events.
func WithAudit(a *auditlog.Logger) Option { return func(e *Engine) { e.audit = a } }

// WithMetrics records derivation counters and latency.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New constructs an Engine.
func New(standards StandardStore, submissions SubmissionFinder, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		standards:   standards,
		submissions: submissions,
		locker:      keylock.NewLocal(),
		log:         logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Derive recomputes and persists status and progress for the standard with
// the given number.
//
// The read of the standard and its submissions and the final write happen
// under the standard's lock, so overlapping derivations for one number
// write in snapshot order and the last write wins with fresh data.
func (e *Engine) Derive(ctx context.Context, number int) (Result, error) {
	start := time.Now()
	res, err := e.derive(ctx, number)

	outcome := metrics.OutcomeDerived
	switch {
	case errors.Is(err, errs.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeFailed
	case !res.Written:
		outcome = metrics.OutcomeSkipped
	}
	e.metrics.ObserveDerivation(outcome, time.Since(start))

	if err == nil && res.Changed {
		e.audit.StandardDerived(ctx, number, res.Status, res.Progress)
	}
	return res, err
}

func (e *Engine) derive(ctx context.Context, number int) (Result, error) {
	unlock, err := e.locker.Lock(ctx, keylock.StandardKey(number))
	if err != nil {
		return Result{}, errs.Storage("lock standard", err)
	}
	defer unlock()

	st, err := e.standards.GetByNumber(ctx, number)
	if err == mongo.ErrNoDocuments {
		return Result{}, fmt.Errorf("standard %d: %w", number, errs.ErrNotFound)
	}
	if err != nil {
		return Result{}, errs.Storage("load standard", err)
	}

	res := Result{Number: number, Status: st.Status, Progress: st.Progress}
	if len(st.AssignedAgencies) == 0 {
		return res, nil
	}

	subs, err := e.submissions.FindForStandard(ctx, number, st.AssignedAgencies)
	if err != nil {
		return Result{}, errs.Storage("load submissions", err)
	}

	counts := Classify(st.AssignedAgencies, subs)
	status := StatusFor(counts)
	progress := Progress(counts)

	if err := e.standards.SetDerived(ctx, number, status, progress); err != nil {
		if err == mongo.ErrNoDocuments {
			return Result{}, fmt.Errorf("standard %d: %w", number, errs.ErrNotFound)
		}
		return Result{}, errs.Storage("save derived status", err)
	}

	e.log.Debug("standard derived",
		zap.Int("standard_number", number),
		zap.String("status", string(status)),
		zap.Int("progress", progress),
		zap.Int("approved", counts.Approved),
		zap.Int("pending", counts.Pending),
		zap.Int("rejected", counts.Rejected),
		zap.Int("didnt_submit", counts.DidntSubmit))

	return Result{
		Number:   number,
		Status:   status,
		Progress: progress,
		Counts:   counts,
		Written:  true,
		Changed:  status != st.Status || progress != st.Progress,
	}, nil
}

// Classify buckets each assigned agency by its best submission:
// approved > pending > rejected, and didnt_submit when it has none.
// Submissions from agencies outside assigned are ignored, and duplicate
// agencies in assigned count once.
func Classify(assigned []primitive.ObjectID, subs []models.Submission) Counts {
	const (
		none = iota
		rejected
		pending
		approved
	)
	rank := func(s models.SubmissionStatus) int {
		switch s {
		case models.SubmissionApproved:
			return approved
		case models.SubmissionPending:
			return pending
		case models.SubmissionRejected:
			return rejected
		}
		return none
	}

	best := make(map[primitive.ObjectID]int, len(assigned))
	for _, a := range assigned {
		best[a] = none
	}
	for _, sub := range subs {
		cur, ok := best[sub.Agency]
		if !ok {
			continue
		}
		if r := rank(sub.Status); r > cur {
			best[sub.Agency] = r
		}
	}

	c := Counts{Total: len(best)}
	for _, r := range best {
		switch r {
		case approved:
			c.Approved++
		case pending:
			c.Pending++
		case rejected:
			c.Rejected++
		default:
			c.DidntSubmit++
		}
	}
	return c
}

// StatusFor applies the classification table; the first matching rule wins.
func StatusFor(c Counts) models.StandardStatus {
	switch {
	case c.Total > 0 && c.Approved == c.Total:
		return models.StandardApproved
	case c.Approved > 0 && c.Pending == 0 && c.Rejected == 0 && c.DidntSubmit == 0:
		return models.StandardApproved
	case c.Pending > 0:
		return models.StandardPendingApproval
	case c.Approved > 0:
		return models.StandardPendingApproval
	case c.Rejected > 0 && c.DidntSubmit == 0:
		return models.StandardRejected
	default:
		return models.StandardDidntSubmit
	}
}

// Progress is the rounded share of approved agencies, 0..100.
func Progress(c Counts) int {
	if c.Total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(c.Approved) / float64(c.Total)))
}

// AllResult summarizes a DeriveAll pass.
type AllResult struct {
	Derived  int `json:"derived"`
	Skipped  int `json:"skipped"`
	NotFound int `json:"not_found"`
	Failed   int `json:"failed"`
}

// DeriveAll re-derives every standard, a few at a time. Per-standard
// failures are logged and counted; only failing to list standards is
// returned as an error.
func (e *Engine) DeriveAll(ctx context.Context, parallelism int) (AllResult, error) {
	numbers, err := e.standards.Numbers(ctx)
	if err != nil {
		return AllResult{}, errs.Storage("list standards", err)
	}
	if parallelism <= 0 {
		parallelism = 4
	}

	results := make([]error, len(numbers))
	written := make([]bool, len(numbers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, n := range numbers {
		g.Go(func() error {
			res, err := e.Derive(gctx, n)
			results[i] = err
			written[i] = res.Written
			return nil
		})
	}
	_ = g.Wait()

	var out AllResult
	for i, err := range results {
		switch {
		case err == nil && written[i]:
			out.Derived++
		case err == nil:
			out.Skipped++
		case errors.Is(err, errs.ErrNotFound):
			out.NotFound++
		default:
			out.Failed++
			e.log.Error("derivation failed",
				zap.Int("standard_number", numbers[i]),
				zap.Error(err))
		}
	}
	return out, ctx.Err()
}
