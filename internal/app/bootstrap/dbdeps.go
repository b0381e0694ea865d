// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	auditlogfeature "github.com/dalemusser/compliancehub/internal/app/features/auditlog"
	healthfeature "github.com/dalemusser/compliancehub/internal/app/features/health"
	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/app/system/derivation"
	"github.com/dalemusser/compliancehub/internal/app/system/enrollment"
	"github.com/dalemusser/compliancehub/internal/app/system/keylock"
	"github.com/dalemusser/compliancehub/internal/app/system/seed"
	"github.com/dalemusser/compliancehub/internal/app/system/submissions"
	"github.com/dalemusser/compliancehub/internal/app/system/tasks"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// The record stores are either the MongoDB stores or the in-memory ones;
// these interfaces name everything the services ask of each.
type (
	standardStore interface {
		derivation.StandardStore
		seed.Upserter
	}
	submissionStore interface {
		derivation.SubmissionFinder
		submissions.SubmissionStore
	}
	initiativeStore interface {
		enrollment.InitiativeStore
		enrollment.InitiativeLister
	}
	volunteerStore interface {
		enrollment.VolunteerStore
		enrollment.VolunteerLister
	}
	auditStore interface {
		auditlog.Writer
		auditlogfeature.Store
	}
	countStore interface {
		healthfeature.Counter
		tasks.StatusCounter
	}
)

// DBDeps holds database/back-end dependencies for the app.
//
// Mongo fields are nil when record_store is "memory"; Redis is nil unless
// lock_backend is "redis". Services is built once in ConnectDB and shared
// by every later hook.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database
	Redis         *redis.Client

	Standards   standardStore
	Submissions submissionStore
	Initiatives initiativeStore
	Volunteers  volunteerStore
	Audit       auditStore
	Counts      countStore
	Ping        healthfeature.Pinger
	Locker      keylock.Locker

	Services *Services
}
