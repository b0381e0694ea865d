// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	healthfeature "github.com/dalemusser/compliancehub/internal/app/features/health"
	auditstore "github.com/dalemusser/compliancehub/internal/app/store/audit"
	initiativestore "github.com/dalemusser/compliancehub/internal/app/store/initiatives"
	memstore "github.com/dalemusser/compliancehub/internal/app/store/memory"
	metricsstore "github.com/dalemusser/compliancehub/internal/app/store/metrics"
	standardstore "github.com/dalemusser/compliancehub/internal/app/store/standards"
	submissionstore "github.com/dalemusser/compliancehub/internal/app/store/submissions"
	volunteerstore "github.com/dalemusser/compliancehub/internal/app/store/volunteers"
	"github.com/dalemusser/compliancehub/internal/app/system/indexes"
	"github.com/dalemusser/compliancehub/internal/app/system/keylock"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB opens the record store and lock backends and builds the
// services on top of them.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps

	switch appCfg.RecordStore {
	case "memory":
		mem := memstore.NewDB()
		deps.Standards = mem.Standards()
		deps.Submissions = mem.Submissions()
		deps.Initiatives = mem.Initiatives()
		deps.Volunteers = mem.Volunteers()
		deps.Audit = memstore.NewAudit()
		deps.Counts = mem
		deps.Ping = healthfeature.PingFunc(func(context.Context) error { return nil })
	default:
		client, err := connectMongo(ctx, appCfg, logger)
		if err != nil {
			return DBDeps{}, err
		}
		db := client.Database(appCfg.MongoDatabase)
		deps.MongoClient = client
		deps.MongoDatabase = db
		deps.Standards = standardstore.New(db)
		deps.Submissions = submissionstore.New(db)
		deps.Initiatives = initiativestore.New(db)
		deps.Volunteers = volunteerstore.New(db)
		deps.Audit = auditstore.New(db)
		deps.Counts = metricsstore.New(db)
		deps.Ping = healthfeature.MongoPinger(client)
	}

	locker, rdb, err := connectLocker(ctx, appCfg, logger)
	if err != nil {
		disconnect(deps, logger)
		return DBDeps{}, err
	}
	deps.Locker = locker
	deps.Redis = rdb

	svc, err := buildServices(ctx, appCfg, deps, logger)
	if err != nil {
		disconnect(deps, logger)
		return DBDeps{}, err
	}
	deps.Services = svc
	return deps, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	cctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := healthfeature.MongoPinger(client).Ping(cctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", appCfg.MongoMaxPoolSize))
	return client, nil
}

func connectLocker(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (keylock.Locker, *redis.Client, error) {
	if appCfg.LockBackend != "redis" {
		return keylock.NewLocal(), nil, nil
	}

	opts, err := redis.ParseURL(appCfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis_url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("using redis lock backend",
		zap.String("addr", opts.Addr),
		zap.Duration("lock_ttl", appCfg.LockTTL))
	return keylock.NewRedis(rdb, logger, keylock.WithTTL(appCfg.LockTTL)), rdb, nil
}

// EnsureSchema creates indexes and collection validators. It is a no-op
// for the in-memory record store.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	if err := validators.EnsureAll(sctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators failed", zap.Error(err))
		return err
	}
	if err := indexes.EnsureAll(sctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	logger.Info("schema ensured", zap.String("database", deps.MongoDatabase.Name()))
	return nil
}
