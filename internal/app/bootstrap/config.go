// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/compliancehub/internal/app/system/auditlog"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for ComplianceHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, record_store, etc.
//   - Environment variables: COMPLIANCEHUB_MONGO_URI, COMPLIANCEHUB_RECORD_STORE, etc.
//   - Command-line flags: --mongo_uri, --record_store, etc.
var appConfigKeys = []config.AppKey{
	{Name: "record_store", Default: "mongo", Desc: "Record store backend: 'mongo' or 'memory'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "compliance_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Locking
	{Name: "lock_backend", Default: "local", Desc: "Per-key lock backend: 'local' or 'redis'"},
	{Name: "redis_url", Default: "", Desc: "Redis URL for the redis lock backend"},
	{Name: "lock_ttl", Default: "30s", Desc: "Redis lock expiry (e.g., 30s)"},

	// File storage configuration
	{Name: "storage_type", Default: "local", Desc: "Attachment storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads/attachments", Desc: "Local storage path for attachments"},
	{Name: "storage_local_url", Default: "/files/attachments", Desc: "URL prefix for serving local files"},

	// S3 configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "submissions/", Desc: "S3 key prefix"},
	{Name: "storage_s3_endpoint", Default: "", Desc: "Custom S3 endpoint (MinIO, LocalStack)"},
	{Name: "storage_s3_path_style", Default: false, Desc: "Use path-style S3 addressing"},
	{Name: "storage_s3_public_url", Default: "", Desc: "Public base URL for attachments (e.g., a CDN)"},

	// Standards
	{Name: "standards_seed_file", Default: "", Desc: "YAML file of standards to upsert at startup"},
	{Name: "derive_on_startup", Default: true, Desc: "Re-derive every standard at startup"},

	// Background jobs
	{Name: "reconcile_interval", Default: "0s", Desc: "Enrollment reconciliation interval (0 disables)"},
	{Name: "metrics_interval", Default: "1m", Desc: "Standards-by-status gauge refresh interval (0 disables)"},
	{Name: "reconcile_rate_limit", Default: 6, Desc: "On-demand reconcile requests per minute per client"},

	// Audit logging settings
	{Name: "audit_log_compliance", Default: "all", Desc: "Compliance event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_enrollment", Default: "all", Desc: "Enrollment event logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, COMPLIANCEHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
//
// Operation timeouts are read from COMPLIANCEHUB_TIMEOUT_* here as well.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "COMPLIANCEHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		RecordStore:      strings.ToLower(appValues.String("record_store")),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// Locking
		LockBackend: strings.ToLower(appValues.String("lock_backend")),
		RedisURL:    appValues.String("redis_url"),
		LockTTL:     appValues.Duration("lock_ttl", 30*time.Second),

		// File storage
		StorageType:      strings.ToLower(appValues.String("storage_type")),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		// S3
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageS3Endpoint:  appValues.String("storage_s3_endpoint"),
		StorageS3PathStyle: appValues.Bool("storage_s3_path_style"),
		StorageS3PublicURL: appValues.String("storage_s3_public_url"),

		// Standards
		StandardsSeedFile: appValues.String("standards_seed_file"),
		DeriveOnStartup:   appValues.Bool("derive_on_startup"),

		// Background jobs
		ReconcileInterval:  appValues.Duration("reconcile_interval", 0),
		MetricsInterval:    appValues.Duration("metrics_interval", time.Minute),
		ReconcileRateLimit: appValues.Int("reconcile_rate_limit"),

		// Audit logging
		AuditLogCompliance: appValues.String("audit_log_compliance"),
		AuditLogEnrollment: appValues.String("audit_log_enrollment"),
	}

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("operation timeouts overridden from environment",
			zap.Int("count", n),
			zap.Any("timeouts", timeouts.Current()))
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Enumerated settings and the settings they make mandatory are checked
// here so a bad deployment fails before connecting to anything.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.RecordStore {
	case "mongo":
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
	case "memory":
		logger.Warn("using in-memory record store; data is lost on restart")
	default:
		return fmt.Errorf("record_store must be 'mongo' or 'memory', got %q", appCfg.RecordStore)
	}

	switch appCfg.LockBackend {
	case "local":
	case "redis":
		if appCfg.RedisURL == "" {
			return fmt.Errorf("lock_backend 'redis' requires redis_url")
		}
	default:
		return fmt.Errorf("lock_backend must be 'local' or 'redis', got %q", appCfg.LockBackend)
	}

	switch appCfg.StorageType {
	case "local":
		if strings.TrimSpace(appCfg.StorageLocalPath) == "" {
			return fmt.Errorf("storage_type 'local' requires storage_local_path")
		}
	case "s3":
		if appCfg.StorageS3Bucket == "" {
			return fmt.Errorf("storage_type 's3' requires storage_s3_bucket")
		}
	default:
		return fmt.Errorf("storage_type must be 'local' or 's3', got %q", appCfg.StorageType)
	}

	for key, mode := range map[string]string{
		"audit_log_compliance": appCfg.AuditLogCompliance,
		"audit_log_enrollment": appCfg.AuditLogEnrollment,
	} {
		switch mode {
		case auditlog.ModeAll, auditlog.ModeDB, auditlog.ModeLog, auditlog.ModeOff:
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, mode)
		}
	}

	if appCfg.ReconcileInterval < 0 || appCfg.MetricsInterval < 0 {
		return fmt.Errorf("job intervals cannot be negative")
	}
	if appCfg.ReconcileRateLimit <= 0 {
		return fmt.Errorf("reconcile_rate_limit must be positive")
	}
	return nil
}
