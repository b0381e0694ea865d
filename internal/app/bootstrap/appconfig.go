// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP ports,
// TLS, logging level and format, and CORS. Everything specific to the
// compliance service lives here.
type AppConfig struct {
	// Record store: "mongo" or "memory" (ephemeral, for demos and tests)
	RecordStore string

	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Per-key locks: "local" (single process) or "redis" (shared across replicas)
	LockBackend string
	RedisURL    string        // e.g. redis://localhost:6379/0
	LockTTL     time.Duration // must exceed the longest critical section

	// Attachment storage
	StorageType      string // "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads/attachments")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files/attachments")

	// S3 configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string // Key prefix (e.g., "submissions/")
	StorageS3Endpoint  string // optional, for S3-compatible stores
	StorageS3PathStyle bool
	StorageS3PublicURL string // optional CDN base URL

	// Standards seeding
	StandardsSeedFile string // YAML file applied at startup; blank skips seeding
	DeriveOnStartup   bool

	// Background jobs (0 disables)
	ReconcileInterval time.Duration
	MetricsInterval   time.Duration

	// Requests per minute per client for POST /admin/reconcile
	ReconcileRateLimit int

	// Audit logging: "all", "db", "log", or "off"
	AuditLogCompliance string
	AuditLogEnrollment string
}
