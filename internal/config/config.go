package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the complete runtime configuration. It is loaded once at process
// start and must not be mutated afterwards; collaborators receive a pointer.
type Config struct {
	// Env is the runtime environment tag jobs are expected to carry.
	Env string

	// HostingProject is the hosting project all non-local deploys must target.
	HostingProject string

	// ExportBucket holds the versioned content exports.
	ExportBucket string

	// ThemesRoot holds the installed template bundles, one directory per template key.
	ThemesRoot string

	// BaseConfigPath is the base site configuration copied into every workspace.
	BaseConfigPath string

	// LockTTL bounds how long a build lock stays live without being released.
	LockTTL time.Duration

	// WorkspaceRoot holds per-job run roots (snapshot + workspace).
	WorkspaceRoot string

	// LocalOutputRoot receives generated sites for local destinations.
	LocalOutputRoot string

	// CommandTimeout bounds every external subprocess call.
	CommandTimeout time.Duration

	// GeneratorBin and DeployBin are the external static-site generator and hosting tool.
	GeneratorBin string
	DeployBin    string

	// ServerPort is the port the worker listens on.
	ServerPort string

	Queue       QueueConfig
	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
	NATS        NATSConfig
	Janitor     JanitorConfig
	Log         LogConfig
}

// QueueConfig sizes the intake queue and worker pool.
type QueueConfig struct {
	Depth   int
	Workers int
}

// DatabaseConfig contains document store connection configuration.
type DatabaseConfig struct {
	// Provider is the document store backend ("spanner", "redis", "memory").
	Provider string

	// ProjectID, Instance and Database address a Spanner database.
	ProjectID string
	Instance  string
	Database  string

	// RedisAddr, RedisPassword and RedisDB address a Redis server.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// ObjectStoreConfig contains object store configuration.
type ObjectStoreConfig struct {
	// Provider is the object store backend ("gcs", "minio", "local").
	Provider string

	// Endpoint, AccessKey, SecretKey and UseSSL configure MinIO.
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// LocalRoot is the directory standing in for buckets with the local provider.
	LocalRoot string
}

// Scheme returns the URI scheme used to print snapshot locations.
func (o ObjectStoreConfig) Scheme() string {
	switch o.Provider {
	case "minio":
		return "s3"
	case "local":
		return "file"
	default:
		return "gs"
	}
}

// NATSConfig enables the optional NATS intake when URL is set.
type NATSConfig struct {
	URL        string
	Subject    string
	QueueGroup string
}

// JanitorConfig controls pruning of stale run roots.
type JanitorConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	env := os.Getenv("ENV")
	if env == "" {
		return nil, fmt.Errorf("missing required environment variable ENV")
	}
	hostingProject := firstNonEmpty(os.Getenv("HOSTING_PROJECT"), os.Getenv("FIREBASE_PROJECT"))
	if hostingProject == "" {
		return nil, fmt.Errorf("missing required environment variable HOSTING_PROJECT")
	}

	timeoutSeconds := getEnvAsInt("COMMAND_TIMEOUT_SECONDS", getEnvAsInt("FIREBASE_CMD_TIMEOUT_SECONDS", 120))

	config := &Config{
		Env:             env,
		HostingProject:  hostingProject,
		ExportBucket:    getEnvOrDefault("EXPORT_BUCKET", fmt.Sprintf("buzzpoint-sites-%s", env)),
		ThemesRoot:      getEnvOrDefault("VERTICAL_THEMES_ROOT", "themes"),
		BaseConfigPath:  getEnvOrDefault("VERTICAL_BASE_CONFIG", filepath.Join("config", "base-config.yaml")),
		LockTTL:         time.Duration(getEnvAsInt("VERTICAL_LOCK_TTL_SECONDS", 900)) * time.Second,
		WorkspaceRoot:   getEnvOrDefault("VERTICAL_WORKSPACE_ROOT", "workspaces"),
		LocalOutputRoot: getEnvOrDefault("VERTICAL_LOCAL_OUTPUT_ROOT", "local_output"),
		CommandTimeout:  time.Duration(timeoutSeconds) * time.Second,
		GeneratorBin:    getEnvOrDefault("GENERATOR_BIN", "hugo"),
		DeployBin:       getEnvOrDefault("DEPLOY_BIN", "firebase"),
		ServerPort:      getEnvOrDefault("WORKER_PORT", "8081"),
		Queue: QueueConfig{
			Depth:   getEnvAsInt("QUEUE_DEPTH", 16),
			Workers: getEnvAsInt("QUEUE_WORKERS", 1),
		},
		Database: DatabaseConfig{
			Provider:      getEnvOrDefault("DB_PROVIDER", "spanner"),
			ProjectID:     os.Getenv("DB_PROJECT_ID"),
			Instance:      os.Getenv("DB_INSTANCE"),
			Database:      os.Getenv("DB_DATABASE"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		ObjectStore: ObjectStoreConfig{
			Provider:  getEnvOrDefault("STORAGE_PROVIDER", "gcs"),
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			UseSSL:    getEnvAsBool("STORAGE_USE_SSL", true),
			LocalRoot: os.Getenv("STORAGE_LOCAL_ROOT"),
		},
		NATS: NATSConfig{
			URL:        os.Getenv("NATS_URL"),
			Subject:    getEnvOrDefault("NATS_SUBJECT", "vertical.builds"),
			QueueGroup: getEnvOrDefault("NATS_QUEUE_GROUP", "vertical-builder"),
		},
		Janitor: JanitorConfig{
			Interval:  time.Duration(getEnvAsInt("JANITOR_INTERVAL_MINUTES", 60)) * time.Minute,
			Retention: time.Duration(getEnvAsInt("JANITOR_RETENTION_HOURS", 24)) * time.Hour,
		},
		Log: LogFromEnv(),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid for the selected providers.
func (c *Config) Validate() error {
	if c.LockTTL <= 0 {
		return fmt.Errorf("VERTICAL_LOCK_TTL_SECONDS must be positive")
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT_SECONDS must be positive")
	}
	if c.Queue.Depth <= 0 || c.Queue.Workers <= 0 {
		return fmt.Errorf("QUEUE_DEPTH and QUEUE_WORKERS must be positive")
	}

	switch c.Database.Provider {
	case "spanner":
		if c.Database.ProjectID == "" {
			return fmt.Errorf("DB_PROJECT_ID is required for Spanner")
		}
		if c.Database.Instance == "" {
			return fmt.Errorf("DB_INSTANCE is required for Spanner")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("DB_DATABASE is required for Spanner")
		}
	case "redis":
		if c.Database.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for Redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database provider: %s", c.Database.Provider)
	}

	switch c.ObjectStore.Provider {
	case "gcs":
	case "minio":
		if c.ObjectStore.Endpoint == "" {
			return fmt.Errorf("STORAGE_ENDPOINT is required for MinIO")
		}
	case "local":
		if c.ObjectStore.LocalRoot == "" {
			return fmt.Errorf("STORAGE_LOCAL_ROOT is required for the local object store")
		}
	default:
		return fmt.Errorf("unsupported storage provider: %s", c.ObjectStore.Provider)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an integer or a default if not set.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
