package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service    ServiceConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Queue      QueueConfig
	Telemetry  TelemetryConfig
	Features   FeatureFlags
	Provider   ProviderConfig
	Scheduler  SchedulerConfig
	SkillPolicy SkillPolicyConfig
	InstructionPolicy InstructionPolicyConfig
	Redis      RedisConfig
}

// RedisConfig holds the Redis connection settings shared by the event bus
// (C10), the cross-process run StateStore, and the deterministic tool
// stores.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ProviderConfig holds the §6 execution-provider selection and Kubernetes
// Job settings.
type ProviderConfig struct {
	Default           string // "workspace" | "kubernetes"; unknown values coerce to "kubernetes"
	WorkspaceIdentity string
	K8sNamespace      string
	K8sImage          string
	K8sInCluster      bool
	K8sServiceAccount string
	K8sGPULimit       int64
	K8sJobTTLSeconds  int64
	K8sKubeconfig     string
}

// SchedulerConfig holds the C11 polling-cadence settings.
type SchedulerConfig struct {
	PollInterval time.Duration
}

// SkillPolicyConfig holds skill-materialization policy (§4.7).
type SkillPolicyConfig struct {
	RuntimeHome string
}

// InstructionPolicyConfig holds instruction-compiler policy (§4.6).
type InstructionPolicyConfig struct {
	WorkspaceRoot string
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	MaxConns     int
	MinConns     int
	MaxIdleTime  time.Duration
	MaxLifetime  time.Duration
}

// CacheConfig holds cache settings
type CacheConfig struct {
	Enabled    bool
	SizeMB     int
	DefaultTTL time.Duration
}

// QueueConfig holds message queue settings
type QueueConfig struct {
	Type      string // "memory" for MVP, "kafka" for production
	Brokers   []string
	BatchSize int
	LingerMS  int
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof    bool
	PprofPort      int
	EnableTracing  bool
	EnableMetrics  bool
	MetricsPort    int
	TracingBackend string
}

// FeatureFlags for MVP toggles
type FeatureFlags struct {
	EnableKafka            bool
	EnableK8sRunner        bool
	EnableWASMOptimizer    bool
	EnableDistributedCache bool
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "orchestrator"),
			User:        getEnv("POSTGRES_USER", "orchestrator"),
			Password:    getEnv("POSTGRES_PASSWORD", "orchestrator"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			SizeMB:     getEnvInt("CACHE_SIZE_MB", 512),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Queue: QueueConfig{
			Type:      getEnv("QUEUE_TYPE", "memory"),
			Brokers:   getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			BatchSize: getEnvInt("KAFKA_BATCH_SIZE", 1000),
			LingerMS:  getEnvInt("KAFKA_LINGER_MS", 10),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:    getEnvBool("ENABLE_PPROF", true),
			PprofPort:      getEnvInt("PPROF_PORT", 6060),
			EnableTracing:  getEnvBool("ENABLE_TRACING", true),
			EnableMetrics:  getEnvBool("ENABLE_METRICS", true),
			MetricsPort:    getEnvInt("METRICS_PORT", 9090),
			TracingBackend: getEnv("TRACING_BACKEND", "stdout"),
		},
		Features: FeatureFlags{
			EnableKafka:            getEnvBool("ENABLE_KAFKA", false),
			EnableK8sRunner:        getEnvBool("ENABLE_K8S_RUNNER", false),
			EnableWASMOptimizer:    getEnvBool("ENABLE_WASM_OPTIMIZER", false),
			EnableDistributedCache: getEnvBool("ENABLE_DISTRIBUTED_CACHE", false),
		},
		Provider: ProviderConfig{
			Default:           getEnv("PROVIDER_DEFAULT", "workspace"),
			WorkspaceIdentity: getEnv("PROVIDER_WORKSPACE_IDENTITY", serviceName),
			K8sNamespace:      getEnv("PROVIDER_K8S_NAMESPACE", "default"),
			K8sImage:          getEnv("PROVIDER_K8S_IMAGE", ""),
			K8sInCluster:      getEnvBool("PROVIDER_K8S_IN_CLUSTER", false),
			K8sServiceAccount: getEnv("PROVIDER_K8S_SERVICE_ACCOUNT", ""),
			K8sGPULimit:       int64(getEnvInt("PROVIDER_K8S_GPU_LIMIT", 0)),
			K8sJobTTLSeconds:  int64(getEnvInt("PROVIDER_K8S_JOB_TTL_SECONDS", 3600)),
			K8sKubeconfig:     getEnv("PROVIDER_K8S_KUBECONFIG", ""),
		},
		Scheduler: SchedulerConfig{
			PollInterval: getEnvDuration("SCHEDULER_POLL_INTERVAL", 30*time.Second),
		},
		SkillPolicy: SkillPolicyConfig{
			RuntimeHome: getEnv("SKILL_RUNTIME_HOME", "/var/run/orchestrator"),
		},
		InstructionPolicy: InstructionPolicyConfig{
			WorkspaceRoot: getEnv("INSTRUCTION_WORKSPACE_ROOT", "/var/lib/orchestrator/workspaces"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Simple comma-separated parsing
		// For production, use a proper CSV parser
		return strings.Split(value, ",")
	}
	return defaultValue
}