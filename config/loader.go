// =============================================================================
// Config loader
// =============================================================================
// Unified configuration loading: YAML file + environment variable overlay.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("UPGRADEFORGE").
//	    Load()
//
// Priority: defaults -> YAML file -> environment variables
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Core config structure
// =============================================================================

// Config is the orchestrator service's complete configuration tree
// (SPEC_FULL §6 "Environment / configuration").
type Config struct {
	Server       ServerConfig       `yaml:"server" env:"SERVER"`
	Log          LogConfig          `yaml:"log" env:"LOG"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" env:"TELEMETRY"`
	Memory       MemoryConfig       `yaml:"memory" env:"MEMORY"`
	Redis        RedisConfig        `yaml:"redis" env:"REDIS"`
	Safety       SafetyConfig       `yaml:"safety" env:"SAFETY"`
	LLM          LLMConfig          `yaml:"llm" env:"LLM"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`
}

// ServerConfig configures the Control API's HTTP listener and its
// middleware chain (rate limiting, CORS, API key auth).
type ServerConfig struct {
	HTTPPort           int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort        int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout        time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS       float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	APIKeys            []string      `yaml:"api_keys" env:"API_KEYS"`
}

// MemoryConfig configures the MemoryHub's persistence backend (SPEC_FULL
// §4.1). Backend selects JSONFileStorage ("file") or RedisStorage ("redis").
type MemoryConfig struct {
	Backend             string        `yaml:"backend" env:"BACKEND"`
	BasePath            string        `yaml:"base_path" env:"BASE_PATH"`
	AutoCleanupInterval time.Duration `yaml:"auto_cleanup_interval" env:"AUTO_CLEANUP_INTERVAL"`
}

// RedisConfig mirrors memoryhub.RedisConfig; it is only consulted when
// Memory.Backend == "redis".
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	MaxRetries   int    `yaml:"max_retries" env:"MAX_RETRIES"`
	KeyPrefix    string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// SafetyConfig configures the per-agent CircuitBreaker and the
// process-global ResourceLimiter (SPEC_FULL §4.3).
type SafetyConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold" env:"ERROR_RATE_THRESHOLD"`
	WindowSize         int           `yaml:"window_size" env:"WINDOW_SIZE"`
	RecoveryTimeout    time.Duration `yaml:"recovery_timeout" env:"RECOVERY_TIMEOUT"`
	SuccessThreshold   int           `yaml:"success_threshold" env:"SUCCESS_THRESHOLD"`
	HalfOpenMaxCalls   int           `yaml:"half_open_max_calls" env:"HALF_OPEN_MAX_CALLS"`

	MaxMemoryMB        float64       `yaml:"max_memory_mb" env:"MAX_MEMORY_MB"`
	MaxCPUPercent      float64       `yaml:"max_cpu_percent" env:"MAX_CPU_PERCENT"`
	MaxFileHandles     int           `yaml:"max_file_handles" env:"MAX_FILE_HANDLES"`
	MaxExecutionTime   time.Duration `yaml:"max_execution_time" env:"MAX_EXECUTION_TIME"`
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks" env:"MAX_CONCURRENT_TASKS"`
	CheckInterval      time.Duration `yaml:"check_interval" env:"CHECK_INTERVAL"`
	SafeMode           bool          `yaml:"safe_mode" env:"SAFE_MODE"`
}

// LLMConfig configures the default llmprovider.Provider construction.
type LLMConfig struct {
	DefaultProvider string        `yaml:"default_provider" env:"DEFAULT_PROVIDER"`
	Model           string        `yaml:"model" env:"MODEL"`
	APIKey          string        `yaml:"api_key" env:"API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries      int           `yaml:"max_retries" env:"MAX_RETRIES"`
}

// LogConfig configures the shared zap.Logger every package is constructed
// with.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// OrchestratorConfig configures the Orchestrator's phase policy
// (SPEC_FULL §4.4), mirroring orchestrator.Config.
type OrchestratorConfig struct {
	MaxIterations            int    `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	ConvergenceSeverityFloor string `yaml:"convergence_severity_floor" env:"CONVERGENCE_SEVERITY_FLOOR"`
	ParallelAnalysis         bool   `yaml:"parallel_analysis" env:"PARALLEL_ANALYSIS"`
	EnableResearch           bool   `yaml:"enable_research" env:"ENABLE_RESEARCH"`
	EnableOrchestratorDesign bool   `yaml:"enable_orchestrator_design" env:"ENABLE_ORCHESTRATOR_DESIGN"`
	ReportsDir               string `yaml:"reports_dir" env:"REPORTS_DIR"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads a Config from defaults, an optional YAML file, and
// environment variables, in that priority order (Builder pattern).
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a Loader with the UPGRADEFORGE environment prefix.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "UPGRADEFORGE",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML file to overlay onto the defaults.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix overrides the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator registers an additional validation pass run after Load.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load builds a Config: defaults, then the YAML file (if configured), then
// environment variables, then every registered validator.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile overlays YAML onto cfg. A missing file is not an error: the
// defaults stand.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv overlays environment variables onto cfg.
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv recursively walks cfg's struct fields, matching each
// env tag against PREFIX_SECTION_FIELD environment variables.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue parses value into field according to its reflect.Kind,
// special-casing time.Duration (an Int64 underneath) and comma-separated
// string slices.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// MustLoad loads a Config from path, panicking on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv loads a Config from defaults and environment variables only.
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate checks the loaded Config for internally-inconsistent values.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}

	if c.Memory.Backend != "file" && c.Memory.Backend != "redis" {
		errs = append(errs, "memory.backend must be 'file' or 'redis'")
	}

	if c.Orchestrator.MaxIterations <= 0 {
		errs = append(errs, "orchestrator.max_iterations must be positive")
	}
	switch c.Orchestrator.ConvergenceSeverityFloor {
	case "low", "medium", "high", "critical":
	default:
		errs = append(errs, "orchestrator.convergence_severity_floor must be one of low/medium/high/critical")
	}

	if c.Safety.MaxConcurrentTasks <= 0 {
		errs = append(errs, "safety.max_concurrent_tasks must be positive")
	}
	if c.Safety.FailureThreshold <= 0 {
		errs = append(errs, "safety.failure_threshold must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
