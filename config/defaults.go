// =============================================================================
// Default configuration
// =============================================================================
// Sane defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns the baseline Config every Loader starts from.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
		Memory:       DefaultMemoryConfig(),
		Redis:        DefaultRedisConfig(),
		Safety:       DefaultSafetyConfig(),
		LLM:          DefaultLLMConfig(),
		Orchestrator: DefaultOrchestratorConfig(),
	}
}

// DefaultServerConfig returns the default Control API server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8080,
		MetricsPort:        9091,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		RateLimitRPS:       100,
		RateLimitBurst:     200,
		CORSAllowedOrigins: []string{"*"},
		APIKeys:            nil,
	}
}

// DefaultMemoryConfig returns the default MemoryHub configuration: a
// file-backed store rooted at ./data/memory.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Backend:             "file",
		BasePath:            "./data/memory",
		AutoCleanupInterval: 10 * time.Minute,
	}
}

// DefaultRedisConfig returns the default Redis configuration, consulted
// only when Memory.Backend == "redis".
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		KeyPrefix:    "upgradeforge:memory:",
	}
}

// DefaultSafetyConfig matches safety.DefaultBreakerConfig in its breaker
// fields; its resource limits differ from safety.DefaultResourceLimit in
// MaxConcurrentTasks and CheckInterval.
func DefaultSafetyConfig() SafetyConfig {
	return SafetyConfig{
		FailureThreshold:   5,
		ErrorRateThreshold: 0.5,
		WindowSize:         10,
		RecoveryTimeout:    60 * time.Second,
		SuccessThreshold:   2,
		HalfOpenMaxCalls:   3,

		MaxMemoryMB:        500,
		MaxCPUPercent:      80,
		MaxFileHandles:     100,
		MaxExecutionTime:   300 * time.Second,
		MaxConcurrentTasks: 5,
		CheckInterval:      5 * time.Second,
		SafeMode:           false,
	}
}

// DefaultLLMConfig returns the default LLM provider configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "openai",
		Model:           "gpt-4",
		APIKey:          "",
		BaseURL:         "",
		Timeout:         2 * time.Minute,
		MaxRetries:      3,
	}
}

// DefaultLogConfig returns the default zap logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default OpenTelemetry configuration
// (tracing disabled by default).
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "upgradeforge",
		SampleRate:   0.1,
	}
}

// DefaultOrchestratorConfig mirrors orchestrator.DefaultConfig.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxIterations:            3,
		ConvergenceSeverityFloor: "low",
		ParallelAnalysis:         true,
		EnableResearch:           true,
		EnableOrchestratorDesign: false,
		ReportsDir:               "./reports",
	}
}
