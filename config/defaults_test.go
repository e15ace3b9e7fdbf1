package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)

	assert.Equal(t, "file", cfg.Memory.Backend)
	assert.Equal(t, "./data/memory", cfg.Memory.BasePath)
	assert.Equal(t, 10*time.Minute, cfg.Memory.AutoCleanupInterval)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, 5, cfg.Safety.FailureThreshold)
	assert.Equal(t, 0.5, cfg.Safety.ErrorRateThreshold)
	assert.Equal(t, 500.0, cfg.Safety.MaxMemoryMB)
	assert.Equal(t, 5, cfg.Safety.MaxConcurrentTasks)
	assert.False(t, cfg.Safety.SafeMode)

	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	assert.Equal(t, "gpt-4", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Log.EnableCaller)
	assert.False(t, cfg.Log.EnableStacktrace)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "upgradeforge", cfg.Telemetry.ServiceName)

	assert.Equal(t, 3, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, "low", cfg.Orchestrator.ConvergenceSeverityFloor)
	assert.True(t, cfg.Orchestrator.EnableResearch)
	assert.False(t, cfg.Orchestrator.EnableOrchestratorDesign)
	assert.Equal(t, "./reports", cfg.Orchestrator.ReportsDir)
}

func TestDefaultConfig_PassesValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}
