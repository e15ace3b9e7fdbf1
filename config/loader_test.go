package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader tests ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "file", cfg.Memory.Backend)
	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s

memory:
  backend: "redis"
  base_path: "/var/lib/upgradeforge"

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

llm:
  default_provider: "anthropic"
  model: "claude-3"

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, "/var/lib/upgradeforge", cfg.Memory.BasePath)

	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	assert.Equal(t, "claude-3", cfg.LLM.Model)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"UPGRADEFORGE_SERVER_HTTP_PORT":     "7777",
		"UPGRADEFORGE_MEMORY_BACKEND":       "redis",
		"UPGRADEFORGE_LLM_DEFAULT_PROVIDER": "anthropic",
		"UPGRADEFORGE_LOG_LEVEL":            "warn",
	}

	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8888
llm:
  default_provider: "openai"
  model: "yaml-model"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	os.Setenv("UPGRADEFORGE_SERVER_HTTP_PORT", "9999")
	os.Setenv("UPGRADEFORGE_LLM_DEFAULT_PROVIDER", "anthropic")
	defer func() {
		os.Unsetenv("UPGRADEFORGE_SERVER_HTTP_PORT")
		os.Unsetenv("UPGRADEFORGE_LLM_DEFAULT_PROVIDER")
	}()

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.HTTPPort)
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	// unset by env, so the YAML value survives
	assert.Equal(t, "yaml-model", cfg.LLM.Model)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	os.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")
	os.Setenv("MYAPP_MEMORY_BACKEND", "redis")
	defer func() {
		os.Unsetenv("MYAPP_SERVER_HTTP_PORT")
		os.Unsetenv("MYAPP_MEMORY_BACKEND")
	}()

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
	assert.Equal(t, "redis", cfg.Memory.Backend)
}

func TestLoader_EnvCommaSeparatedSlice(t *testing.T) {
	os.Setenv("UPGRADEFORGE_SERVER_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	defer os.Unsetenv("UPGRADEFORGE_SERVER_CORS_ALLOWED_ORIGINS")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
}

func TestLoader_WithValidator(t *testing.T) {
	validator := func(cfg *Config) error {
		if cfg.Server.HTTPPort < 1024 {
			return assert.AnError
		}
		return nil
	}

	os.Setenv("UPGRADEFORGE_SERVER_HTTP_PORT", "80")
	defer os.Unsetenv("UPGRADEFORGE_SERVER_HTTP_PORT")

	_, err := NewLoader().WithValidator(validator).Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/path/config.yaml").Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
server:
  http_port: [invalid
  this is not valid yaml
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	_, err = NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config.Validate tests ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid HTTP port (negative)",
			modify: func(c *Config) {
				c.Server.HTTPPort = -1
			},
			wantErr: true,
		},
		{
			name: "invalid HTTP port (too large)",
			modify: func(c *Config) {
				c.Server.HTTPPort = 70000
			},
			wantErr: true,
		},
		{
			name: "invalid memory backend",
			modify: func(c *Config) {
				c.Memory.Backend = "mongo"
			},
			wantErr: true,
		},
		{
			name: "invalid max iterations",
			modify: func(c *Config) {
				c.Orchestrator.MaxIterations = 0
			},
			wantErr: true,
		},
		{
			name: "invalid convergence severity floor",
			modify: func(c *Config) {
				c.Orchestrator.ConvergenceSeverityFloor = "urgent"
			},
			wantErr: true,
		},
		{
			name: "invalid max concurrent tasks",
			modify: func(c *Config) {
				c.Safety.MaxConcurrentTasks = 0
			},
			wantErr: true,
		},
		{
			name: "invalid failure threshold",
			modify: func(c *Config) {
				c.Safety.FailureThreshold = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- MustLoad / LoadFromEnv tests ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
server:
  http_port: 8080
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8080, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0644)
	require.NoError(t, err)

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	os.Setenv("UPGRADEFORGE_LLM_DEFAULT_PROVIDER", "anthropic")
	defer os.Unsetenv("UPGRADEFORGE_LLM_DEFAULT_PROVIDER")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
}
