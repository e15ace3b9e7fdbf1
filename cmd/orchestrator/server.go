// Package main provides the upgrade orchestrator's server implementation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/agents"
	"github.com/tdevteam/upgradeforge/api"
	"github.com/tdevteam/upgradeforge/api/handlers"
	"github.com/tdevteam/upgradeforge/config"
	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/internal/metrics"
	"github.com/tdevteam/upgradeforge/internal/server"
	"github.com/tdevteam/upgradeforge/llmprovider"
	"github.com/tdevteam/upgradeforge/memoryhub"
	"github.com/tdevteam/upgradeforge/orchestrator"
	"github.com/tdevteam/upgradeforge/safety"
)

// Server is the orchestrator's Control API server: it owns the HTTP and
// metrics listeners, the agent set, and the background breaker/limiter
// snapshot poller.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler  *handlers.HealthHandler
	upgradeHandler *handlers.UpgradeHandler

	hub     *memoryhub.Hub
	storage memoryhub.Storage
	limiter *safety.ResourceLimiter
	agents  map[string]contract.Agent
	orch    *orchestrator.Orchestrator

	metricsCollector *metrics.Collector

	pollerCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer wires the MemoryHub, ResourceLimiter, LLM provider, agent set,
// and Orchestrator from cfg. It does not start any listener.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	hub, storage, err := buildHub(cfg.Memory, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("build memory hub: %w", err)
	}

	limiter := safety.NewResourceLimiter(safety.ResourceLimit{
		MaxMemoryMB:        cfg.Safety.MaxMemoryMB,
		MaxCPUPercent:      cfg.Safety.MaxCPUPercent,
		MaxFileHandles:     cfg.Safety.MaxFileHandles,
		MaxExecutionTime:   cfg.Safety.MaxExecutionTime,
		MaxConcurrentTasks: cfg.Safety.MaxConcurrentTasks,
		CheckInterval:      cfg.Safety.CheckInterval,
	}, logger)

	provider, err := buildProvider(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("build LLM provider: %w", err)
	}

	deps := contract.Deps{Hub: hub, Limiter: limiter, Provider: provider, Logger: logger}
	agentSet := agents.New(deps)

	orch := orchestrator.New(hub, agentSet, orchestrator.Config{
		MaxIterations:            cfg.Orchestrator.MaxIterations,
		ConvergenceFloor:         cfg.Orchestrator.ConvergenceSeverityFloor,
		MaxConcurrentTasks:       cfg.Safety.MaxConcurrentTasks,
		EnableResearch:           cfg.Orchestrator.EnableResearch,
		EnableOrchestratorDesign: cfg.Orchestrator.EnableOrchestratorDesign,
		MaxExecutionTime:         cfg.Safety.MaxExecutionTime,
	}, logger)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		hub:     hub,
		storage: storage,
		limiter: limiter,
		agents:  agentSet,
		orch:    orch,
	}, nil
}

// buildHub selects the file or Redis-backed Storage per cfg.Backend,
// returning the Storage alongside the Hub so callers can type-assert it for
// readiness checks (e.g. registering a RedisHealthCheck only when the
// backend is actually Redis).
func buildHub(cfg config.MemoryConfig, redisCfg config.RedisConfig, logger *zap.Logger) (*memoryhub.Hub, memoryhub.Storage, error) {
	var storage memoryhub.Storage
	switch cfg.Backend {
	case "redis":
		rs, err := memoryhub.NewRedisStorage(memoryhub.RedisConfig{
			Addr:         redisCfg.Addr,
			Password:     redisCfg.Password,
			DB:           redisCfg.DB,
			MaxRetries:   redisCfg.MaxRetries,
			PoolSize:     redisCfg.PoolSize,
			MinIdleConns: redisCfg.MinIdleConns,
			KeyPrefix:    redisCfg.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		storage = rs
	default:
		fs, err := memoryhub.NewJSONFileStorage(cfg.BasePath)
		if err != nil {
			return nil, nil, err
		}
		storage = fs
	}

	opts := []memoryhub.Option{}
	if cfg.AutoCleanupInterval > 0 {
		opts = append(opts, memoryhub.WithAutoCleanupInterval(cfg.AutoCleanupInterval))
	}
	return memoryhub.NewHub(storage, logger, opts...), storage, nil
}

// buildProvider selects the OpenAI or Anthropic Provider per
// cfg.DefaultProvider and wraps it with the retry/backoff decorator.
func buildProvider(cfg config.LLMConfig, logger *zap.Logger) (llmprovider.Provider, error) {
	var inner llmprovider.Provider
	switch cfg.DefaultProvider {
	case "anthropic":
		inner = llmprovider.NewAnthropicProvider(llmprovider.AnthropicConfig{
			APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model,
		})
	case "openai", "":
		inner = llmprovider.NewOpenAIProvider(llmprovider.OpenAIConfig{
			APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: openai, anthropic)", cfg.DefaultProvider)
	}

	policy := llmprovider.DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxRetries = cfg.MaxRetries
	}
	return llmprovider.NewRetryingProvider(inner, policy, logger), nil
}

// =============================================================================
// Start
// =============================================================================

func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("orchestrator", s.logger)
	s.orch.SetMetrics(s.metricsCollector)

	s.initHandlers()
	s.startBreakerPoller()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if rs, ok := s.storage.(*memoryhub.RedisStorage); ok {
		s.healthHandler.RegisterCheck(handlers.NewRedisHealthCheck("memoryhub_redis", rs.Ping))
	}
	s.upgradeHandler = handlers.NewUpgradeHandler(s.orch, s.cfg.Orchestrator.ReportsDir, s.logger)
	s.logger.Info("handlers initialized")
}

// startBreakerPoller periodically snapshots every agent's circuit breaker
// state and the shared ResourceLimiter's violation counts into the metrics
// Collector (SPEC_FULL §6's circuit_breaker_state / resource_limiter_violations_total).
func (s *Server) startBreakerPoller() {
	ctx, cancel := context.WithCancel(context.Background())
	s.pollerCancel = cancel

	interval := s.cfg.Safety.CheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.snapshotBreakers()
				s.snapshotLimiter()
			}
		}
	}()
}

func (s *Server) snapshotBreakers() {
	for name, agent := range s.agents {
		ba, ok := agent.(interface{ Breaker() *safety.CircuitBreaker })
		if !ok {
			continue
		}
		s.metricsCollector.SetCircuitBreakerState(name, int(ba.Breaker().State()))
	}
}

func (s *Server) snapshotLimiter() {
	stats := s.limiter.Stats()
	s.metricsCollector.SetResourceLimiterViolations(string(safety.ViolationMemory), stats.MemoryViolations)
	s.metricsCollector.SetResourceLimiterViolations(string(safety.ViolationCPU), stats.CPUViolations)
	s.metricsCollector.SetResourceLimiterViolations(string(safety.ViolationFileHandle), stats.FileViolations)
	s.metricsCollector.SetResourceLimiterViolations(string(safety.ViolationTime), stats.TimeViolations)
	s.metricsCollector.SetResourceLimiterViolations(string(safety.ViolationConcurrent), stats.ConcurrentViolations)
}

// =============================================================================
// HTTP server
// =============================================================================

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, api.HealthResponse{Status: "healthy", Version: Version, Timestamp: time.Now()})
	})

	mux.HandleFunc("POST /api/upgrade/analyze", s.upgradeHandler.HandleAnalyze)
	mux.HandleFunc("GET /api/upgrade/status/{task_id}", s.upgradeHandler.HandleStatus)
	mux.HandleFunc("GET /api/upgrade/report/{task_id}", s.upgradeHandler.HandleReport)
	mux.HandleFunc("GET /api/upgrade/document/{task_id}/{doc_name}", s.upgradeHandler.HandleDocument)
	mux.HandleFunc("GET /api/upgrade/list", s.upgradeHandler.HandleList)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics", "/api/health"}
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(context.Background(), s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, false, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// Metrics server
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// Shutdown
// =============================================================================

func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown...")

	ctx := context.Background()

	if s.pollerCancel != nil {
		s.pollerCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("graceful shutdown completed")
}
