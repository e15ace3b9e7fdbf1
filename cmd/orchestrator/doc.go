// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main provides the upgrade orchestrator's server entry point.

# Overview

cmd/orchestrator is the executable entry point: it loads Config, wires
the MemoryHub, ResourceLimiter, LLM provider, and agent set, and serves
the Control API (§6) over HTTP with a separate Prometheus metrics port.

# Core types

  - Server      — owns the HTTP and metrics listeners and orchestrates
    graceful shutdown
  - Middleware  — HTTP middleware function signature

# Capabilities

  - Subcommands: serve (start the server), version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders,
    RequestLogger, CORS, RateLimiter (per-IP), APIKeyAuth, OTelTracing,
    MetricsMiddleware
  - Metrics server: separate port exposing /metrics (Prometheus)
  - A background poller snapshots circuit breaker state and resource
    limiter violations into the metrics Collector
  - Graceful shutdown: signal -> stop poller -> close HTTP -> close
    metrics -> wait
  - Build injection: Version, BuildTime, GitCommit via ldflags
*/
package main
