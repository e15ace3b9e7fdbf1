// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers implements the HTTP request handlers for the upgrade
orchestrator's Control API.

# Core types

  - UpgradeHandler   — launches runs, serves status/report/document/list
  - HealthHandler    — service health checks (/health, /healthz, /ready)
  - Response         — unified JSON envelope (success + data + error + timestamp)
  - ErrorInfo        — structured error info (code, message, retryable)
  - ResponseWriter   — wraps http.ResponseWriter to capture the status code
  - HealthCheck      — pluggable health check interface

# Capabilities

  - Uniform response formatting: WriteSuccess / WriteError / WriteJSON
  - Request validation: DecodeJSONBody (1 MB limit + strict mode), ValidateContentType
  - ErrorCode -> HTTP status mapping (4xx/5xx)
  - Background run launch, polling, and report/document retrieval
  - Extensible health checks via RegisterCheck
*/
package handlers
