// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config loads the upgrade orchestrator's configuration tree.

# Overview

Config aggregates every section the orchestrator and its Control API
depend on: Server, Log, Telemetry, Memory, Redis, Safety, LLM, and
Orchestrator. Values merge in priority order: defaults -> YAML file ->
environment variables (UPGRADEFORGE_ prefix by default).

# Core types

  - Config: the top-level aggregate
  - Loader: Builder-pattern loader — WithConfigPath / WithEnvPrefix /
    WithValidator, then Load()

# Usage

	cfg, err := config.NewLoader().
		WithConfigPath("config.yaml").
		WithEnvPrefix("UPGRADEFORGE").
		Load()
*/
package config
