// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types provides the global shared type definitions for upgradeforge.

# Overview

types is the lowest-level shared package: it depends on nothing else in
the module, so memoryhub, safety, llmprovider, contract, agents, and
orchestrator all import it without risking an import cycle.

# Core types

  - Error / ErrorCode — structured error carrying an HTTP status, a
    Retryable flag, and an optional provider name.
  - TokenUsage — token counts that llmprovider adapters fill from each
    provider's response.
  - Tokenizer / EstimateTokenizer — local character-based token estimate;
    no llmprovider adapter calls it.
*/
package types
