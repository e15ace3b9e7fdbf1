// Package agents implements the closed set of concrete agents named in
// SPEC_FULL §9: each embeds contract.BaseAgent and supplies only the
// prompt-construction and response-parsing step of the execution contract
// (SPEC_FULL §4.2). Agents never reference each other directly — they
// discover prior work exclusively through contract.UpstreamOf/CanonicalKey
// and the shared MemoryHub.
package agents
