package contract

// Agent name constants. These are the closed variant set of concrete
// agents named in SPEC_FULL §9 — each satisfies Agent and is constructed
// through the orchestrator's factory registry, never referenced directly
// by another agent.
const (
	RequirementAnalyzer   = "RequirementAnalyzer"
	StaticAnalyzer        = "StaticAnalyzer"
	CodeAnalyzer          = "CodeAnalyzer"
	BehaviorAnalyzer      = "BehaviorAnalyzer"
	ImpactAnalyzer        = "ImpactAnalyzer"
	QualityGate           = "QualityGate"
	ExternalResearcher    = "ExternalResearcher"
	GapAnalyzer           = "GapAnalyzer"
	ArchitectAgent        = "ArchitectAgent"
	OrchestratorDesigner  = "OrchestratorDesigner"
	PlannerAgent          = "PlannerAgent"
	TaskCreatorAgent      = "TaskCreatorAgent"
	CodeGenerator         = "CodeGenerator"
)

// CurrentStateAnalyzers are the phase-2 analyzers that may run
// concurrently under the ResourceLimiter's concurrency cap (SPEC_FULL
// §4.4).
var CurrentStateAnalyzers = []string{
	StaticAnalyzer, CodeAnalyzer, BehaviorAnalyzer, ImpactAnalyzer, QualityGate,
}

// CriticalAgents abort the orchestrator loop on failure rather than
// letting the phase continue with a missing-upstream annotation
// (SPEC_FULL §4.4 Failure semantics).
var CriticalAgents = map[string]bool{
	RequirementAnalyzer: true,
	GapAnalyzer:         true,
	PlannerAgent:        true,
	CodeGenerator:       true,
}

// UpstreamOf is the report-flow discipline table (SPEC_FULL §4.2,
// normative): the default upstream reports a consumer MUST have before
// running its heuristics. Expressed as configuration, not an object
// graph, per §9's guidance on cyclic agent references.
var UpstreamOf = map[string][]string{
	ExternalResearcher: append([]string{RequirementAnalyzer}, CurrentStateAnalyzers...),
	GapAnalyzer:         append(append([]string{RequirementAnalyzer}, CurrentStateAnalyzers...), ExternalResearcher),
	ArchitectAgent:      {GapAnalyzer},
	OrchestratorDesigner: {ArchitectAgent},
	PlannerAgent:        {ExternalResearcher, GapAnalyzer, OrchestratorDesigner},
	TaskCreatorAgent:    {ExternalResearcher, GapAnalyzer, PlannerAgent},
	CodeGenerator:       {PlannerAgent, TaskCreatorAgent, RequirementAnalyzer},
	QualityGate:         {CodeGenerator, StaticAnalyzer},
}

// CanonicalKey is the fixed S_CTX key each producer agent's latest report
// is written and read under, per the key-naming convention in SPEC_FULL
// §4.2 ("requirements:latest", "latest_{kind}_analysis").
var CanonicalKey = map[string]string{
	RequirementAnalyzer:  "requirements:latest",
	StaticAnalyzer:       "latest_static_analysis",
	CodeAnalyzer:         "latest_code_analysis",
	BehaviorAnalyzer:     "latest_behavior_analysis",
	ImpactAnalyzer:       "latest_impact_analysis",
	QualityGate:          "latest_quality_analysis",
	ExternalResearcher:   "latest_external_research",
	GapAnalyzer:          "latest_gap_report",
	ArchitectAgent:       "latest_architecture",
	OrchestratorDesigner: "latest_orchestrator_design",
	PlannerAgent:         "latest_execution_plan",
	TaskCreatorAgent:     "latest_executable_tasks",
	CodeGenerator:        "latest_generated_code",
}
