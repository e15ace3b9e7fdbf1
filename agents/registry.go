package agents

import "github.com/tdevteam/upgradeforge/contract"

// Factory constructs one Agent from shared dependencies.
type Factory func(contract.Deps) contract.Agent

// Registry is the dispatch table the orchestrator uses in place of a type
// switch over agent kinds, per SPEC_FULL §9's "dynamic dispatch of agent
// operations" design note: a map keyed by the closed set of agent names
// defined in contract.UpstreamOf/contract.CanonicalKey.
var Registry = map[string]Factory{
	contract.RequirementAnalyzer:  NewRequirementAnalyzer,
	contract.StaticAnalyzer:       NewStaticAnalyzer,
	contract.CodeAnalyzer:         NewCodeAnalyzer,
	contract.BehaviorAnalyzer:     NewBehaviorAnalyzer,
	contract.ImpactAnalyzer:       NewImpactAnalyzer,
	contract.QualityGate:          NewQualityGate,
	contract.ExternalResearcher:   NewExternalResearcher,
	contract.GapAnalyzer:          NewGapAnalyzer,
	contract.ArchitectAgent:       NewArchitectAgent,
	contract.OrchestratorDesigner: NewOrchestratorDesigner,
	contract.PlannerAgent:         NewPlannerAgent,
	contract.TaskCreatorAgent:     NewTaskCreatorAgent,
	contract.CodeGenerator:        NewCodeGenerator,
}

// New constructs every agent named in Registry against the same deps,
// returning a map keyed by agent name.
func New(deps contract.Deps) map[string]contract.Agent {
	agents := make(map[string]contract.Agent, len(Registry))
	for name, factory := range Registry {
		agents[name] = factory(deps)
	}
	return agents
}
