package orchestrator

import (
	"time"

	"github.com/tdevteam/upgradeforge/contract"
)

// PhaseTiming records how long one named phase took within a run.
type PhaseTiming struct {
	Phase    string
	Elapsed  time.Duration
	Started  time.Time
}

// UpgradeReport is the final output of one orchestrator run (SPEC_FULL
// §4.4 "Final output"): every report produced along the way, plus
// convergence status. Run does not fill ReportFiles; it is left empty.
type UpgradeReport struct {
	TaskID           string
	EvolutionGoal    string
	CurrentState     map[string]contract.AgentResult
	Research         contract.AgentResult
	GapReport        contract.AgentResult
	Architecture     contract.AgentResult
	OrchestratorDesign contract.AgentResult
	Plan             contract.AgentResult
	Tasks            contract.AgentResult
	GeneratedCode    contract.AgentResult
	QualityVerdict   contract.AgentResult
	PhaseTimings     []PhaseTiming
	Converged        bool
	Iterations       int
	ReportFiles      []contract.ReportRef
}
