package orchestrator

// severityRank orders GapAnalyzer's severity vocabulary for the
// convergence predicate (SPEC_FULL §4.4): "the loop exits when
// gap_report.remaining_gaps is empty or severity_max <= configured_floor."
var severityRank = map[string]int{
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}

// SeverityFloor returns the numeric rank of name, defaulting to the lowest
// rank for an unrecognized value so a misconfigured floor never blocks
// convergence indefinitely.
func SeverityFloor(name string) int {
	if rank, ok := severityRank[name]; ok {
		return rank
	}
	return severityRank["low"]
}

// converged evaluates GapAnalyzer's gaps against floor, returning whether
// the loop should exit and the highest severity rank observed (0 if gaps
// is empty or malformed).
func converged(gapData map[string]any, floor int) (done bool, severityMax int) {
	raw, ok := gapData["gaps"].([]any)
	if !ok || len(raw) == 0 {
		return true, 0
	}

	for _, g := range raw {
		entry, ok := g.(map[string]any)
		if !ok {
			continue
		}
		sev, _ := entry["severity"].(string)
		if rank := severityRank[sev]; rank > severityMax {
			severityMax = rank
		}
	}

	return severityMax <= floor, severityMax
}
