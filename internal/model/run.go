package model

import "time"

// RunStatus represents the current state of a discovery run.
type RunStatus string

const (
	RunStatusCollecting RunStatus = "collecting"
	RunStatusDeduping   RunStatus = "deduping"
	RunStatusScoring    RunStatus = "scoring"
	RunStatusClustering RunStatus = "clustering"
	RunStatusDone       RunStatus = "done"
	RunStatusDegraded   RunStatus = "degraded"
	RunStatusFailed     RunStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusDegraded || s == RunStatusFailed
}

// RunConfig is the frozen configuration snapshot for a single run. It is
// written once when the run is created and never mutated afterwards.
type RunConfig struct {
	Seeds          []string `json:"seeds"`
	Geo            string   `json:"geo"`
	Language       string   `json:"language"`
	TargetKeywords int      `json:"target_keywords"`
	MaxClusters    int      `json:"max_clusters"`
	FormulaVersion string   `json:"formula_version"`
}

// Run represents a single end-to-end discovery execution.
type Run struct {
	ID        string    `json:"id"`
	Config    RunConfig `json:"config"`
	Status    RunStatus `json:"status"`
	Degraded  bool      `json:"degraded"`
	Reasons   []string  `json:"degraded_reasons,omitempty"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Keywords     int           `json:"keywords"`
	Candidates   int           `json:"candidates"`
	Duplicates   int           `json:"duplicates"`
	Clusters     int           `json:"clusters"`
	Noise        int           `json:"noise"`
	Estimated    int           `json:"estimated_volumes"`
	ClusteredBy  string        `json:"clustered_by"`
	Phases       []PhaseResult `json:"phases"`
	Error        string        `json:"error,omitempty"`
}

// PhaseStatus represents the state of a single pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult records timing metadata for one state transition.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunPhase is the persisted form of a phase: created when the phase starts,
// completed with its result when it ends.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}
