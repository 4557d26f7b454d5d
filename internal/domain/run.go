package domain

import "time"

// RunStatusRunning marks a run that has started but not finished.
const RunStatusRunning ResultStatus = "RUNNING"

// Run is one recorded pipeline invocation.
type Run struct {
	ID         string       `json:"id"`
	StorePath  string       `json:"store_path"`
	Command    string       `json:"command"`
	Status     ResultStatus `json:"status"`
	Error      *string      `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// RunStep is one persisted step of a run.
type RunStep struct {
	RunID     string       `json:"run_id"`
	Seq       int          `json:"seq"`
	Op        string       `json:"op"`
	Entity    string       `json:"entity,omitempty"`
	Status    ResultStatus `json:"status"`
	Detail    string       `json:"detail,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Discrepancy is a primary/companion record-count mismatch.
type Discrepancy struct {
	Entity         string `json:"entity"`
	Companion      string `json:"companion"`
	MainCount      int64  `json:"main_count"`
	CompanionCount int64  `json:"companion_count"`
	Difference     int64  `json:"difference"`
}

// ReconcileReport is the outcome of a count comparison. Skipped lists
// primary entities whose companion does not exist.
type ReconcileReport struct {
	Checked       int           `json:"checked"`
	Discrepancies []Discrepancy `json:"discrepancies"`
	Skipped       []string      `json:"skipped"`
}

// Metadata is the descriptive record imported onto an entity.
type Metadata struct {
	Title    string
	Abstract string
	Purpose  string
}

// IsZero reports whether md carries nothing to import.
func (md Metadata) IsZero() bool {
	return md.Title == "" && md.Abstract == "" && md.Purpose == ""
}
