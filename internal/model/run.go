package model

import "time"

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one end-to-end pipeline invocation over a single input file.
type Run struct {
	ID        string    `json:"id"`
	InputFile string    `json:"input_file"`
	Status    RunStatus `json:"status"`
	Report    *Report   `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStage records the outcome of a single stage within a run.
type RunStage struct {
	ID           string       `json:"id"`
	RunID        string       `json:"run_id"`
	Stage        StageID      `json:"stage"`
	Status       StageStatus  `json:"status"`
	ArtifactName string       `json:"artifact_name,omitempty"`
	Result       *StageResult `json:"result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
}

// StageOutcome is the completion record written for a run stage.
type StageOutcome struct {
	Status       StageStatus  `json:"status"`
	ArtifactName string       `json:"artifact_name,omitempty"`
	Result       *StageResult `json:"result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}
