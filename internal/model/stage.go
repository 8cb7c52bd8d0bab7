package model

import "fmt"

// StageID identifies one of the three ordered pipeline stages.
type StageID int

const (
	StageClean     StageID = 1
	StageCluster   StageID = 2
	StageSummarize StageID = 3
)

// Valid reports whether the id names a real stage.
func (s StageID) Valid() bool {
	return s >= StageClean && s <= StageSummarize
}

func (s StageID) String() string {
	switch s {
	case StageClean:
		return "clean"
	case StageCluster:
		return "cluster"
	case StageSummarize:
		return "summarize"
	default:
		return fmt.Sprintf("stage-%d", int(s))
	}
}

// Prefix returns the filename prefix the remote service applies to this
// stage's output artifact (processed_, clustered_, keywords_).
func (s StageID) Prefix() string {
	switch s {
	case StageClean:
		return "processed"
	case StageCluster:
		return "clustered"
	case StageSummarize:
		return "keywords"
	default:
		return ""
	}
}

// StageStatus represents the current state of a pipeline stage.
type StageStatus string

const (
	StageStatusWaiting StageStatus = "waiting"
	StageStatusReady   StageStatus = "ready"
	StageStatusRunning StageStatus = "running"
	StageStatusDone    StageStatus = "done"
	StageStatusError   StageStatus = "error"
)

// StageState tracks the live status, progress, and outcome of one stage.
type StageState struct {
	Status          StageStatus  `json:"status"`
	ProgressPercent int          `json:"progress_percent"`
	ProgressMessage string       `json:"progress_message,omitempty"`
	Result          *StageResult `json:"result,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
}

// Runnable reports whether the stage may enter Running: it is either ready
// or in the error state awaiting a retry.
func (s StageState) Runnable() bool {
	return s.Status == StageStatusReady || s.Status == StageStatusError
}

// StageResult is the typed outcome of a completed stage. Exactly one of the
// per-stage summaries is set, matching the stage that produced it.
type StageResult struct {
	Clean    *CleanSummary    `json:"clean,omitempty"`
	Cluster  *ClusterSummary  `json:"cluster,omitempty"`
	Keywords *KeywordsSummary `json:"keywords,omitempty"`
}

// CleanSummary reports the row counts from the cleaning stage. The cleaning
// stage never reports an output identifier; its artifact name is always
// derived locally.
type CleanSummary struct {
	Message     string `json:"message"`
	TotalRows   int    `json:"total_rows"`
	ValidRows   int    `json:"valid_rows"`
	RemovedRows int    `json:"removed_rows"`
}

// ClusterSummary reports the outcome of the clustering stage.
type ClusterSummary struct {
	Message    string  `json:"message"`
	TotalTexts int     `json:"total_texts"`
	NClusters  int     `json:"n_clusters"`
	NNoise     int     `json:"n_noise"`
	OutputFile *string `json:"output_file,omitempty"`
}

// KeywordsSummary reports the outcome of the summarization stage, including
// the per-cluster keyword rows the report is built from.
type KeywordsSummary struct {
	Message    string       `json:"message"`
	Rows       []ClusterRow `json:"rows"`
	OutputFile *string      `json:"output_file,omitempty"`
}

// OutputFile returns the service-reported output identifier for this result,
// or nil when the producing stage does not report one.
func (r *StageResult) OutputFile() *string {
	switch {
	case r == nil:
		return nil
	case r.Cluster != nil:
		return r.Cluster.OutputFile
	case r.Keywords != nil:
		return r.Keywords.OutputFile
	default:
		return nil
	}
}

// ArtifactReference names a stage's output file on the remote service.
// CanonicalName is set only when the service itself reported the output
// identifier; FallbackName is always derived from the original input name
// and the stage prefix.
type ArtifactReference struct {
	CanonicalName *string `json:"canonical_name,omitempty"`
	FallbackName  string  `json:"fallback_name"`
}

// Lookup returns the name downstream consumers must use to fetch the
// artifact: the canonical name when the service reported one, else the
// fallback. The name is used as-is; existence is not checked.
func (a ArtifactReference) Lookup() string {
	if a.CanonicalName != nil && *a.CanonicalName != "" {
		return *a.CanonicalName
	}
	return a.FallbackName
}
