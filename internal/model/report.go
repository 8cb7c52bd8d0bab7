package model

// NoiseClusterID is the reserved cluster id for records the clustering stage
// could not assign to any topic.
const NoiseClusterID = -1

// ClusterRow is one row of the summarization stage's output: a cluster id,
// its LLM-generated keyword summary, and an optional record count.
type ClusterRow struct {
	Cluster int    `json:"cluster"`
	Keyword string `json:"keyword"`
	Count   *int   `json:"count,omitempty"`
}

// IsNoise reports whether the row belongs to the reserved noise cluster.
func (r ClusterRow) IsNoise() bool {
	return r.Cluster == NoiseClusterID
}

// Records returns the number of source records the row represents: the
// reported count when present, else 1.
func (r ClusterRow) Records() int {
	if r.Count != nil {
		return *r.Count
	}
	return 1
}

// ReportEntry is one derived line of the topic report. Label is the keyword
// truncated for chart axes; Keyword keeps the full text for tooltips and
// tables. Entries are recomputed on every aggregation, never mutated.
type ReportEntry struct {
	ClusterID  int     `json:"cluster_id"`
	Keyword    string  `json:"keyword"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Report summarizes the final stage's output for the topic view. Entries
// holds every topic sorted by count descending with the noise entry, when
// present, appended last.
type Report struct {
	TotalRecords int           `json:"total_records"`
	TopicCount   int           `json:"topic_count"`
	ValidCount   int           `json:"valid_count"`
	NoiseCount   int           `json:"noise_count"`
	Coverage     float64       `json:"coverage"`
	Top10        []ReportEntry `json:"top10"`
	Entries      []ReportEntry `json:"entries"`
}
