package pipeline

import (
	"fmt"
	"strings"

	"github.com/civiclens/appeals-cli/internal/model"
)

// FormatReport renders the aggregated report as markdown for terminal
// display and run archival.
func FormatReport(rep *model.Report, inputFile string) string {
	var b strings.Builder

	b.WriteString("# Appeal Topic Report\n")
	if inputFile != "" {
		fmt.Fprintf(&b, "Input: %s\n", inputFile)
	}
	b.WriteString("\n")

	// Summary.
	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Total records: %d\n", rep.TotalRecords)
	fmt.Fprintf(&b, "- Topics: %d\n", rep.TopicCount)
	fmt.Fprintf(&b, "- Clustered records: %d\n", rep.ValidCount)
	fmt.Fprintf(&b, "- Noise records: %d\n", rep.NoiseCount)
	fmt.Fprintf(&b, "- Coverage: %.1f%%\n\n", rep.Coverage*100)

	// Ranked topics.
	b.WriteString("## Top Topics\n")
	if len(rep.Top10) == 0 {
		b.WriteString("No topics found.\n\n")
	} else {
		b.WriteString("| Rank | Cluster | Keyword | Count | Share |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for i, e := range rep.Top10 {
			fmt.Fprintf(&b, "| %d | %d | %s | %d | %.1f%% |\n",
				i+1, e.ClusterID, e.Keyword, e.Count, e.Percentage*100)
		}
		b.WriteString("\n")
	}

	// Full list, noise always last.
	if len(rep.Entries) > 0 {
		b.WriteString("## All Clusters\n")
		for _, e := range rep.Entries {
			name := fmt.Sprintf("cluster %d", e.ClusterID)
			if e.ClusterID == model.NoiseClusterID {
				name = "noise"
			}
			fmt.Fprintf(&b, "- %s: %s (%d, %.1f%%)\n", name, e.Keyword, e.Count, e.Percentage*100)
		}
	}

	return b.String()
}
