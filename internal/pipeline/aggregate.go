package pipeline

import (
	"sort"

	"github.com/civiclens/appeals-cli/internal/model"
)

// labelRunes is the display-label length before truncation. Keywords are
// mostly Chinese, so the limit counts runes, not bytes.
const labelRunes = 8

// Aggregate turns the per-cluster rows from the summarize stage into the
// report consumed by the summary view and charts. It never fails: rows
// without a count contribute one record each, and an empty row set yields a
// degenerate report with zero ratios.
//
// Valid topics are sorted by count descending (ties keep input order). The
// noise cluster is excluded from the topic count and ranking and is always
// appended last in Entries, regardless of its size.
func Aggregate(rows []model.ClusterRow) *model.Report {
	rep := &model.Report{}

	var valid []model.ReportEntry
	var noise *model.ReportEntry

	for _, row := range rows {
		count := row.Records()
		rep.TotalRecords += count

		if row.IsNoise() {
			// The service emits at most one noise row; fold any extras into it.
			if noise == nil {
				noise = &model.ReportEntry{ClusterID: model.NoiseClusterID, Keyword: row.Keyword}
			}
			noise.Count += count
			continue
		}

		valid = append(valid, model.ReportEntry{
			ClusterID: row.Cluster,
			Keyword:   row.Keyword,
			Count:     count,
		})
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Count > valid[j].Count
	})

	rep.TopicCount = len(valid)
	for i := range valid {
		rep.ValidCount += valid[i].Count
	}
	if noise != nil {
		rep.NoiseCount = noise.Count
	}

	if rep.TotalRecords > 0 {
		total := float64(rep.TotalRecords)
		rep.Coverage = float64(rep.ValidCount) / total
		for i := range valid {
			valid[i].Percentage = float64(valid[i].Count) / total
		}
		if noise != nil {
			noise.Percentage = float64(noise.Count) / total
		}
	}

	for i := range valid {
		valid[i].Label = displayLabel(valid[i].Keyword)
	}

	top := min(len(valid), 10)
	rep.Top10 = append([]model.ReportEntry(nil), valid[:top]...)

	rep.Entries = valid
	if noise != nil {
		noise.Label = displayLabel(noise.Keyword)
		rep.Entries = append(rep.Entries, *noise)
	}

	return rep
}

// displayLabel truncates long keywords for axis labels; the full keyword
// stays on the entry for tooltips.
func displayLabel(keyword string) string {
	r := []rune(keyword)
	if len(r) <= labelRunes {
		return keyword
	}
	return string(r[:labelRunes]) + "..."
}
