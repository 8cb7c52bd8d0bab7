package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civiclens/appeals-cli/internal/model"
)

func TestFormatReport(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(0, "供暖温度不达标", 50),
		row(1, "物业收费纠纷", 30),
		row(-1, "噪声", 20),
	})

	out := FormatReport(rep, "appeals.xlsx")

	assert.True(t, strings.HasPrefix(out, "# Appeal Topic Report"))
	assert.Contains(t, out, "Input: appeals.xlsx")
	assert.Contains(t, out, "- Total records: 100")
	assert.Contains(t, out, "- Topics: 2")
	assert.Contains(t, out, "- Clustered records: 80")
	assert.Contains(t, out, "- Noise records: 20")
	assert.Contains(t, out, "- Coverage: 80.0%")
	assert.Contains(t, out, "| 1 | 0 | 供暖温度不达标 | 50 | 50.0% |")
	assert.Contains(t, out, "| 2 | 1 | 物业收费纠纷 | 30 | 30.0% |")
	assert.Contains(t, out, "- noise: 噪声 (20, 20.0%)")
}

func TestFormatReport_NoiseRenderedLast(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(-1, "outliers", 40),
		row(0, "roads", 10),
	})

	out := FormatReport(rep, "appeals.xlsx")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Equal(t, "- noise: outliers (40, 80.0%)", lines[len(lines)-1])
}

func TestFormatReport_EmptyReport(t *testing.T) {
	t.Parallel()

	out := FormatReport(Aggregate(nil), "")

	assert.Contains(t, out, "- Total records: 0")
	assert.Contains(t, out, "- Coverage: 0.0%")
	assert.Contains(t, out, "No topics found.")
	assert.NotContains(t, out, "Input:")
	assert.NotContains(t, out, "## All Clusters")
}

func TestFormatReport_HasHeaders(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{row(0, "heating", 5)})
	out := FormatReport(rep, "winter.xlsx")

	assert.Contains(t, out, "## Summary")
	assert.Contains(t, out, "## Top Topics")
	assert.Contains(t, out, "## All Clusters")
}
