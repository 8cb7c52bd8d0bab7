package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/appeals-cli/internal/model"
)

func row(cluster int, keyword string, count int) model.ClusterRow {
	return model.ClusterRow{Cluster: cluster, Keyword: keyword, Count: &count}
}

func TestAggregate_Scenario(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(0, "供暖温度不达标", 50),
		row(1, "物业收费纠纷", 30),
		row(-1, "噪声", 20),
	})

	assert.Equal(t, 100, rep.TotalRecords)
	assert.Equal(t, 2, rep.TopicCount)
	assert.Equal(t, 80, rep.ValidCount)
	assert.Equal(t, 20, rep.NoiseCount)
	assert.InDelta(t, 0.8, rep.Coverage, 1e-9)

	require.Len(t, rep.Top10, 2)
	assert.Equal(t, 0, rep.Top10[0].ClusterID)
	assert.Equal(t, 50, rep.Top10[0].Count)
	assert.Equal(t, 1, rep.Top10[1].ClusterID)
	assert.Equal(t, 30, rep.Top10[1].Count)
}

func TestAggregate_PercentagesSumToOne(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(0, "a", 7),
		row(1, "b", 13),
		row(2, "c", 29),
		row(-1, "noise", 11),
	})

	var sum float64
	for _, e := range rep.Entries {
		sum += e.Percentage
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestAggregate_EmptyRows(t *testing.T) {
	t.Parallel()

	rep := Aggregate(nil)

	assert.Equal(t, 0, rep.TotalRecords)
	assert.Equal(t, 0, rep.TopicCount)
	assert.Equal(t, 0, rep.ValidCount)
	assert.Equal(t, 0, rep.NoiseCount)
	assert.Zero(t, rep.Coverage)
	assert.Empty(t, rep.Top10)
	assert.Empty(t, rep.Entries)
}

func TestAggregate_MissingCountsDefaultToOne(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		{Cluster: 0, Keyword: "供暖"},
		{Cluster: 1, Keyword: "物业"},
		{Cluster: 2, Keyword: "噪音"},
	})

	assert.Equal(t, 3, rep.TotalRecords)
	assert.Equal(t, 3, rep.ValidCount)
	for _, e := range rep.Entries {
		assert.Equal(t, 1, e.Count)
		assert.InDelta(t, 1.0/3.0, e.Percentage, 1e-9)
	}
}

func TestAggregate_NoiseAlwaysLast(t *testing.T) {
	t.Parallel()

	// Noise dwarfs every topic but still may not outrank them.
	rep := Aggregate([]model.ClusterRow{
		row(-1, "noise", 900),
		row(0, "a", 5),
		row(1, "b", 3),
	})

	require.Len(t, rep.Entries, 3)
	last := rep.Entries[len(rep.Entries)-1]
	assert.Equal(t, model.NoiseClusterID, last.ClusterID)
	assert.Equal(t, 900, last.Count)

	// Ranking covers valid topics only.
	require.Len(t, rep.Top10, 2)
	assert.Equal(t, 0, rep.Top10[0].ClusterID)
	assert.Equal(t, 2, rep.TopicCount)
}

func TestAggregate_StableSortOnTies(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(4, "first", 10),
		row(2, "second", 10),
		row(9, "third", 10),
	})

	require.Len(t, rep.Entries, 3)
	assert.Equal(t, 4, rep.Entries[0].ClusterID)
	assert.Equal(t, 2, rep.Entries[1].ClusterID)
	assert.Equal(t, 9, rep.Entries[2].ClusterID)
}

func TestAggregate_TopTenCapped(t *testing.T) {
	t.Parallel()

	rows := make([]model.ClusterRow, 0, 15)
	for i := 0; i < 15; i++ {
		rows = append(rows, row(i, fmt.Sprintf("topic-%d", i), 100-i))
	}

	rep := Aggregate(rows)
	assert.Len(t, rep.Top10, 10)
	assert.Len(t, rep.Entries, 15)
	assert.Equal(t, 15, rep.TopicCount)

	// Highest count first.
	assert.Equal(t, 100, rep.Top10[0].Count)
	assert.Equal(t, 91, rep.Top10[9].Count)
}

func TestAggregate_LabelTruncation(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(0, "小区供暖温度长期不达标问题", 10),
		row(1, "物业收费", 5),
		row(2, "道路积水排涝", 3),
	})

	require.Len(t, rep.Top10, 3)
	assert.Equal(t, "小区供暖温度长期...", rep.Top10[0].Label)
	assert.Equal(t, "小区供暖温度长期不达标问题", rep.Top10[0].Keyword)
	assert.Equal(t, "物业收费", rep.Top10[1].Label)
	assert.Equal(t, "道路积水排涝", rep.Top10[2].Label)
}

func TestAggregate_FoldsExtraNoiseRows(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(0, "a", 10),
		row(-1, "noise", 3),
		row(-1, "outliers", 2),
	})

	assert.Equal(t, 15, rep.TotalRecords)
	assert.Equal(t, 5, rep.NoiseCount)
	assert.Equal(t, 1, rep.TopicCount)

	// One folded noise entry, still last.
	require.Len(t, rep.Entries, 2)
	assert.Equal(t, model.NoiseClusterID, rep.Entries[1].ClusterID)
	assert.Equal(t, 5, rep.Entries[1].Count)
	assert.Equal(t, "noise", rep.Entries[1].Keyword)
}

func TestAggregate_NoNoiseRow(t *testing.T) {
	t.Parallel()

	rep := Aggregate([]model.ClusterRow{
		row(0, "a", 10),
		row(1, "b", 20),
	})

	assert.Equal(t, 0, rep.NoiseCount)
	assert.Equal(t, 30, rep.ValidCount)
	assert.InDelta(t, 1.0, rep.Coverage, 1e-9)
	for _, e := range rep.Entries {
		assert.NotEqual(t, model.NoiseClusterID, e.ClusterID)
	}
}
