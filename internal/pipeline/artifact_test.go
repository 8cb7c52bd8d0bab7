package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/appeals-cli/internal/model"
)

func strPtr(s string) *string { return &s }

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		outputFile *string
		inputName  string
		stage      model.StageID
		wantLookup string
	}{
		{
			name:       "no reported output falls back to derived name",
			outputFile: nil,
			inputName:  "appeals.xlsx",
			stage:      model.StageClean,
			wantLookup: "processed_appeals.xlsx",
		},
		{
			name:       "reported path wins over fallback",
			outputFile: strPtr("out/clustered_report.xlsx"),
			inputName:  "survey.xlsx",
			stage:      model.StageCluster,
			wantLookup: "clustered_report.xlsx",
		},
		{
			name:       "windows separators",
			outputFile: strPtr(`temp\results\keywords_data.xlsx`),
			inputName:  "data.xlsx",
			stage:      model.StageSummarize,
			wantLookup: "keywords_data.xlsx",
		},
		{
			name:       "bare filename used as-is",
			outputFile: strPtr("clustered_appeals.xlsx"),
			inputName:  "appeals.xlsx",
			stage:      model.StageCluster,
			wantLookup: "clustered_appeals.xlsx",
		},
		{
			name:       "empty reported path falls back",
			outputFile: strPtr(""),
			inputName:  "appeals.xlsx",
			stage:      model.StageCluster,
			wantLookup: "clustered_appeals.xlsx",
		},
		{
			name:       "trailing separator falls back",
			outputFile: strPtr("temp/"),
			inputName:  "appeals.xlsx",
			stage:      model.StageCluster,
			wantLookup: "clustered_appeals.xlsx",
		},
		{
			name:       "mixed separators take the last segment",
			outputFile: strPtr(`temp/run\clustered_副本数据.xlsx`),
			inputName:  "副本数据.xlsx",
			stage:      model.StageCluster,
			wantLookup: "clustered_副本数据.xlsx",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref := Resolve(tt.outputFile, tt.inputName, tt.stage)
			assert.Equal(t, tt.wantLookup, ref.Lookup())
		})
	}
}

func TestResolve_FallbackAlwaysComputed(t *testing.T) {
	t.Parallel()

	// The fallback is derived from the original input even when a canonical
	// name is present.
	ref := Resolve(strPtr("out/clustered_report.xlsx"), "survey.xlsx", model.StageCluster)
	require.NotNil(t, ref.CanonicalName)
	assert.Equal(t, "clustered_report.xlsx", *ref.CanonicalName)
	assert.Equal(t, "clustered_survey.xlsx", ref.FallbackName)
}
