package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/appeals-cli/internal/model"
	"github.com/civiclens/appeals-cli/pkg/analysis"
)

func testConfigs() *ConfigStore {
	return NewConfigStore(
		model.CleanConfig{
			ExtractorKind:      model.ExtractorHotline12366,
			UseEntityRedaction: true,
			SourceColumn:       "业务内容",
		},
		model.ClusterConfig{
			NeighborCount:  15,
			ComponentCount: 5,
			MinClusterSize: 10,
			KeywordTopN:    5,
			TextColumn:     "Sanitized_Content",
			IDColumn:       "业务编号",
		},
		model.LLMConfig{APIKey: "sk-test", BaseURL: "https://api.deepseek.com"},
	)
}

// expectCleanOK registers a successful preprocess call on the mock.
func expectCleanOK(m *mockAnalysisClient) {
	m.On("Preprocess", mock.Anything, mock.AnythingOfType("analysis.PreprocessRequest")).
		Return(&analysis.PreprocessResponse{
			Message:     "Preprocessing complete",
			TotalRows:   120,
			ValidRows:   113,
			RemovedRows: 7,
		}, nil)
}

func expectClusterOK(m *mockAnalysisClient) {
	m.On("Download", mock.Anything, "processed_appeals.xlsx").
		Return([]byte("cleaned-bytes"), nil)

	out := "temp/clustered_appeals.xlsx"
	m.On("Cluster", mock.Anything, mock.AnythingOfType("analysis.ClusterRequest")).
		Return(&analysis.ClusterResponse{
			Message:    "Clustering complete",
			TotalTexts: 113,
			NClusters:  3,
			NNoise:     21,
			OutputFile: &out,
		}, nil)
}

func expectSummarizeOK(m *mockAnalysisClient) {
	m.On("Download", mock.Anything, "clustered_appeals.xlsx").
		Return([]byte("clustered-bytes"), nil)

	out := "temp/keywords_clustered_appeals.xlsx"
	m.On("ExtractKeywords", mock.Anything, mock.AnythingOfType("analysis.ExtractKeywordsRequest")).
		Return(&analysis.ExtractKeywordsResponse{
			Message: "Keyword extraction complete",
			Result: []analysis.KeywordRow{
				{Cluster: 0, LLMKeywords: "供暖温度不达标", Count: intPtr(50)},
				{Cluster: 1, LLMKeywords: "物业收费纠纷", Count: intPtr(30)},
				{Cluster: -1, LLMKeywords: "噪声", Count: intPtr(20)},
			},
			OutputFile: &out,
		}, nil)
}

func intPtr(v int) *int { return &v }

func TestController_InitialStates(t *testing.T) {
	t.Parallel()
	c := NewController(&mockAnalysisClient{}, testConfigs())

	assert.Equal(t, model.StageStatusReady, c.State(model.StageClean).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageCluster).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageSummarize).Status)
}

func TestRunStage_NoInputSelected(t *testing.T) {
	t.Parallel()
	c := NewController(&mockAnalysisClient{}, testConfigs())

	err := c.RunStage(context.Background(), model.StageClean)
	require.ErrorIs(t, err, ErrNoInput)
	assert.Equal(t, model.StageStatusReady, c.State(model.StageClean).Status)
}

func TestRunStage_UnknownStage(t *testing.T) {
	t.Parallel()
	c := NewController(&mockAnalysisClient{}, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("x"))

	require.Error(t, c.RunStage(context.Background(), model.StageID(7)))
}

func TestRunStage_CleanHappyPath(t *testing.T) {
	client := &mockAnalysisClient{}
	client.On("Preprocess", mock.Anything, mock.MatchedBy(func(req analysis.PreprocessRequest) bool {
		return req.FileName == "appeals.xlsx" &&
			string(req.FileData) == "workbook-bytes" &&
			req.ExtractorType == model.ExtractorHotline12366 &&
			req.UseNER &&
			req.ColumnName == "业务内容"
	})).Return(&analysis.PreprocessResponse{
		Message:     "Preprocessing complete",
		TotalRows:   120,
		ValidRows:   113,
		RemovedRows: 7,
	}, nil)

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))

	require.NoError(t, c.RunStage(context.Background(), model.StageClean))

	st := c.State(model.StageClean)
	assert.Equal(t, model.StageStatusDone, st.Status)
	assert.Equal(t, 100, st.ProgressPercent)
	require.NotNil(t, st.Result)
	require.NotNil(t, st.Result.Clean)
	assert.Equal(t, 113, st.Result.Clean.ValidRows)

	// No output_file on preprocess: the fallback name becomes the artifact.
	name, err := c.Artifact(model.StageClean)
	require.NoError(t, err)
	assert.Equal(t, "processed_appeals.xlsx", name)

	assert.Equal(t, model.StageStatusReady, c.State(model.StageCluster).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageSummarize).Status)
	client.AssertExpectations(t)
}

func TestRunStage_NotReady(t *testing.T) {
	client := &mockAnalysisClient{}
	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("x"))

	err := c.RunStage(context.Background(), model.StageCluster)
	require.ErrorIs(t, err, ErrStageNotReady)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageCluster).Status)
	client.AssertNotCalled(t, "Cluster", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestRunStage_ClusterFetchesUpstreamArtifact(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)

	client.On("Download", mock.Anything, "processed_appeals.xlsx").
		Return([]byte("cleaned-bytes"), nil)

	out := "temp/clustered_appeals.xlsx"
	client.On("Cluster", mock.Anything, mock.MatchedBy(func(req analysis.ClusterRequest) bool {
		return req.FileName == "processed_appeals.xlsx" &&
			string(req.FileData) == "cleaned-bytes" &&
			req.NNeighbors == 15 &&
			req.MinClusterSize == 10 &&
			req.TextColumn == "Sanitized_Content" &&
			req.OriginalColumn == "业务编号"
	})).Return(&analysis.ClusterResponse{
		Message:    "Clustering complete",
		TotalTexts: 113,
		NClusters:  3,
		NNoise:     21,
		OutputFile: &out,
	}, nil)

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))

	require.NoError(t, c.RunStage(context.Background(), model.StageClean))
	require.NoError(t, c.RunStage(context.Background(), model.StageCluster))

	// Service reported an output path; its final segment wins over the fallback.
	name, err := c.Artifact(model.StageCluster)
	require.NoError(t, err)
	assert.Equal(t, "clustered_appeals.xlsx", name)

	assert.Equal(t, model.StageStatusReady, c.State(model.StageSummarize).Status)
	client.AssertExpectations(t)
}

func TestRunStage_FullPipelineProducesReport(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)
	expectClusterOK(client)
	expectSummarizeOK(client)

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))

	require.NoError(t, c.Run(context.Background()))

	for _, stage := range []model.StageID{model.StageClean, model.StageCluster, model.StageSummarize} {
		assert.Equal(t, model.StageStatusDone, c.State(stage).Status, "stage %s", stage)
	}

	name, err := c.Artifact(model.StageSummarize)
	require.NoError(t, err)
	assert.Equal(t, "keywords_clustered_appeals.xlsx", name)

	rep := c.Report()
	require.NotNil(t, rep)
	assert.Equal(t, 100, rep.TotalRecords)
	assert.Equal(t, 2, rep.TopicCount)
	assert.Equal(t, 80, rep.ValidCount)
	assert.Equal(t, 20, rep.NoiseCount)
	assert.InDelta(t, 0.8, rep.Coverage, 1e-9)
	client.AssertExpectations(t)
}

func TestRunStage_FailureRecordsDetailAndRetryClears(t *testing.T) {
	client := &mockAnalysisClient{}
	client.On("Preprocess", mock.Anything, mock.Anything).
		Return(nil, &analysis.APIError{StatusCode: 500, Detail: "Preprocessing failed: column '业务内容' not found"}).
		Once()
	expectCleanOK(client)

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))

	err := c.RunStage(context.Background(), model.StageClean)
	require.Error(t, err)

	st := c.State(model.StageClean)
	assert.Equal(t, model.StageStatusError, st.Status)
	assert.Equal(t, "Preprocessing failed: column '业务内容' not found", st.ErrorMessage)
	assert.Nil(t, st.Result)

	_, err = c.Artifact(model.StageClean)
	require.ErrorIs(t, err, ErrArtifactNotReady)

	// An errored stage stays runnable; the retry clears the message.
	require.NoError(t, c.RunStage(context.Background(), model.StageClean))
	st = c.State(model.StageClean)
	assert.Equal(t, model.StageStatusDone, st.Status)
	assert.Empty(t, st.ErrorMessage)
	client.AssertExpectations(t)
}

func TestRunStage_RerunInvalidatesDownstream(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)
	expectClusterOK(client)
	expectSummarizeOK(client)

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))
	require.NoError(t, c.Run(context.Background()))

	// Rerun stage 1: stages 2 and 3 lose results and artifacts.
	require.NoError(t, c.RunStage(context.Background(), model.StageClean))

	assert.Equal(t, model.StageStatusDone, c.State(model.StageClean).Status)
	for _, stage := range []model.StageID{model.StageCluster, model.StageSummarize} {
		st := c.State(stage)
		assert.Nil(t, st.Result, "stage %s", stage)

		_, err := c.Artifact(stage)
		require.ErrorIs(t, err, ErrArtifactNotReady, "stage %s", stage)
	}
	assert.Nil(t, c.Report())

	// The rerun completed, so stage 2 is runnable again; stage 3 waits on it.
	assert.Equal(t, model.StageStatusReady, c.State(model.StageCluster).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageSummarize).Status)
}

func TestRunStage_FailedRerunStillInvalidatesDownstream(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)
	expectSummarizeOK(client)

	client.On("Download", mock.Anything, "processed_appeals.xlsx").
		Return([]byte("cleaned-bytes"), nil)

	out := "temp/clustered_appeals.xlsx"
	client.On("Cluster", mock.Anything, mock.Anything).
		Return(&analysis.ClusterResponse{
			Message:    "Clustering complete",
			TotalTexts: 113,
			NClusters:  3,
			NNoise:     21,
			OutputFile: &out,
		}, nil).
		Once()

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))
	require.NoError(t, c.Run(context.Background()))

	// Rerunning stage 2 fails at the remote call. Stage 3 must still be
	// invalidated: the rerun entered Running before failing.
	client.On("Cluster", mock.Anything, mock.Anything).
		Return(nil, &analysis.APIError{StatusCode: 500, Detail: "Clustering failed: embeddings unavailable"})

	err := c.RunStage(context.Background(), model.StageCluster)
	require.Error(t, err)

	assert.Equal(t, model.StageStatusError, c.State(model.StageCluster).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageSummarize).Status)

	_, err = c.Artifact(model.StageSummarize)
	require.ErrorIs(t, err, ErrArtifactNotReady)

	// Upstream results survive the failure untouched.
	st := c.State(model.StageClean)
	assert.Equal(t, model.StageStatusDone, st.Status)
	require.NotNil(t, st.Result)
}

func TestRunStage_CredentialsGuard(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)
	expectClusterOK(client)

	configs := testConfigs()
	require.NoError(t, configs.CommitLLM(model.LLMConfig{}))

	c := NewController(client, configs)
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))
	require.NoError(t, c.RunStage(context.Background(), model.StageClean))
	require.NoError(t, c.RunStage(context.Background(), model.StageCluster))

	err := c.RunStage(context.Background(), model.StageSummarize)
	require.ErrorIs(t, err, ErrCredentialsRequired)

	// The guard fires before any state change or remote call.
	st := c.State(model.StageSummarize)
	assert.Equal(t, model.StageStatusReady, st.Status)
	assert.Empty(t, st.ErrorMessage)
	assert.Equal(t, 0, st.ProgressPercent)
	client.AssertNotCalled(t, "ExtractKeywords", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "Download", mock.Anything, "clustered_appeals.xlsx")

	// Committing a key makes the same stage runnable.
	require.NoError(t, configs.CommitLLM(model.LLMConfig{APIKey: "sk-test"}))
	expectSummarizeOK(client)
	require.NoError(t, c.RunStage(context.Background(), model.StageSummarize))
	assert.Equal(t, model.StageStatusDone, c.State(model.StageSummarize).Status)
}

func TestRunStage_ProgressCheckpoints(t *testing.T) {
	type checkpoint struct {
		stage   model.StageID
		percent int
		message string
	}
	var seen []checkpoint

	client := &mockAnalysisClient{}
	client.On("Preprocess", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			// The remote-processing checkpoint must be visible while the
			// call is still in flight.
			require.NotEmpty(t, seen)
			last := seen[len(seen)-1]
			assert.Equal(t, 50, last.percent)
			assert.Equal(t, "cleaning text", last.message)
		}).
		Return(&analysis.PreprocessResponse{Message: "ok", TotalRows: 10, ValidRows: 10}, nil)

	c := NewController(client, testConfigs(), WithProgress(func(stage model.StageID, percent int, message string) {
		seen = append(seen, checkpoint{stage, percent, message})
	}))
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))

	require.NoError(t, c.RunStage(context.Background(), model.StageClean))

	require.Len(t, seen, 3)
	assert.Equal(t, []checkpoint{
		{model.StageClean, 20, "uploading input workbook"},
		{model.StageClean, 50, "cleaning text"},
		{model.StageClean, 100, "clean complete"},
	}, seen)

	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].percent, seen[i-1].percent)
	}
}

func TestRunStage_DownloadFailureMarksStage(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)
	client.On("Download", mock.Anything, "processed_appeals.xlsx").
		Return(nil, errors.New("dial tcp: connection refused"))

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))

	require.NoError(t, c.RunStage(context.Background(), model.StageClean))
	require.Error(t, c.RunStage(context.Background(), model.StageCluster))

	st := c.State(model.StageCluster)
	assert.Equal(t, model.StageStatusError, st.Status)
	assert.Contains(t, st.ErrorMessage, "connection refused")
	client.AssertNotCalled(t, "Cluster", mock.Anything, mock.Anything)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)
	client.On("Download", mock.Anything, "processed_appeals.xlsx").
		Return([]byte("cleaned-bytes"), nil)
	client.On("Cluster", mock.Anything, mock.Anything).
		Return(nil, &analysis.APIError{StatusCode: 500, Detail: "Clustering failed: not enough rows"})

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster stage")

	assert.Equal(t, model.StageStatusError, c.State(model.StageCluster).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageSummarize).Status)
	client.AssertNotCalled(t, "ExtractKeywords", mock.Anything, mock.Anything)
}

func TestSelectInput_ResetsEverything(t *testing.T) {
	client := &mockAnalysisClient{}
	expectCleanOK(client)
	expectClusterOK(client)
	expectSummarizeOK(client)

	c := NewController(client, testConfigs())
	c.SelectInput("appeals.xlsx", []byte("workbook-bytes"))
	require.NoError(t, c.Run(context.Background()))

	c.SelectInput("appeals_q2.xlsx", []byte("other-bytes"))

	assert.Equal(t, "appeals_q2.xlsx", c.InputName())
	assert.Equal(t, model.StageStatusReady, c.State(model.StageClean).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageCluster).Status)
	assert.Equal(t, model.StageStatusWaiting, c.State(model.StageSummarize).Status)
	assert.Nil(t, c.Report())

	for _, stage := range []model.StageID{model.StageClean, model.StageCluster, model.StageSummarize} {
		_, err := c.Artifact(stage)
		require.ErrorIs(t, err, ErrArtifactNotReady)
	}
}
