package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civiclens/appeals-cli/internal/model"
)

func TestConfigStore_CommitReplacesSnapshot(t *testing.T) {
	t.Parallel()
	s := testConfigs()

	draft := s.Cluster()
	draft.MinClusterSize = 25
	require.NoError(t, s.CommitCluster(draft))

	assert.Equal(t, 25, s.Cluster().MinClusterSize)
}

func TestConfigStore_FailedCommitKeepsPrior(t *testing.T) {
	t.Parallel()
	s := testConfigs()

	draft := s.Cluster()
	draft.NeighborCount = 1 // below the minimum
	draft.MinClusterSize = 99

	require.Error(t, s.CommitCluster(draft))

	// All-or-nothing: the valid edit in the same draft is discarded too.
	assert.Equal(t, 15, s.Cluster().NeighborCount)
	assert.Equal(t, 10, s.Cluster().MinClusterSize)
}

func TestConfigStore_DraftEditsAreIsolated(t *testing.T) {
	t.Parallel()
	s := testConfigs()

	draft := s.Clean()
	draft.SourceColumn = "投诉内容"

	// Uncommitted drafts never leak into the store.
	assert.Equal(t, "业务内容", s.Clean().SourceColumn)
}

func TestConfigStore_CommitCleanValidates(t *testing.T) {
	t.Parallel()
	s := testConfigs()

	err := s.CommitClean(model.CleanConfig{ExtractorKind: "bogus", SourceColumn: "x"})
	require.Error(t, err)
	assert.Equal(t, model.ExtractorHotline12366, s.Clean().ExtractorKind)
}

func TestConfigStore_EmptyAPIKeyIsCommittable(t *testing.T) {
	t.Parallel()
	s := testConfigs()

	require.NoError(t, s.CommitLLM(model.LLMConfig{}))
	assert.False(t, s.LLM().HasCredentials())

	require.Error(t, s.CommitLLM(model.LLMConfig{BaseURL: "not a url"}))
}
