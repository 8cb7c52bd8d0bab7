package pipeline

import (
	"github.com/civiclens/appeals-cli/internal/model"
)

// ConfigStore holds the committed configuration snapshot for each pipeline
// stage. Accessors return value copies to edit as drafts; a draft takes
// effect only through its Commit method, which validates it and replaces the
// committed snapshot whole. A failed commit leaves the prior snapshot
// untouched.
type ConfigStore struct {
	clean   model.CleanConfig
	cluster model.ClusterConfig
	llm     model.LLMConfig
}

// NewConfigStore returns a store seeded with the given snapshots. Validation
// happens on commit; the seed values are trusted as-is.
func NewConfigStore(clean model.CleanConfig, cluster model.ClusterConfig, llm model.LLMConfig) *ConfigStore {
	return &ConfigStore{clean: clean, cluster: cluster, llm: llm}
}

// Clean returns the committed cleaning configuration.
func (s *ConfigStore) Clean() model.CleanConfig { return s.clean }

// Cluster returns the committed clustering configuration.
func (s *ConfigStore) Cluster() model.ClusterConfig { return s.cluster }

// LLM returns the committed LLM credential configuration.
func (s *ConfigStore) LLM() model.LLMConfig { return s.llm }

// CommitClean validates the draft and replaces the cleaning snapshot.
func (s *ConfigStore) CommitClean(draft model.CleanConfig) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	s.clean = draft
	return nil
}

// CommitCluster validates the draft and replaces the clustering snapshot.
func (s *ConfigStore) CommitCluster(draft model.ClusterConfig) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	s.cluster = draft
	return nil
}

// CommitLLM validates the draft and replaces the LLM snapshot. An empty API
// key is committable; the summarize stage checks for credentials at run time.
func (s *ConfigStore) CommitLLM(draft model.LLMConfig) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	s.llm = draft
	return nil
}
