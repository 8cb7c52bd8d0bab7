package model

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Extractor kinds understood by the remote cleaning stage.
const (
	ExtractorHotline12366 = "12366"
	ExtractorHotline12345 = "12345"
	ExtractorGeneral      = "zn"
)

// CleanConfig is the committed configuration snapshot for the cleaning stage.
type CleanConfig struct {
	ExtractorKind      string `json:"extractor_kind"`
	UseEntityRedaction bool   `json:"use_entity_redaction"`
	SourceColumn       string `json:"source_column"`
}

// Validate checks the snapshot before it is committed.
func (c CleanConfig) Validate() error {
	switch c.ExtractorKind {
	case ExtractorHotline12366, ExtractorHotline12345, ExtractorGeneral:
	default:
		return eris.Errorf("clean config: unknown extractor kind %q", c.ExtractorKind)
	}
	if strings.TrimSpace(c.SourceColumn) == "" {
		return eris.New("clean config: source column is required")
	}
	return nil
}

// ClusterConfig is the committed hyperparameter snapshot for the clustering
// stage.
type ClusterConfig struct {
	NeighborCount  int    `json:"neighbor_count"`
	ComponentCount int    `json:"component_count"`
	MinClusterSize int    `json:"min_cluster_size"`
	KeywordTopN    int    `json:"keyword_top_n"`
	TextColumn     string `json:"text_column"`
	IDColumn       string `json:"id_column"`
}

// Validate checks the snapshot before it is committed.
func (c ClusterConfig) Validate() error {
	if c.NeighborCount < 2 {
		return eris.Errorf("cluster config: neighbor count must be at least 2, got %d", c.NeighborCount)
	}
	if c.ComponentCount < 1 {
		return eris.Errorf("cluster config: component count must be at least 1, got %d", c.ComponentCount)
	}
	if c.MinClusterSize < 2 {
		return eris.Errorf("cluster config: min cluster size must be at least 2, got %d", c.MinClusterSize)
	}
	if c.KeywordTopN < 1 {
		return eris.Errorf("cluster config: keyword top n must be at least 1, got %d", c.KeywordTopN)
	}
	if strings.TrimSpace(c.TextColumn) == "" {
		return eris.New("cluster config: text column is required")
	}
	if strings.TrimSpace(c.IDColumn) == "" {
		return eris.New("cluster config: id column is required")
	}
	return nil
}

// LLMConfig is the committed credential snapshot for the summarization
// stage. An empty APIKey is committable; the pipeline refuses to run the
// stage until one is set.
type LLMConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// HasCredentials reports whether an API key is configured.
func (c LLMConfig) HasCredentials() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Validate checks the snapshot before it is committed.
func (c LLMConfig) Validate() error {
	if c.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return eris.Errorf("llm config: invalid base url %q", c.BaseURL)
	}
	return nil
}
