package analysis

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// Extractor types accepted by POST /api/preprocess.
const (
	ExtractorHotline12366 = "12366"
	ExtractorHotline12345 = "12345"
	ExtractorGeneral      = "zn"
)

// PreprocessRequest holds the form fields for POST /api/preprocess.
type PreprocessRequest struct {
	FileName      string
	FileData      []byte
	ExtractorType string
	UseNER        bool
	ColumnName    string
}

// PreprocessResponse is the response from POST /api/preprocess.
type PreprocessResponse struct {
	Message     string `json:"message"`
	TotalRows   int    `json:"total_rows"`
	ValidRows   int    `json:"valid_rows"`
	RemovedRows int    `json:"removed_rows"`
}

// ClusterRequest holds the form fields for POST /api/cluster. Zero-valued
// tuning fields are omitted so the service defaults apply.
type ClusterRequest struct {
	FileName       string
	FileData       []byte
	TextColumn     string
	OriginalColumn string
	NNeighbors     int
	NComponents    int
	MinClusterSize int
	KeywordTopN    int
}

// ClusterResponse is the response from POST /api/cluster.
type ClusterResponse struct {
	Message    string  `json:"message"`
	TotalTexts int     `json:"total_texts"`
	NClusters  int     `json:"n_clusters"`
	NNoise     int     `json:"n_noise"`
	OutputFile *string `json:"output_file,omitempty"`
}

// EvaluateRequest holds the form fields for POST /api/evaluate.
type EvaluateRequest struct {
	FileName      string
	FileData      []byte
	TextColumn    string
	ClusterColumn string
}

// EvaluateResponse is the response from POST /api/evaluate.
type EvaluateResponse struct {
	Message string                 `json:"message"`
	Metrics map[string]MetricValue `json:"metrics"`
}

// ExtractKeywordsRequest holds the form fields for POST /api/extract-keywords.
type ExtractKeywordsRequest struct {
	FileName   string
	FileData   []byte
	APIKey     string
	BaseURL    string
	TextColumn string
}

// KeywordRow is a single per-cluster row in the extract-keywords result.
// Count is absent on older service versions.
type KeywordRow struct {
	Cluster     int    `json:"Cluster"`
	LLMKeywords string `json:"LLM_Keywords"`
	Count       *int   `json:"Count,omitempty"`
}

// ExtractKeywordsResponse is the response from POST /api/extract-keywords.
type ExtractKeywordsResponse struct {
	Message    string       `json:"message"`
	Result     []KeywordRow `json:"result"`
	OutputFile *string      `json:"output_file,omitempty"`
}

// StateResponse is the response from GET /api/load-state.
type StateResponse struct {
	Message   string `json:"message"`
	TotalRows int    `json:"total_rows"`
	NClusters int    `json:"n_clusters"`
	NNoise    int    `json:"n_noise"`
}

// MetricValue is a clustering quality metric. The service reports most
// metrics as numbers but substitutes strings such as "n/a" when a metric
// cannot be computed.
type MetricValue struct {
	Number *float64
	Text   string
}

func (m *MetricValue) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		m.Number = &f
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.New("analysis: metric value is neither number nor string")
	}
	m.Text = s
	return nil
}

func (m MetricValue) MarshalJSON() ([]byte, error) {
	if m.Number != nil {
		return json.Marshal(*m.Number)
	}
	return json.Marshal(m.Text)
}

// String renders the metric for display, numbers with four decimal places.
func (m MetricValue) String() string {
	if m.Number != nil {
		return strconv.FormatFloat(*m.Number, 'f', 4, 64)
	}
	return m.Text
}
