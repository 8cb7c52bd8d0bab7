package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/civiclens/appeals-cli/internal/model"
	"github.com/civiclens/appeals-cli/pkg/analysis"
)

// Sentinel conditions surfaced by RunStage. All are pre-run checks: when one
// is returned, no stage state has changed and no remote call was made.
var (
	// ErrNoInput is returned when a stage is run before an input workbook
	// has been selected.
	ErrNoInput = eris.New("pipeline: no input workbook selected")

	// ErrStageNotReady is returned when the requested stage is not runnable.
	ErrStageNotReady = eris.New("pipeline: stage is not ready")

	// ErrCredentialsRequired is returned when the summarize stage is run
	// without an LLM API key committed.
	ErrCredentialsRequired = eris.New("pipeline: llm api key required")
)

// ProgressFunc receives checkpoint updates while a stage runs.
type ProgressFunc func(stage model.StageID, percent int, message string)

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithProgress registers a callback fired at each progress checkpoint.
func WithProgress(fn ProgressFunc) ControllerOption {
	return func(c *Controller) { c.progress = fn }
}

// Controller drives the clean, cluster, summarize pipeline against the
// remote analysis service. It owns the per-stage states and artifact
// references and enforces stage ordering: a stage becomes Ready only when
// the stage upstream of it is Done, and entering a run invalidates every
// downstream stage even if the run then fails.
//
// Not safe for concurrent use. At most one stage runs at a time.
type Controller struct {
	client   analysis.Client
	configs  *ConfigStore
	progress ProgressFunc

	inputName string
	inputData []byte

	states    map[model.StageID]*model.StageState
	artifacts map[model.StageID]model.ArtifactReference
}

// NewController creates a pipeline controller using the given service client
// and committed stage configuration.
func NewController(client analysis.Client, configs *ConfigStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		client:    client,
		configs:   configs,
		artifacts: make(map[model.StageID]model.ArtifactReference),
		states: map[model.StageID]*model.StageState{
			model.StageClean:     {Status: model.StageStatusReady},
			model.StageCluster:   {Status: model.StageStatusWaiting},
			model.StageSummarize: {Status: model.StageStatusWaiting},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectInput registers the workbook the pipeline operates on, discarding
// all prior stage results and artifacts.
func (c *Controller) SelectInput(name string, data []byte) {
	c.inputName = name
	c.inputData = data
	c.states = map[model.StageID]*model.StageState{
		model.StageClean:     {Status: model.StageStatusReady},
		model.StageCluster:   {Status: model.StageStatusWaiting},
		model.StageSummarize: {Status: model.StageStatusWaiting},
	}
	c.artifacts = make(map[model.StageID]model.ArtifactReference)
}

// InputName returns the name of the selected input workbook.
func (c *Controller) InputName() string { return c.inputName }

// State returns a copy of the given stage's state.
func (c *Controller) State(stage model.StageID) model.StageState {
	if st, ok := c.states[stage]; ok {
		return *st
	}
	return model.StageState{}
}

// Artifact resolves the output name of a completed stage. Requesting it
// before the stage is done returns ErrArtifactNotReady.
func (c *Controller) Artifact(stage model.StageID) (string, error) {
	ref, ok := c.artifacts[stage]
	if !ok {
		return "", ErrArtifactNotReady
	}
	return ref.Lookup(), nil
}

// Report aggregates the summarize stage's rows. It returns nil until that
// stage is done. Entries are recomputed on every call.
func (c *Controller) Report() *model.Report {
	st := c.states[model.StageSummarize]
	if st.Status != model.StageStatusDone || st.Result == nil || st.Result.Keywords == nil {
		return nil
	}
	return Aggregate(st.Result.Keywords.Rows)
}

// Run executes the full clean, cluster, summarize sequence, stopping at the
// first failing stage.
func (c *Controller) Run(ctx context.Context) error {
	for stage := model.StageClean; stage <= model.StageSummarize; stage++ {
		if err := c.RunStage(ctx, stage); err != nil {
			return eris.Wrap(err, fmt.Sprintf("pipeline: %s stage", stage))
		}
	}
	return nil
}

// RunStage executes one pipeline stage against the remote service. The
// stage must be runnable (Ready, or Error for a retry); otherwise the call
// is a no-op returning ErrStageNotReady. The summarize stage additionally
// requires a committed API key and short-circuits with
// ErrCredentialsRequired before any remote work when it is missing.
//
// A failed run leaves the stage in Error with the service's detail message;
// retrying re-enters Running and clears the message. Stages upstream of a
// failure keep their results.
func (c *Controller) RunStage(ctx context.Context, stage model.StageID) error {
	if !stage.Valid() {
		return eris.Errorf("pipeline: unknown stage %d", int(stage))
	}
	if c.inputName == "" {
		return ErrNoInput
	}

	st := c.states[stage]
	if !st.Runnable() {
		return ErrStageNotReady
	}

	if stage == model.StageSummarize && !c.configs.LLM().HasCredentials() {
		return ErrCredentialsRequired
	}

	c.begin(stage, st)

	var (
		result *model.StageResult
		err    error
	)
	switch stage {
	case model.StageClean:
		result, err = c.runClean(ctx, st)
	case model.StageCluster:
		result, err = c.runCluster(ctx, st)
	case model.StageSummarize:
		result, err = c.runSummarize(ctx, st)
	}
	if err != nil {
		c.fail(stage, st, err)
		return err
	}

	c.complete(stage, st, result)
	return nil
}

// begin moves a stage into Running, clears its prior error and result, and
// invalidates everything downstream. The stage's own artifact is discarded
// too: it refers to output that the rerun is about to replace.
func (c *Controller) begin(stage model.StageID, st *model.StageState) {
	st.Status = model.StageStatusRunning
	st.ErrorMessage = ""
	st.Result = nil
	st.ProgressPercent = 0
	st.ProgressMessage = ""
	delete(c.artifacts, stage)

	for downstream := stage + 1; downstream <= model.StageSummarize; downstream++ {
		c.states[downstream] = &model.StageState{Status: model.StageStatusWaiting}
		delete(c.artifacts, downstream)
	}

	zap.L().Info("pipeline: stage started",
		zap.String("stage", stage.String()),
		zap.String("input", c.inputName),
	)
}

func (c *Controller) fail(stage model.StageID, st *model.StageState, err error) {
	st.Status = model.StageStatusError
	st.ErrorMessage = stageErrorMessage(err)

	zap.L().Warn("pipeline: stage failed",
		zap.String("stage", stage.String()),
		zap.String("message", st.ErrorMessage),
	)
}

func (c *Controller) complete(stage model.StageID, st *model.StageState, result *model.StageResult) {
	st.Result = result
	st.Status = model.StageStatusDone
	c.setProgress(stage, st, 100, fmt.Sprintf("%s complete", stage))

	c.artifacts[stage] = Resolve(result.OutputFile(), c.inputName, stage)

	if next := stage + 1; next.Valid() {
		c.states[next].Status = model.StageStatusReady
	}

	zap.L().Info("pipeline: stage complete",
		zap.String("stage", stage.String()),
		zap.String("artifact", c.artifacts[stage].Lookup()),
	)
}

// setProgress records a checkpoint. Percent is clamped so observers always
// see a non-decreasing sequence within one run.
func (c *Controller) setProgress(stage model.StageID, st *model.StageState, percent int, message string) {
	if percent < st.ProgressPercent {
		percent = st.ProgressPercent
	}
	st.ProgressPercent = percent
	st.ProgressMessage = message
	if c.progress != nil {
		c.progress(stage, percent, message)
	}
}

func (c *Controller) runClean(ctx context.Context, st *model.StageState) (*model.StageResult, error) {
	cfg := c.configs.Clean()

	c.setProgress(model.StageClean, st, 20, "uploading input workbook")

	req := analysis.PreprocessRequest{
		FileName:      c.inputName,
		FileData:      c.inputData,
		ExtractorType: cfg.ExtractorKind,
		UseNER:        cfg.UseEntityRedaction,
		ColumnName:    cfg.SourceColumn,
	}

	c.setProgress(model.StageClean, st, 50, "cleaning text")

	resp, err := c.client.Preprocess(ctx, req)
	if err != nil {
		return nil, err
	}

	return &model.StageResult{Clean: &model.CleanSummary{
		Message:     resp.Message,
		TotalRows:   resp.TotalRows,
		ValidRows:   resp.ValidRows,
		RemovedRows: resp.RemovedRows,
	}}, nil
}

func (c *Controller) runCluster(ctx context.Context, st *model.StageState) (*model.StageResult, error) {
	cfg := c.configs.Cluster()

	name, data, err := c.fetchUpstream(ctx, model.StageCluster, st, "fetching cleaned workbook")
	if err != nil {
		return nil, err
	}

	c.setProgress(model.StageCluster, st, 10, "uploading workbook")

	req := analysis.ClusterRequest{
		FileName:       name,
		FileData:       data,
		TextColumn:     cfg.TextColumn,
		OriginalColumn: cfg.IDColumn,
		NNeighbors:     cfg.NeighborCount,
		NComponents:    cfg.ComponentCount,
		MinClusterSize: cfg.MinClusterSize,
		KeywordTopN:    cfg.KeywordTopN,
	}

	c.setProgress(model.StageCluster, st, 15, "embedding and clustering")

	resp, err := c.client.Cluster(ctx, req)
	if err != nil {
		return nil, err
	}

	return &model.StageResult{Cluster: &model.ClusterSummary{
		Message:    resp.Message,
		TotalTexts: resp.TotalTexts,
		NClusters:  resp.NClusters,
		NNoise:     resp.NNoise,
		OutputFile: resp.OutputFile,
	}}, nil
}

func (c *Controller) runSummarize(ctx context.Context, st *model.StageState) (*model.StageResult, error) {
	cfg := c.configs.LLM()

	name, data, err := c.fetchUpstream(ctx, model.StageSummarize, st, "fetching clustered workbook")
	if err != nil {
		return nil, err
	}

	c.setProgress(model.StageSummarize, st, 10, "uploading workbook")

	req := analysis.ExtractKeywordsRequest{
		FileName: name,
		FileData: data,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
	}

	c.setProgress(model.StageSummarize, st, 30, "extracting cluster keywords")

	resp, err := c.client.ExtractKeywords(ctx, req)
	if err != nil {
		return nil, err
	}

	return &model.StageResult{Keywords: &model.KeywordsSummary{
		Message:    resp.Message,
		Rows:       KeywordRows(resp.Result),
		OutputFile: resp.OutputFile,
	}}, nil
}

// fetchUpstream downloads the prior stage's artifact so it can be uploaded
// to the next endpoint.
func (c *Controller) fetchUpstream(ctx context.Context, stage model.StageID, st *model.StageState, message string) (string, []byte, error) {
	name, err := c.Artifact(stage - 1)
	if err != nil {
		return "", nil, err
	}

	c.setProgress(stage, st, 5, message)

	data, err := c.client.Download(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return name, data, nil
}

// KeywordRows converts service wire rows into domain cluster rows.
func KeywordRows(rows []analysis.KeywordRow) []model.ClusterRow {
	out := make([]model.ClusterRow, len(rows))
	for i, r := range rows {
		out[i] = model.ClusterRow{
			Cluster: r.Cluster,
			Keyword: r.LLMKeywords,
			Count:   r.Count,
		}
	}
	return out
}

// stageErrorMessage extracts the operator-facing message for a failed run:
// the service's own detail when present, the plain error text otherwise.
func stageErrorMessage(err error) string {
	var apiErr *analysis.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return err.Error()
}
