package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civiclens/appeals-cli/internal/chart"
	"github.com/civiclens/appeals-cli/internal/model"
	"github.com/civiclens/appeals-cli/internal/pipeline"
	"github.com/civiclens/appeals-cli/pkg/analysis"
)

var (
	runInput   string
	runProfile string
	runAPIKey  string
	runCharts  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full clean, cluster, summarize pipeline on a workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		name, data, err := readWorkbook(runInput)
		if err != nil {
			return err
		}

		configs, err := newConfigStore(runProfile, runAPIKey)
		if err != nil {
			return err
		}
		// All three stages will run, so refuse up front rather than failing
		// two stages in.
		if !configs.LLM().HasCredentials() {
			return pipeline.ErrCredentialsRequired
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		client := newServiceClient()
		ctrl := pipeline.NewController(client, configs, pipeline.WithProgress(progressPrinter))
		ctrl.SelectInput(name, data)

		rec, err := st.CreateRun(ctx, name)
		if err != nil {
			return eris.Wrap(err, "record run")
		}
		if err := st.UpdateRunStatus(ctx, rec.ID, model.RunStatusRunning); err != nil {
			return eris.Wrap(err, "record run start")
		}

		for stage := model.StageClean; stage <= model.StageSummarize; stage++ {
			stageRec, err := st.CreateStage(ctx, rec.ID, stage)
			if err != nil {
				return eris.Wrap(err, "record stage")
			}

			runErr := ctrl.RunStage(ctx, stage)

			if err := st.CompleteStage(ctx, stageRec.ID, stageOutcome(ctrl, stage, runErr)); err != nil {
				zap.L().Warn("record stage outcome failed", zap.Error(err))
			}
			if runErr != nil {
				if err := st.UpdateRunStatus(ctx, rec.ID, model.RunStatusFailed); err != nil {
					zap.L().Warn("record run failure failed", zap.Error(err))
				}
				return eris.Wrap(runErr, fmt.Sprintf("%s stage", stage))
			}
		}

		rep := ctrl.Report()
		if rep == nil {
			return eris.New("pipeline finished without keyword rows")
		}
		if err := st.UpdateRunReport(ctx, rec.ID, rep); err != nil {
			zap.L().Warn("record run report failed", zap.Error(err))
		}

		metrics, savedPath := exportBundle(ctx, ctrl, client)

		fmt.Println(pipeline.FormatReport(rep, name))
		if metrics != nil {
			fmt.Println("## Clustering Metrics")
			fmt.Println()
			formatMetrics(os.Stdout, metrics)
		}
		if savedPath != "" {
			fmt.Printf("\nKeywords workbook saved to %s\n", savedPath)
		}
		if runCharts {
			dir, err := ensureOutputDir()
			if err != nil {
				return err
			}
			chartsPath := filepath.Join(dir, "charts.html")
			if err := chart.WriteHTML(chartsPath, rep); err != nil {
				return err
			}
			fmt.Printf("Charts written to %s\n", chartsPath)
		}

		zap.L().Info("pipeline complete",
			zap.String("run_id", rec.ID),
			zap.String("input", name),
			zap.Int("topics", rep.TopicCount),
			zap.Float64("coverage", rep.Coverage),
		)
		return nil
	},
}

// stageOutcome snapshots the stage's post-run state for the history record.
// Pre-run refusals never touch stage state, so they are recorded explicitly.
func stageOutcome(ctrl *pipeline.Controller, stage model.StageID, runErr error) *model.StageOutcome {
	state := ctrl.State(stage)
	out := &model.StageOutcome{
		Status:       state.Status,
		Result:       state.Result,
		ErrorMessage: state.ErrorMessage,
	}
	if runErr != nil && out.Status != model.StageStatusError {
		out.Status = model.StageStatusError
		out.ErrorMessage = runErr.Error()
	}
	if name, err := ctrl.Artifact(stage); err == nil {
		out.ArtifactName = name
	}
	return out
}

// exportBundle fetches clustering quality metrics and the keywords workbook
// concurrently. The pipeline already succeeded, so bundle failures log a
// warning instead of failing the run.
func exportBundle(ctx context.Context, ctrl *pipeline.Controller, client analysis.Client) (*analysis.EvaluateResponse, string) {
	var (
		metrics   *analysis.EvaluateResponse
		savedPath string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		clusteredName, err := ctrl.Artifact(model.StageCluster)
		if err != nil {
			return err
		}
		data, err := client.Download(gctx, clusteredName)
		if err != nil {
			return err
		}
		m, err := client.Evaluate(gctx, analysis.EvaluateRequest{
			FileName: clusteredName,
			FileData: data,
		})
		if err != nil {
			return err
		}
		metrics = m
		return nil
	})
	g.Go(func() error {
		keywordsName, err := ctrl.Artifact(model.StageSummarize)
		if err != nil {
			return err
		}
		data, err := client.Download(gctx, keywordsName)
		if err != nil {
			return err
		}
		dir, err := ensureOutputDir()
		if err != nil {
			return err
		}
		path := filepath.Join(dir, keywordsName)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return eris.Wrapf(err, "save keywords workbook %s", path)
		}
		savedPath = path
		return nil
	})
	if err := g.Wait(); err != nil {
		zap.L().Warn("report bundle incomplete", zap.Error(err))
	}
	return metrics, savedPath
}

func init() {
	runCmd.Flags().StringVar(&runInput, "input", "", "path to the appeal workbook (required)")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "named clustering profile to apply")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "LLM API key (overrides config)")
	runCmd.Flags().BoolVar(&runCharts, "charts", false, "also write HTML charts to the output dir")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}
