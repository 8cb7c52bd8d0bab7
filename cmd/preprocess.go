package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclens/appeals-cli/internal/model"
	"github.com/civiclens/appeals-cli/internal/pipeline"
	"github.com/civiclens/appeals-cli/pkg/analysis"
)

var (
	preInput     string
	preExtractor string
	preColumn    string
	preRedaction bool
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Clean a raw appeal workbook through the analysis service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		mc := cfg.CleanSettings()
		if cmd.Flags().Changed("extractor") {
			mc.ExtractorKind = preExtractor
		}
		if cmd.Flags().Changed("column") {
			mc.SourceColumn = preColumn
		}
		if cmd.Flags().Changed("redaction") {
			mc.UseEntityRedaction = preRedaction
		}
		if err := mc.Validate(); err != nil {
			return err
		}

		name, data, err := readWorkbook(preInput)
		if err != nil {
			return err
		}

		resp, err := newServiceClient().Preprocess(ctx, analysis.PreprocessRequest{
			FileName:      name,
			FileData:      data,
			ExtractorType: mc.ExtractorKind,
			UseNER:        mc.UseEntityRedaction,
			ColumnName:    mc.SourceColumn,
		})
		if err != nil {
			return eris.Wrap(err, "clean stage")
		}

		artifact := pipeline.Resolve(nil, name, model.StageClean).Lookup()
		fmt.Println(resp.Message)
		fmt.Printf("Rows: %d total, %d valid, %d removed\n", resp.TotalRows, resp.ValidRows, resp.RemovedRows)
		fmt.Printf("Artifact: %s\n", artifact)
		return nil
	},
}

func init() {
	preprocessCmd.Flags().StringVar(&preInput, "input", "", "path to the raw appeal workbook (required)")
	preprocessCmd.Flags().StringVar(&preExtractor, "extractor", "", "extractor kind: 12366, 12345 or zn")
	preprocessCmd.Flags().StringVar(&preColumn, "column", "", "source text column name")
	preprocessCmd.Flags().BoolVar(&preRedaction, "redaction", true, "redact person and org names")
	_ = preprocessCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(preprocessCmd)
}
