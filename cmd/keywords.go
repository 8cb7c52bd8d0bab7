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
	kwInput   string
	kwAPIKey  string
	kwTextCol string
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Summarize clustered appeals into per-topic keywords via the LLM",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		llm := cfg.LLMSettings()
		if cmd.Flags().Changed("api-key") {
			llm.APIKey = kwAPIKey
		}
		if !llm.HasCredentials() {
			return pipeline.ErrCredentialsRequired
		}

		name, data, err := readWorkbook(kwInput)
		if err != nil {
			return err
		}

		resp, err := newServiceClient().ExtractKeywords(ctx, analysis.ExtractKeywordsRequest{
			FileName:   name,
			FileData:   data,
			APIKey:     llm.APIKey,
			BaseURL:    llm.BaseURL,
			TextColumn: kwTextCol,
		})
		if err != nil {
			return eris.Wrap(err, "summarize stage")
		}

		rep := pipeline.Aggregate(pipeline.KeywordRows(resp.Result))
		artifact := pipeline.Resolve(resp.OutputFile, name, model.StageSummarize).Lookup()
		fmt.Println(pipeline.FormatReport(rep, name))
		fmt.Printf("Artifact: %s\n", artifact)
		return nil
	},
}

func init() {
	keywordsCmd.Flags().StringVar(&kwInput, "input", "", "path to the clustered workbook (required)")
	keywordsCmd.Flags().StringVar(&kwAPIKey, "api-key", "", "LLM API key (overrides config)")
	keywordsCmd.Flags().StringVar(&kwTextCol, "text-column", "", "text column in the clustered workbook (default from service)")
	_ = keywordsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(keywordsCmd)
}
