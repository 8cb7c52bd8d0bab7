package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclens/appeals-cli/pkg/analysis"
)

var (
	evalInput      string
	evalTextCol    string
	evalClusterCol string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score clustering quality for a clustered workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		name, data, err := readWorkbook(evalInput)
		if err != nil {
			return err
		}

		resp, err := newServiceClient().Evaluate(ctx, analysis.EvaluateRequest{
			FileName:      name,
			FileData:      data,
			TextColumn:    evalTextCol,
			ClusterColumn: evalClusterCol,
		})
		if err != nil {
			return eris.Wrap(err, "evaluate clustering")
		}

		fmt.Println(resp.Message)
		formatMetrics(cmd.OutOrStdout(), resp)
		return nil
	},
}

// formatMetrics renders evaluation metrics as an aligned table sorted by
// metric name.
func formatMetrics(w io.Writer, resp *analysis.EvaluateResponse) {
	names := make([]string, 0, len(resp.Metrics))
	for name := range resp.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tVALUE")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, resp.Metrics[name].String())
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	evaluateCmd.Flags().StringVar(&evalInput, "input", "", "path to the clustered workbook (required)")
	evaluateCmd.Flags().StringVar(&evalTextCol, "text-column", "", "text column in the clustered workbook (default from service)")
	evaluateCmd.Flags().StringVar(&evalClusterCol, "cluster-column", "", "column holding cluster assignments (default from service)")
	_ = evaluateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(evaluateCmd)
}
