package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclens/appeals-cli/internal/chart"
	"github.com/civiclens/appeals-cli/internal/dataset"
	"github.com/civiclens/appeals-cli/internal/pipeline"
)

var (
	reportFromFile     string
	reportFromArtifact string
	reportPreview      int
	reportXLSX         string
	reportCSV          string
	reportEncoding     string
	reportChartsOut    string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Aggregate a keywords workbook into a topic report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			name string
			data []byte
			err  error
		)
		switch {
		case reportFromFile != "" && reportFromArtifact != "":
			return eris.New("report: --from-file and --from-artifact are mutually exclusive")
		case reportFromFile != "":
			name, data, err = readWorkbook(reportFromFile)
			if err != nil {
				return err
			}
		case reportFromArtifact != "":
			if err := cfg.Validate("pipeline"); err != nil {
				return err
			}
			name = filepath.Base(reportFromArtifact)
			data, err = newServiceClient().Download(ctx, reportFromArtifact)
			if err != nil {
				return eris.Wrapf(err, "download %s", reportFromArtifact)
			}
		default:
			return eris.New("report: one of --from-file or --from-artifact is required")
		}

		if reportPreview > 0 {
			rows, err := dataset.Preview(data, reportPreview)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, row := range rows {
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
			return tw.Flush()
		}

		rows, err := dataset.DecodeClusterRows(data)
		if err != nil {
			return err
		}
		rep := pipeline.Aggregate(rows)
		fmt.Println(pipeline.FormatReport(rep, name))

		if reportXLSX != "" {
			if err := dataset.WriteReportXLSX(reportXLSX, rep); err != nil {
				return err
			}
			fmt.Printf("Report workbook written to %s\n", reportXLSX)
		}
		if reportCSV != "" {
			enc, err := dataset.ParseEncoding(reportEncoding)
			if err != nil {
				return err
			}
			if err := dataset.WriteReportCSV(reportCSV, rep, enc); err != nil {
				return err
			}
			fmt.Printf("Report CSV written to %s\n", reportCSV)
		}
		if reportChartsOut != "" {
			if err := chart.WriteHTML(reportChartsOut, rep); err != nil {
				return err
			}
			fmt.Printf("Charts written to %s\n", reportChartsOut)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFromFile, "from-file", "", "local keywords workbook to aggregate")
	reportCmd.Flags().StringVar(&reportFromArtifact, "from-artifact", "", "service artifact to fetch and aggregate")
	reportCmd.Flags().IntVar(&reportPreview, "preview", 0, "print the first N raw rows instead of aggregating")
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "", "also write the report as an xlsx workbook")
	reportCmd.Flags().StringVar(&reportCSV, "csv", "", "also write the report as CSV")
	reportCmd.Flags().StringVar(&reportEncoding, "encoding", "utf-8", "CSV encoding: utf-8 or gb18030")
	reportCmd.Flags().StringVar(&reportChartsOut, "charts", "", "also write HTML charts")
	rootCmd.AddCommand(reportCmd)
}
