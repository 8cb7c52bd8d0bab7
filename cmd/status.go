package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show remote service state and the latest recorded run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		state, err := newServiceClient().LoadState(ctx)
		if err != nil {
			return eris.Wrap(err, "load service state")
		}
		fmt.Println(state.Message)
		if state.TotalRows > 0 {
			fmt.Printf("Remote session: %d rows, %d topics, %d noise\n",
				state.TotalRows, state.NClusters, state.NNoise)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		run, err := st.GetLatestRun(ctx)
		if err != nil {
			return eris.Wrap(err, "load latest run")
		}
		if run == nil {
			fmt.Println("No local runs recorded.")
			return nil
		}
		fmt.Printf("Latest run %s: %s on %s, started %s\n",
			truncateID(run.ID), run.Status, run.InputFile, run.CreatedAt.Format(time.RFC3339))
		if run.Report != nil {
			fmt.Printf("  %d topics over %d records (%.1f%% coverage)\n",
				run.Report.TopicCount, run.Report.TotalRecords, run.Report.Coverage*100)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
