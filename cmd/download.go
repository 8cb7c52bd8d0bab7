package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var downloadOut string

var downloadCmd = &cobra.Command{
	Use:   "download <artifact>",
	Short: "Download a service artifact to disk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		name := args[0]
		data, err := newServiceClient().Download(ctx, name)
		if err != nil {
			return eris.Wrapf(err, "download %s", name)
		}

		out := downloadOut
		if out == "" {
			dir, err := ensureOutputDir()
			if err != nil {
				return err
			}
			out = filepath.Join(dir, filepath.Base(name))
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return eris.Wrapf(err, "save %s", out)
		}
		fmt.Printf("Saved %s (%d bytes)\n", out, len(data))
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadOut, "out", "", "destination path (defaults to the output dir)")
	rootCmd.AddCommand(downloadCmd)
}
