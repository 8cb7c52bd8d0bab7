package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civiclens/appeals-cli/internal/model"
	"github.com/civiclens/appeals-cli/internal/pipeline"
	"github.com/civiclens/appeals-cli/internal/profile"
	"github.com/civiclens/appeals-cli/pkg/analysis"
)

var (
	clusterInput      string
	clusterProfile    string
	clusterNeighbors  int
	clusterComponents int
	clusterMinSize    int
	clusterTopN       int
	clusterTextCol    string
	clusterIDCol      string
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Embed and cluster a processed workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		cc := cfg.ClusterSettings()
		if clusterProfile != "" {
			p, err := profile.Resolve(cfg.Output.ProfilesPath, clusterProfile)
			if err != nil {
				return err
			}
			cc = p.Apply(cc)
		}
		if cmd.Flags().Changed("neighbors") {
			cc.NeighborCount = clusterNeighbors
		}
		if cmd.Flags().Changed("components") {
			cc.ComponentCount = clusterComponents
		}
		if cmd.Flags().Changed("min-cluster-size") {
			cc.MinClusterSize = clusterMinSize
		}
		if cmd.Flags().Changed("top-n") {
			cc.KeywordTopN = clusterTopN
		}
		if cmd.Flags().Changed("text-column") {
			cc.TextColumn = clusterTextCol
		}
		if cmd.Flags().Changed("id-column") {
			cc.IDColumn = clusterIDCol
		}
		if err := cc.Validate(); err != nil {
			return err
		}

		name, data, err := readWorkbook(clusterInput)
		if err != nil {
			return err
		}

		resp, err := newServiceClient().Cluster(ctx, analysis.ClusterRequest{
			FileName:       name,
			FileData:       data,
			TextColumn:     cc.TextColumn,
			OriginalColumn: cc.IDColumn,
			NNeighbors:     cc.NeighborCount,
			NComponents:    cc.ComponentCount,
			MinClusterSize: cc.MinClusterSize,
			KeywordTopN:    cc.KeywordTopN,
		})
		if err != nil {
			return eris.Wrap(err, "cluster stage")
		}

		artifact := pipeline.Resolve(resp.OutputFile, name, model.StageCluster).Lookup()
		fmt.Println(resp.Message)
		fmt.Printf("Texts: %d, topics: %d, noise: %d\n", resp.TotalTexts, resp.NClusters, resp.NNoise)
		fmt.Printf("Artifact: %s\n", artifact)
		return nil
	},
}

func init() {
	clusterCmd.Flags().StringVar(&clusterInput, "input", "", "path to the processed workbook (required)")
	clusterCmd.Flags().StringVar(&clusterProfile, "profile", "", "named clustering profile to apply")
	clusterCmd.Flags().IntVar(&clusterNeighbors, "neighbors", 0, "UMAP neighbor count")
	clusterCmd.Flags().IntVar(&clusterComponents, "components", 0, "UMAP component count")
	clusterCmd.Flags().IntVar(&clusterMinSize, "min-cluster-size", 0, "HDBSCAN minimum cluster size")
	clusterCmd.Flags().IntVar(&clusterTopN, "top-n", 0, "keywords kept per cluster")
	clusterCmd.Flags().StringVar(&clusterTextCol, "text-column", "", "column holding the sanitized text")
	clusterCmd.Flags().StringVar(&clusterIDCol, "id-column", "", "column holding the record id")
	_ = clusterCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(clusterCmd)
}
