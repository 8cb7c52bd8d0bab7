package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/civiclens/appeals-cli/internal/model"
	"github.com/civiclens/appeals-cli/internal/pipeline"
	"github.com/civiclens/appeals-cli/internal/profile"
	"github.com/civiclens/appeals-cli/internal/store"
	"github.com/civiclens/appeals-cli/pkg/analysis"
)

// initStore opens the run history backend named by the config.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "appeals.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newServiceClient builds the analysis service client from config.
func newServiceClient() analysis.Client {
	return analysis.NewClient(
		analysis.WithBaseURL(cfg.Service.BaseURL),
		analysis.WithTimeout(cfg.ServiceTimeout()),
		analysis.WithRateLimit(cfg.Service.RateLimitRPS),
		analysis.WithRetry(cfg.RetrySettings()),
	)
}

// newConfigStore assembles the committed stage configuration, overlaying the
// named cluster profile and API key override when given. Committing each
// snapshot validates it, so bad config or profile values fail here rather
// than mid-pipeline.
func newConfigStore(profileName, apiKey string) (*pipeline.ConfigStore, error) {
	cleanCfg := cfg.CleanSettings()
	clusterCfg := cfg.ClusterSettings()
	llmCfg := cfg.LLMSettings()

	if profileName != "" {
		p, err := profile.Resolve(cfg.Output.ProfilesPath, profileName)
		if err != nil {
			return nil, err
		}
		clusterCfg = p.Apply(clusterCfg)
	}
	if apiKey != "" {
		llmCfg.APIKey = apiKey
	}

	cs := pipeline.NewConfigStore(cleanCfg, clusterCfg, llmCfg)
	if err := cs.CommitClean(cleanCfg); err != nil {
		return nil, err
	}
	if err := cs.CommitCluster(clusterCfg); err != nil {
		return nil, err
	}
	if err := cs.CommitLLM(llmCfg); err != nil {
		return nil, err
	}
	return cs, nil
}

// readWorkbook loads a local workbook and returns its base name plus content.
func readWorkbook(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, eris.Wrapf(err, "read workbook %s", path)
	}
	return filepath.Base(path), data, nil
}

// ensureOutputDir creates the configured output directory when missing.
func ensureOutputDir() (string, error) {
	dir := cfg.Output.Dir
	if dir == "" {
		dir = "output"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", eris.Wrapf(err, "create output dir %s", dir)
	}
	return dir, nil
}

// progressPrinter writes stage checkpoints to stderr as they happen.
func progressPrinter(stage model.StageID, percent int, message string) {
	fmt.Fprintf(os.Stderr, "[%-9s] %3d%% %s\n", stage, percent, message)
}
