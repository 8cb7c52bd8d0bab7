// Package config loads application configuration from config.yaml and the
// environment, and initializes the global logger.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civiclens/appeals-cli/internal/model"
	"github.com/civiclens/appeals-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Service ServiceConfig `yaml:"service" mapstructure:"service"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Clean   CleanConfig   `yaml:"clean" mapstructure:"clean"`
	Cluster ClusterConfig `yaml:"cluster" mapstructure:"cluster"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ServiceConfig configures the remote analysis service connection.
type ServiceConfig struct {
	BaseURL      string      `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitRPS float64     `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	Retry        RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures retry behavior for service calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// CleanConfig holds the cleaning stage defaults.
type CleanConfig struct {
	ExtractorKind      string `yaml:"extractor_kind" mapstructure:"extractor_kind"`
	UseEntityRedaction bool   `yaml:"use_entity_redaction" mapstructure:"use_entity_redaction"`
	SourceColumn       string `yaml:"source_column" mapstructure:"source_column"`
}

// ClusterConfig holds the clustering stage defaults.
type ClusterConfig struct {
	NeighborCount  int    `yaml:"neighbor_count" mapstructure:"neighbor_count"`
	ComponentCount int    `yaml:"component_count" mapstructure:"component_count"`
	MinClusterSize int    `yaml:"min_cluster_size" mapstructure:"min_cluster_size"`
	KeywordTopN    int    `yaml:"keyword_top_n" mapstructure:"keyword_top_n"`
	TextColumn     string `yaml:"text_column" mapstructure:"text_column"`
	IDColumn       string `yaml:"id_column" mapstructure:"id_column"`
}

// LLMConfig holds the summarization stage credentials.
type LLMConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OutputConfig configures local artifact and report destinations.
type OutputConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	ProfilesPath string `yaml:"profiles_path" mapstructure:"profiles_path"`
}

// ServerConfig configures the read-only HTTP surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("APPEALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("service.base_url", "http://localhost:8000")
	v.SetDefault("service.timeout_secs", 600)
	v.SetDefault("service.rate_limit_rps", 0)
	v.SetDefault("service.retry.max_attempts", 3)
	v.SetDefault("service.retry.initial_backoff_ms", 500)
	v.SetDefault("service.retry.max_backoff_ms", 10000)
	v.SetDefault("service.retry.multiplier", 2.0)
	v.SetDefault("service.retry.jitter_fraction", 0.2)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "appeals.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("clean.extractor_kind", model.ExtractorHotline12366)
	v.SetDefault("clean.use_entity_redaction", true)
	v.SetDefault("clean.source_column", "业务内容")
	v.SetDefault("cluster.neighbor_count", 15)
	v.SetDefault("cluster.component_count", 5)
	v.SetDefault("cluster.min_cluster_size", 10)
	v.SetDefault("cluster.keyword_top_n", 5)
	v.SetDefault("cluster.text_column", "Sanitized_Content")
	v.SetDefault("cluster.id_column", "业务编号")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.deepseek.com")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.profiles_path", "profiles.yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can support the given mode:
// "pipeline" for commands that call the analysis service, "serve" for the
// HTTP surface.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	switch mode {
	case "pipeline":
		if c.Service.BaseURL == "" {
			problems = append(problems, "service.base_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// CleanSettings builds the cleaning stage configuration snapshot.
func (c *Config) CleanSettings() model.CleanConfig {
	return model.CleanConfig{
		ExtractorKind:      c.Clean.ExtractorKind,
		UseEntityRedaction: c.Clean.UseEntityRedaction,
		SourceColumn:       c.Clean.SourceColumn,
	}
}

// ClusterSettings builds the clustering stage configuration snapshot.
func (c *Config) ClusterSettings() model.ClusterConfig {
	return model.ClusterConfig{
		NeighborCount:  c.Cluster.NeighborCount,
		ComponentCount: c.Cluster.ComponentCount,
		MinClusterSize: c.Cluster.MinClusterSize,
		KeywordTopN:    c.Cluster.KeywordTopN,
		TextColumn:     c.Cluster.TextColumn,
		IDColumn:       c.Cluster.IDColumn,
	}
}

// LLMSettings builds the summarization stage credential snapshot.
func (c *Config) LLMSettings() model.LLMConfig {
	return model.LLMConfig{
		APIKey:  c.LLM.APIKey,
		BaseURL: c.LLM.BaseURL,
	}
}

// RetrySettings converts the configured retry values.
func (c *Config) RetrySettings() resilience.RetryConfig {
	r := c.Service.Retry
	return resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction)
}

// ServiceTimeout returns the configured request timeout.
func (c *Config) ServiceTimeout() time.Duration {
	return time.Duration(c.Service.TimeoutSecs) * time.Second
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
