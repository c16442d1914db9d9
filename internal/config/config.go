package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aqxion/keyword-cli/internal/formula"
)

// ErrInvalid marks a configuration problem the pipeline must fail fast on.
// Every validation error wraps it so callers can distinguish bad config from
// runtime degradation.
var ErrInvalid = eris.New("invalid configuration")

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Suggest    SuggestConfig    `yaml:"suggest" mapstructure:"suggest"`
	Planner    PlannerConfig    `yaml:"planner" mapstructure:"planner"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Volume     VolumeConfig     `yaml:"volume" mapstructure:"volume"`
	Cluster    ClusterConfig    `yaml:"cluster" mapstructure:"cluster"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SuggestConfig configures the autocomplete suggestion source.
type SuggestConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Language string `yaml:"language" mapstructure:"language"`
}

// PlannerConfig configures the keyword metrics API.
type PlannerConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	CustomerID string  `yaml:"customer_id" mapstructure:"customer_id"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// EmbeddingsConfig configures the embeddings provider.
type EmbeddingsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings for cluster labeling.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
}

// DiscoveryConfig configures a discovery run.
type DiscoveryConfig struct {
	Geo            string `yaml:"geo" mapstructure:"geo"`
	Language       string `yaml:"language" mapstructure:"language"`
	TargetKeywords int    `yaml:"target_keywords" mapstructure:"target_keywords"`
	Concurrency    int    `yaml:"concurrency" mapstructure:"concurrency"`
	FormulaVersion string `yaml:"formula_version" mapstructure:"formula_version"`
}

// VolumeConfig configures the volume provider and quota tracking.
type VolumeConfig struct {
	CacheTTLDays    int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	DailyOperations int     `yaml:"daily_operations" mapstructure:"daily_operations"`
	DailyReads      int     `yaml:"daily_reads" mapstructure:"daily_reads"`
	SafetyMargin    float64 `yaml:"safety_margin" mapstructure:"safety_margin"`
}

// ClusterConfig configures the clustering phase.
type ClusterConfig struct {
	MaxClusters int     `yaml:"max_clusters" mapstructure:"max_clusters"`
	Eps         float64 `yaml:"eps" mapstructure:"eps"`
}

// ExportConfig configures output files.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the read-only HTTP API.
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
	v.SetEnvPrefix("KEYWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "keywords.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("suggest.base_url", "https://suggestqueries.google.com/complete/search")
	v.SetDefault("suggest.language", "es")
	v.SetDefault("planner.rate_limit", 0.5)
	v.SetDefault("embeddings.base_url", "https://api.jina.ai/v1/embeddings")
	v.SetDefault("embeddings.model", "jina-embeddings-v3")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("discovery.geo", "pe")
	v.SetDefault("discovery.language", "es")
	v.SetDefault("discovery.target_keywords", 200)
	v.SetDefault("discovery.concurrency", 4)
	v.SetDefault("discovery.formula_version", "v1")
	v.SetDefault("volume.cache_ttl_days", 30)
	v.SetDefault("volume.daily_operations", 15000)
	v.SetDefault("volume.daily_reads", 1000)
	v.SetDefault("volume.safety_margin", 0.8)
	v.SetDefault("cluster.max_clusters", 10)
	v.SetDefault("cluster.eps", 0.35)
	v.SetDefault("export.dir", "exports")

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

// Validate fails fast on configuration the pipeline cannot run with. Every
// returned error wraps ErrInvalid.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Wrapf(ErrInvalid, "store driver %q (want sqlite or postgres)", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return eris.Wrap(ErrInvalid, "store database_url is empty")
	}

	reg, err := formula.Load()
	if err != nil {
		return eris.Wrapf(ErrInvalid, "formula registry: %v", err)
	}
	if c.Discovery.FormulaVersion != "" {
		if _, err := reg.Get(c.Discovery.FormulaVersion); err != nil {
			return eris.Wrapf(ErrInvalid, "formula version %q not in registry", c.Discovery.FormulaVersion)
		}
	}

	if c.Discovery.TargetKeywords <= 0 {
		return eris.Wrap(ErrInvalid, "discovery target_keywords must be positive")
	}
	if c.Discovery.Concurrency <= 0 {
		return eris.Wrap(ErrInvalid, "discovery concurrency must be positive")
	}

	if c.Volume.SafetyMargin <= 0 || c.Volume.SafetyMargin > 1 {
		return eris.Wrap(ErrInvalid, "volume safety_margin out of (0,1]")
	}
	if c.Volume.CacheTTLDays <= 0 {
		return eris.Wrap(ErrInvalid, "volume cache_ttl_days must be positive")
	}

	if c.Cluster.MaxClusters < 2 {
		return eris.Wrap(ErrInvalid, "cluster max_clusters must be at least 2")
	}
	if c.Cluster.Eps <= 0 || c.Cluster.Eps >= 1 {
		return eris.Wrap(ErrInvalid, "cluster eps out of (0,1)")
	}

	return nil
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
