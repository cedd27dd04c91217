package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Grammars GrammarsConfig `yaml:"grammars" mapstructure:"grammars"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string      `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string      `yaml:"database_url" mapstructure:"database_url"`
	Pool        *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional pgx pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ExtractConfig configures validation and scoring behavior.
type ExtractConfig struct {
	SubtotalTolerance  float64 `yaml:"subtotal_tolerance" mapstructure:"subtotal_tolerance"`
	ConsistencyPenalty float64 `yaml:"consistency_penalty" mapstructure:"consistency_penalty"`
	SheetIndex         int     `yaml:"sheet_index" mapstructure:"sheet_index"`
}

// GrammarsConfig configures where company grammar definitions are loaded from.
type GrammarsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // extra grammar YAML files, on top of the built-ins
}

// BatchConfig configures concurrent voucher processing.
type BatchConfig struct {
	MaxConcurrentVouchers int `yaml:"max_concurrent_vouchers" mapstructure:"max_concurrent_vouchers"`
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
	v.SetEnvPrefix("FREIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("extract.subtotal_tolerance", 0.01)
	v.SetDefault("extract.consistency_penalty", 0.5)
	v.SetDefault("extract.sheet_index", 0)
	v.SetDefault("batch.max_concurrent_vouchers", 4)

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
