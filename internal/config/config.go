// Package config loads typed node configuration via viper, layering
// flags over environment variables over a config file (§6), grounded
// on the cobra.Command-plus-bound-viper.Viper pattern the
// AKJUS-bsc-erigon and certenIO-certen-validator examples use.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gillean.network/gillean/internal/nodeerrors"
	"gillean.network/gillean/internal/pos"
	"gillean.network/gillean/internal/types"
)

// Recognized environment variables (§6).
const (
	EnvDataDir  = "GILLEAN_DATA_DIR"
	EnvLogLevel = "GILLEAN_LOG_LEVEL"
	EnvTLSCert  = "GILLEAN_TLS_CERT"
	EnvTLSKey   = "GILLEAN_TLS_KEY"
)

// Config is the node's fully-resolved runtime configuration.
type Config struct {
	DataDir    string `mapstructure:"data_dir"`
	LogLevel   string `mapstructure:"log_level"`
	TLSCert    string `mapstructure:"tls_cert"`
	TLSKey     string `mapstructure:"tls_key"`
	ListenAddr string `mapstructure:"listen_addr"`

	PoW struct {
		Difficulty  uint32 `mapstructure:"difficulty"`
		MaxAttempts uint64 `mapstructure:"max_attempts"`
	} `mapstructure:"pow"`

	PoS struct {
		MinStake          float64       `mapstructure:"min_stake"`
		MaxValidators     int           `mapstructure:"max_validators"`
		EpochDuration     time.Duration `mapstructure:"epoch_duration"`
		FinalityThreshold float64       `mapstructure:"finality_threshold"`
		JailDuration      time.Duration `mapstructure:"jail_duration"`
	} `mapstructure:"pos"`

	Mode string `mapstructure:"mode"` // "pow" or "pos"
}

// setDefaults mirrors pos.DefaultConfig()/pow.DefaultEngine()'s
// constants so a config file only needs to override what it changes.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", ":7420")
	v.SetDefault("mode", "pos")

	v.SetDefault("pow.difficulty", 4)
	v.SetDefault("pow.max_attempts", 1_000_000)

	def := pos.DefaultConfig()
	v.SetDefault("pos.min_stake", def.MinStake.Float64())
	v.SetDefault("pos.max_validators", def.MaxValidators)
	v.SetDefault("pos.epoch_duration", def.EpochDuration)
	v.SetDefault("pos.finality_threshold", def.FinalityThreshold)
	v.SetDefault("pos.jail_duration", def.JailDuration)
}

// Load reads configuration from defaults, configPath (if non-empty) and
// environment variables, with environment variables overriding the
// config file and the config file overriding defaults — viper's native
// flags-over-env-over-file-over-defaults layering, with
// no CLI flags bound here (cmd/gilleand binds its own on top via
// v.BindPFlag before calling Load).
func Load(v *viper.Viper, configPath string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("GILLEAN")
	v.AutomaticEnv()
	_ = v.BindEnv("data_dir", EnvDataDir)
	_ = v.BindEnv("log_level", EnvLogLevel)
	_ = v.BindEnv("tls_cert", EnvTLSCert)
	_ = v.BindEnv("tls_key", EnvTLSKey)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config file %s: %v", nodeerrors.ErrInvalidInput, configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", nodeerrors.ErrInvalidInput, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants Load alone can't enforce via viper defaults.
func (c *Config) Validate() error {
	if c.Mode != "pow" && c.Mode != "pos" {
		return fmt.Errorf("%w: mode must be \"pow\" or \"pos\", got %q", nodeerrors.ErrInvalidInput, c.Mode)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", nodeerrors.ErrInvalidInput)
	}
	if c.PoS.FinalityThreshold <= 0 || c.PoS.FinalityThreshold > 1 {
		return fmt.Errorf("%w: pos.finality_threshold must be in (0, 1], got %f", nodeerrors.ErrInvalidInput, c.PoS.FinalityThreshold)
	}
	return nil
}

// PoSConfig builds an internal/pos.Config from the resolved settings.
func (c *Config) PoSConfig() pos.Config {
	return pos.Config{
		MinStake:          types.FromFloat64(c.PoS.MinStake),
		MaxValidators:     c.PoS.MaxValidators,
		EpochDuration:     c.PoS.EpochDuration,
		FinalityThreshold: c.PoS.FinalityThreshold,
		JailDuration:      c.PoS.JailDuration,
	}
}
