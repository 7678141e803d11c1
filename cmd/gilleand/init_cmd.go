package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"gillean.network/gillean/internal/config"
)

var (
	initDataDir string
	initMode    string
)

var initCmd = &cobra.Command{
	Use:   "init <env>",
	Short: "Create a data directory and default gillean.yaml for an environment",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initDataDir, "data-dir", "", "data directory (default: ./data/<env>)")
	initCmd.Flags().StringVar(&initMode, "mode", "pos", "consensus mode: pos or pow")
}

func runInit(cmd *cobra.Command, args []string) error {
	env := args[0]
	dataDir := initDataDir
	if dataDir == "" {
		dataDir = filepath.Join("data", env)
	}

	v := viper.New()
	v.Set("data_dir", dataDir)
	v.Set("mode", initMode)
	cfg, err := config.Load(v, "")
	if err != nil {
		return fmt.Errorf("build default config for environment %q: %w", env, err)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dataDir, err)
	}

	path := filepath.Join(dataDir, "gillean.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing config at %s", path)
	}

	data, err := yaml.Marshal(configFileMap(cfg))
	if err != nil {
		return fmt.Errorf("render config for environment %q: %w", env, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "initialized %q environment: data_dir=%s config=%s mode=%s\n", env, dataDir, path, cfg.Mode)
	return nil
}

// configFileMap renders cfg with the same snake_case keys config.Load
// expects via mapstructure, so a file this command writes round-trips
// through Load without translation. yaml.v3 has no notion of
// mapstructure tags, so the struct can't be marshaled directly.
func configFileMap(cfg *config.Config) map[string]any {
	return map[string]any{
		"data_dir":    cfg.DataDir,
		"log_level":   cfg.LogLevel,
		"tls_cert":    cfg.TLSCert,
		"tls_key":     cfg.TLSKey,
		"listen_addr": cfg.ListenAddr,
		"mode":        cfg.Mode,
		"pow": map[string]any{
			"difficulty":   cfg.PoW.Difficulty,
			"max_attempts": cfg.PoW.MaxAttempts,
		},
		"pos": map[string]any{
			"min_stake":          cfg.PoS.MinStake,
			"max_validators":     cfg.PoS.MaxValidators,
			"epoch_duration":     cfg.PoS.EpochDuration.String(),
			"finality_threshold": cfg.PoS.FinalityThreshold,
			"jail_duration":      cfg.PoS.JailDuration.String(),
		},
	}
}
