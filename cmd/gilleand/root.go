// Command gilleand is the node binary: it wires internal/config,
// internal/storage, internal/shard, internal/network and
// internal/consensus together behind an init/start/stop/status CLI
// surface (§6), built with github.com/spf13/cobra the way
// AKJUS-bsc-erigon and certenIO-certen-validator's cmd/ trees do,
// generalizing the teacher's empower1d single hard-coded main()
// (internal/wiring carried over from the teacher's runNode/main
// sequential-initialization-with-logging shape) into distinct
// subcommands over a bound viper.Viper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "gilleand",
	Short:         "Gillean node: sharded PoS/PoW consensus and state engine",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to gillean.yaml (default: <data-dir>/gillean.yaml)")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

// Execute runs the root command; its returned error (if any) already
// carries whatever diagnostic a subcommand wants printed, per cobra's
// SilenceUsage + returned-error convention (§6: "exit code 0 on
// success, non-zero on validation failure").
func Execute() error {
	return rootCmd.Execute()
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gilleand:", err)
		os.Exit(1)
	}
}

// newViper builds a fresh *viper.Viper for one command invocation, so
// flags-over-env-over-file-over-defaults precedence (§6) holds without
// any shared global state between commands (each cobra.Command gets
// its own viper instance, the pattern named in SPEC_FULL.md §2).
// Callers bind their own flags onto it with v.BindPFlag, mapping each
// flag's CLI name (dashed) onto its config key (the mapstructure
// tag's underscored name).
func newViper() *viper.Viper {
	return viper.New()
}
