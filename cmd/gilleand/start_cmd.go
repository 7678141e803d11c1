package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gillean.network/gillean/internal/config"
)

var startProposer string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a gilleand node in the foreground until stopped",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().String("data-dir", "", "override config's data_dir")
	startCmd.Flags().String("mode", "", "override config's mode (pos or pow)")
	startCmd.Flags().StringVar(&startProposer, "validator", "", "this node's validator (PoS) or miner (PoW) identity; empty runs as a follower")
}

func runStart(cmd *cobra.Command, args []string) error {
	v := newViper()
	_ = v.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
	_ = v.BindPFlag("mode", cmd.Flags().Lookup("mode"))
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	n, err := runNode(cfg, startProposer)
	if err != nil {
		return err
	}
	if err := writePIDFile(cfg.DataDir); err != nil {
		n.Stop()
		return err
	}
	defer removePIDFile(cfg.DataDir)

	fmt.Fprintf(cmd.OutOrStdout(), "gilleand running (pid %d), data_dir=%s, listen=%s. Press Ctrl+C to stop.\n", os.Getpid(), cfg.DataDir, cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Fprintf(cmd.OutOrStdout(), "caught signal %v, shutting down...\n", sig)

	n.Stop()
	return nil
}
