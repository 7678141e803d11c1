package main

import (
	"fmt"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gillean.network/gillean/internal/config"
)

var stopTimeout time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running gilleand node to shut down and wait for it to exit",
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().String("data-dir", "", "override config's data_dir")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 30*time.Second, "how long to wait for the node to exit before giving up")
}

func runStop(cmd *cobra.Command, args []string) error {
	v := newViper()
	_ = v.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	pid, err := readPID(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("no running node found under %s: %w", cfg.DataDir, err)
	}
	if !processAlive(pid) {
		removePIDFile(cfg.DataDir)
		return fmt.Errorf("pid %d recorded at %s is not running (stale pid file removed)", pid, cfg.DataDir)
	}

	proc, err := findProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent SIGTERM to pid %d, waiting up to %s...\n", pid, stopTimeout)

	deadline := time.Now().Add(stopTimeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			fmt.Fprintf(cmd.OutOrStdout(), "node stopped\n")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("node did not stop within %s", stopTimeout)
}
