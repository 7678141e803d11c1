package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "gilleand.pid")
}

func writePIDFile(dataDir string) error {
	path := pidFilePath(dataDir)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file %s: %w", path, err)
	}
	return nil
}

func removePIDFile(dataDir string) {
	_ = os.Remove(pidFilePath(dataDir))
}

// readPID reads and parses the running node's pid from its data
// directory's pid file.
func readPID(dataDir string) (int, error) {
	data, err := os.ReadFile(pidFilePath(dataDir))
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed pid file: %w", err)
	}
	return pid, nil
}

// processAlive reports whether pid names a live process, by sending it
// the null signal (0) per the standard kill(2) liveness-check idiom.
func processAlive(pid int) bool {
	proc, err := findProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// findProcess resolves pid to an *os.Process. On Unix, os.FindProcess
// always succeeds regardless of whether pid is actually running, so
// liveness itself is only ever established by signaling it.
func findProcess(pid int) (*os.Process, error) {
	return os.FindProcess(pid)
}
