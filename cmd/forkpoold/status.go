package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/relaypath/forkpool/internal/config"
	"github.com/relaypath/forkpool/internal/procexec"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the supervisor named by the config is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := config.Load(configPath)
		if err != nil {
			return err
		}
		pidPath := file.Supervisor.PIDFilePath
		if pidPath == "" {
			return errors.New("cmd/forkpoold: supervisor.pid_file_path is not set")
		}

		pid, err := readPIDFile(pidPath)
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "not running (no lock file)")
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "cmd/forkpoold: read pid file %q", pidPath)
		}

		alive, denied, err := procexec.ProbeAlive(pid)
		if err != nil {
			return err
		}
		switch {
		case denied:
			fmt.Fprintf(cmd.OutOrStdout(), "running, pid %d (owned by another user)\n", pid)
		case alive:
			fmt.Fprintf(cmd.OutOrStdout(), "running, pid %d\n", pid)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "not running (stale lock file names pid %d)\n", pid)
		}
		return nil
	},
}

// readPIDFile parses the plain-text PID a lock file names.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Errorf("lock file does not contain a valid pid: %q", data)
	}
	return pid, nil
}
