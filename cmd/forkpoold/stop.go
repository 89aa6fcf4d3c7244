package main

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
	"github.com/relaypath/forkpool/internal/config"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Signal a running supervisor to terminate",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := runningPID(configPath)
		if err != nil {
			return err
		}
		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			return errors.Wrapf(err, "cmd/forkpoold: signal pid %d", pid)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent SIGTERM to pid %d\n", pid)
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Signal a running supervisor to reload its configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := runningPID(configPath)
		if err != nil {
			return err
		}
		if err := syscall.Kill(pid, syscall.SIGHUP); err != nil {
			return errors.Wrapf(err, "cmd/forkpoold: signal pid %d", pid)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent SIGHUP to pid %d\n", pid)
		return nil
	},
}

// runningPID reads the lock file named by the supervisor.pid_file_path in
// the config at path and returns the PID it names.
func runningPID(path string) (int, error) {
	file, err := config.Load(path)
	if err != nil {
		return 0, err
	}
	pidPath := file.Supervisor.PIDFilePath
	if pidPath == "" {
		return 0, errors.New("cmd/forkpoold: supervisor.pid_file_path is not set")
	}

	pid, err := readPIDFile(pidPath)
	if err != nil {
		return 0, errors.Wrapf(err, "cmd/forkpoold: read pid file %q", pidPath)
	}
	return pid, nil
}
