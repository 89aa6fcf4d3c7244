package main

import (
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/relaypath/forkpool/examples/filescanner"
	"github.com/relaypath/forkpool/internal/config"
	"github.com/relaypath/forkpool/internal/journal"
	"github.com/relaypath/forkpool/supervisor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the supervisor",
	Long: "Start the supervisor: daemonize, acquire the lock file, and dispatch jobs " +
		"until a terminating signal or a graceful shutdown request is processed. " +
		"A re-exec of this same command line, run by the dispatcher to fork a worker, " +
		"is detected automatically and never reaches this point.",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cfg, err := buildFromConfig(configPath)
		if err != nil {
			return err
		}
		defer cfg.Logger.Close()

		if fs, ok := app.(*filescanner.Application); ok && !supervisor.IsWorkerProcess() {
			fs.Start()
			defer fs.Stop()
		}

		return supervisor.Bootstrap(app, cfg)
	},
}

// buildFromConfig loads the TOML config at path and constructs the
// supervisor.Config plus the demo filescanner Application it drives.
// An embedding program wiring in its own Application would replace only
// this function; everything else in this file is generic.
func buildFromConfig(path string) (supervisor.Application, supervisor.Config, error) {
	file, err := config.Load(path)
	if err != nil {
		return nil, supervisor.Config{}, err
	}

	logger, err := buildLogger(file.Supervisor)
	if err != nil {
		return nil, supervisor.Config{}, err
	}

	cfg := supervisor.DefaultConfig()
	cfg.Logger = logger
	cfg.PIDFilePath = file.Supervisor.PIDFilePath
	if cfg.PIDFilePath == "" {
		cfg.PIDFilePath = supervisor.DefaultPIDFilePath("forkpoold")
	}
	if file.Supervisor.MaxWorkers > 0 {
		cfg.MaxWorkers = file.Supervisor.MaxWorkers
	}
	cfg.IdleSleep = file.Supervisor.IdleSleep()
	if file.Supervisor.NoSlotSleepUS > 0 {
		cfg.NoSlotSleep = time.Duration(file.Supervisor.NoSlotSleepUS) * time.Microsecond
	}
	cfg.PropagateSignals = file.Supervisor.PropagateSignals
	cfg.UIDToRunAs = file.Supervisor.UIDToRunAs

	if len(file.Supervisor.HandledSignals) > 0 {
		sigs := make([]syscall.Signal, 0, len(file.Supervisor.HandledSignals))
		for _, name := range file.Supervisor.HandledSignals {
			sig, err := parseSignalName(name)
			if err != nil {
				return nil, supervisor.Config{}, err
			}
			sigs = append(sigs, sig)
		}
		cfg.HandledSignals = sigs
	}

	dir := file.App["watch_dir"]
	if dir == "" {
		dir = "."
	}
	app := filescanner.New(dir, logger)

	return app, cfg, nil
}

func buildLogger(s config.SupervisorSection) (journal.Logger, error) {
	minLevel := journal.ParseLevel(s.LogMinLevel)
	if s.LogPath == "" {
		return journal.NewWriterLogger(os.Stderr, minLevel), nil
	}
	logger, err := journal.NewFileLogger(s.LogPath, minLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "cmd/forkpoold: open log file %q", s.LogPath)
	}
	return logger, nil
}

func parseSignalName(name string) (syscall.Signal, error) {
	switch name {
	case "SIGTERM", "TERM":
		return syscall.SIGTERM, nil
	case "SIGQUIT", "QUIT":
		return syscall.SIGQUIT, nil
	case "SIGHUP", "HUP":
		return syscall.SIGHUP, nil
	case "SIGINT", "INT":
		return syscall.SIGINT, nil
	case "SIGUSR1", "USR1":
		return syscall.SIGUSR1, nil
	case "SIGUSR2", "USR2":
		return syscall.SIGUSR2, nil
	default:
		if n, err := strconv.Atoi(name); err == nil {
			return syscall.Signal(n), nil
		}
		return 0, errors.Errorf("cmd/forkpoold: unknown signal name %q", name)
	}
}
