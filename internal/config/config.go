// Package config loads forkpool's TOML configuration file, the way
// schwichtgit-kahi loads its own config: a single struct decoded with
// BurntSushi/toml, then validated and clamped before use.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// File is the on-disk shape of a forkpool configuration file.
type File struct {
	Supervisor SupervisorSection `toml:"supervisor"`
	App        map[string]string `toml:"app"`
}

// SupervisorSection mirrors supervisor.Config's tunables.
type SupervisorSection struct {
	MaxWorkers        int      `toml:"max_workers"`
	IdleSleepUS       int64    `toml:"idle_sleep_us"`
	NoSlotSleepUS     int64    `toml:"no_slot_sleep_us"`
	PropagateSignals  bool     `toml:"propagate_signals"`
	HandledSignals    []string `toml:"handled_signals"`
	UIDToRunAs        *int     `toml:"uid_to_run_as"`
	PIDFilePath       string   `toml:"pid_file_path"`
	LogPath           string   `toml:"log_path"`
	LogMinLevel       string   `toml:"log_min_level"`
}

// Load decodes a TOML file at path into a File.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, errors.Wrapf(err, "config: decode %q", path)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	if f.Supervisor.MaxWorkers < 0 {
		return errors.New("config: supervisor.max_workers must be >= 0")
	}
	return nil
}

// IdleSleep returns the configured idle sleep as a time.Duration, clamped to
// the 100µs floor the control surface enforces at runtime too.
func (s SupervisorSection) IdleSleep() time.Duration {
	us := s.IdleSleepUS
	if us < 100 {
		us = 100
	}
	return time.Duration(us) * time.Microsecond
}
