package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
[supervisor]
max_workers = 4
idle_sleep_us = 50000
propagate_signals = true
handled_signals = ["TERM", "QUIT", "HUP"]
pid_file_path = "/var/run/forkpool/demo.pid"
log_path = "/var/log/forkpool/demo.log"
log_min_level = "INFO"

[app]
scan_dir = "/srv/jobs"
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forkpool.toml")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSample(t)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if f.Supervisor.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d, want 4", f.Supervisor.MaxWorkers)
	}
	if !f.Supervisor.PropagateSignals {
		t.Error("PropagateSignals = false, want true")
	}
	if got, want := f.App["scan_dir"], "/srv/jobs"; got != want {
		t.Errorf("app.scan_dir = %q, want %q", got, want)
	}
}

func TestIdleSleepClamp(t *testing.T) {
	s := SupervisorSection{IdleSleepUS: 10}
	if got, want := s.IdleSleep(), 100*time.Microsecond; got != want {
		t.Errorf("IdleSleep() = %v, want %v", got, want)
	}

	s = SupervisorSection{IdleSleepUS: 250000}
	if got, want := s.IdleSleep(), 250*time.Millisecond; got != want {
		t.Errorf("IdleSleep() = %v, want %v", got, want)
	}
}

func TestLoadRejectsNegativeMaxWorkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[supervisor]\nmax_workers = -1\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load with negative max_workers: expected error, got nil")
	}
}
