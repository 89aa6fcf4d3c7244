package supervisor

import (
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// RunStatus is the monotonic run/terminate flag stored in the IPC region.
type RunStatus byte

const (
	StatusRun RunStatus = iota
	StatusTerminate
)

func (s RunStatus) String() string {
	if s == StatusTerminate {
		return "TERMINATE"
	}
	return "RUN"
}

// minIdleSleep is the floor spec.md's boundary behavior requires:
// set_idle_sleep(0) stores 100µs, not 0.
const minIdleSleep = 100 * time.Microsecond

// Config configures a Supervisor at construction. Fields correspond
// directly to spec.md's SupervisorConfig entity.
type Config struct {
	// MaxWorkers is the initial slot table size. Must be >= 1.
	MaxWorkers int

	// IdleSleep is how long the dispatcher sleeps after GetNextJob reports
	// nothing to do. Clamped to a 100µs floor.
	IdleSleep time.Duration

	// NoSlotSleep is the poll interval while waiting for a free slot or a
	// worker exit. spec.md fixes this at 100µs; it is exposed here so tests
	// can shorten it.
	NoSlotSleep time.Duration

	// SettlePause is the deliberate yield after a successful fork, before
	// the next reap pass. spec.md fixes this at 20µs.
	SettlePause time.Duration

	// PropagateSignals controls whether TERM/QUIT/HUP/other signals
	// received by the supervisor are relayed to known worker PIDs.
	PropagateSignals bool

	// HandledSignals is the set of signals the supervisor's intake
	// installs handlers for. Defaults to TERM, QUIT, HUP.
	HandledSignals []syscall.Signal

	// UIDToRunAs, if non-nil and different from the current effective
	// UID, is switched to after the lock file is created.
	UIDToRunAs *int

	// PIDFilePath is the lock file's path. Defaults to
	// "/var/run/forkpool/<name>.pid" — see DefaultPIDFilePath.
	PIDFilePath string

	// RegionCapacity bounds how many slots the IPC region's fixed-layout
	// occupancy table can ever address. MaxWorkers (now or after any
	// SetMaxWorkers call) must not exceed it.
	RegionCapacity int

	// Logger receives structured DAEMON-level lifecycle events plus any
	// leveled messages the core itself emits. Required.
	Logger Logger
}

// DefaultPIDFilePath returns the conventional lock file path for a daemon
// named name.
func DefaultPIDFilePath(name string) string {
	return "/var/run/forkpool/" + name + ".pid"
}

// DefaultConfig returns a Config with spec.md's documented defaults and
// MaxWorkers set to 1. PIDFilePath and Logger are left empty; the caller
// must set them.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:       1,
		IdleSleep:        time.Second,
		NoSlotSleep:      100 * time.Microsecond,
		SettlePause:      20 * time.Microsecond,
		PropagateSignals: false,
		HandledSignals:   []syscall.Signal{syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP},
		RegionCapacity:   maxSlotCapacity,
	}
}

func (c *Config) normalize() error {
	if c.MaxWorkers < 1 {
		return errors.Wrap(ErrInvalidMaxWorkers, "config")
	}
	if c.RegionCapacity <= 0 {
		c.RegionCapacity = maxSlotCapacity
	}
	if c.RegionCapacity > maxSlotCapacity {
		return errors.Errorf("config: region_capacity %d exceeds hard limit %d", c.RegionCapacity, maxSlotCapacity)
	}
	if c.MaxWorkers > c.RegionCapacity {
		return errors.Errorf("config: max_workers %d exceeds region_capacity %d", c.MaxWorkers, c.RegionCapacity)
	}
	if c.IdleSleep < minIdleSleep {
		c.IdleSleep = minIdleSleep
	}
	if c.NoSlotSleep <= 0 {
		c.NoSlotSleep = 100 * time.Microsecond
	}
	if c.SettlePause <= 0 {
		c.SettlePause = 20 * time.Microsecond
	}
	if c.PIDFilePath == "" {
		return errors.New("config: pid_file_path is required")
	}
	if len(c.HandledSignals) == 0 {
		c.HandledSignals = []syscall.Signal{syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP}
	}
	if c.Logger == nil {
		return errors.New("config: logger is required")
	}
	return nil
}
