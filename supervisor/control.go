package supervisor

import (
	"time"

	"github.com/pkg/errors"
	"github.com/relaypath/forkpool/internal/varenc"
)

// The methods in this file are spec.md §4.6's Application Control
// Surface: the handful of calls an Application's LoadConfig or ChildRun
// (via whatever channel the embedder wires up) uses to steer the running
// supervisor.

// SetMaxWorkers changes the slot table's capacity. Running workers past
// the new cap are never killed; they drain naturally and their slots
// disappear on release.
func (s *Supervisor) SetMaxWorkers(n int) error {
	if n < 1 {
		return ErrInvalidMaxWorkers
	}
	if n > s.cfg.RegionCapacity {
		return errors.Errorf("supervisor: max_workers %d exceeds region capacity %d", n, s.cfg.RegionCapacity)
	}

	s.region.Lock()
	defer s.region.Unlock()
	s.cfg.MaxWorkers = n
	s.slots.setCap(n)
	return nil
}

// GetMaxWorkers returns the currently configured slot table capacity.
func (s *Supervisor) GetMaxWorkers() int {
	return s.cfg.MaxWorkers
}

// SetIdleSleep changes how long the dispatcher sleeps after GetNextJob
// reports nothing to do, clamped to the 100µs floor spec.md requires.
func (s *Supervisor) SetIdleSleep(d time.Duration) {
	if d < minIdleSleep {
		d = minIdleSleep
	}
	s.cfg.IdleSleep = d
}

// SetPropagateSignals toggles whether a terminating signal received by
// the supervisor is relayed to its worker pool before shutdown begins.
func (s *Supervisor) SetPropagateSignals(v bool) {
	s.cfg.PropagateSignals = v
}

// GetAppVar decodes and returns the value stored under name, or
// ErrNotFound if it was never set.
func (s *Supervisor) GetAppVar(name string) (interface{}, error) {
	raw, err := s.region.GetAppVarRaw(name, true)
	if err != nil {
		return nil, err
	}
	return varenc.Decode(raw)
}

// SetAppVar encodes value and stores it under name, replacing any
// previous value.
func (s *Supervisor) SetAppVar(name string, value interface{}) error {
	enc, err := varenc.Encode(value)
	if err != nil {
		return err
	}
	return s.region.SetAppVarRaw(name, enc, true)
}

// GetRunStatus returns the region's current run/terminate flag.
func (s *Supervisor) GetRunStatus() RunStatus {
	return s.region.RunStatus()
}

// SetRunStatus sets the region's run/terminate flag directly. Setting
// StatusTerminate is how an Application requests graceful shutdown
// outside of a signal. StatusTerminate is absorbing: once set, a later
// StatusRun is ignored.
func (s *Supervisor) SetRunStatus(status RunStatus) {
	s.region.Lock()
	if s.region.RunStatus() != StatusTerminate {
		s.region.SetRunStatus(status)
	}
	s.region.Unlock()
}

// GetRunningWorkers returns the number of currently occupied slots.
func (s *Supervisor) GetRunningWorkers() int {
	return s.region.ActiveCount()
}

// HasFreeSlot reports whether the dispatcher could fork a new worker
// right now without first waiting for one to exit. This mirrors the
// dispatcher's own gate (spec.md §4.6): active_count < max_workers, not
// mere slot-table occupancy, since occupied over-range slots left behind
// by a shrink must not count as "free" once they drain.
func (s *Supervisor) HasFreeSlot() bool {
	return s.region.ActiveCount() < s.cfg.MaxWorkers
}

// GetPIDFile returns the lock file path this supervisor was configured
// with.
func (s *Supervisor) GetPIDFile() string {
	return s.cfg.PIDFilePath
}
