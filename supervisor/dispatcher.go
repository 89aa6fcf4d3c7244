package supervisor

import (
	"syscall"
	"time"

	"github.com/relaypath/forkpool/internal/journal"
	"github.com/relaypath/forkpool/internal/procexec"
)

// dispatcher is the scheduler state machine described in spec.md §4.2:
// reap finished workers, service the latched signal, wait for a free
// slot, ask the application for the next job, fork a worker for it, and
// settle briefly before the next pass. reap, fork and kill are function
// fields rather than direct calls to procexec/syscall so tests can drive
// the state machine without a real re-exec, a real child process, or a
// real signal delivery.
type dispatcher struct {
	sup  *Supervisor
	reap func() (procexec.ExitStatus, bool, error)
	fork func(slot int, job Job) (pid int, err error)
	kill func(pid int, sig syscall.Signal)
}

func newDispatcher(s *Supervisor) *dispatcher {
	return &dispatcher{
		sup:  s,
		reap: procexec.ReapAny,
		fork: s.forkWorker,
		kill: relaySignal,
	}
}

// runOnce executes a single pass of the loop. stop is true once the run
// status has become StatusTerminate and no more passes should run; err is
// non-nil only for a condition that ends the loop: a GetNextJob error or a
// failure to acquire the IPC mutex (stop is true in both cases).
func (d *dispatcher) runOnce() (stop bool, err error) {
	s := d.sup

	d.drainExits()

	if sig, ok := s.latch.take(); ok {
		d.handleSignal(sig)
	}

	if s.region.RunStatus() == StatusTerminate {
		return true, nil
	}

	if err := s.region.Lock(); err != nil {
		return true, err
	}
	if s.region.ActiveCount() >= s.cfg.MaxWorkers {
		s.region.Unlock()
		time.Sleep(s.cfg.NoSlotSleep)
		return false, nil
	}
	slot, ok := s.slots.assign()
	s.region.Unlock()

	if !ok {
		time.Sleep(s.cfg.NoSlotSleep)
		return false, nil
	}

	job, jobErr := s.app.GetNextJob(slot)
	if jobErr != nil {
		s.region.Lock()
		s.slots.release(slot)
		s.region.SetRunStatus(StatusTerminate)
		s.region.Unlock()
		return true, jobErr
	}

	if job == nil {
		s.region.Lock()
		s.slots.release(slot)
		s.region.Unlock()
		time.Sleep(s.cfg.IdleSleep)
		return false, nil
	}

	pid, spawnErr := d.fork(slot, job)

	s.region.Lock()
	if spawnErr != nil {
		s.slots.release(slot)
	} else {
		s.slots.setPID(slot, pid)
		s.region.IncrActiveCount()
	}
	s.region.Unlock()

	if spawnErr != nil {
		s.cfg.Logger.LogEvent(&journal.EventWorkerSpawnError{Slot: slot, Reason: spawnErr.Error()})
		time.Sleep(s.cfg.NoSlotSleep)
		return false, nil
	}

	s.cfg.Logger.LogEvent(&journal.EventWorkerSpawned{Slot: slot, PID: pid})
	time.Sleep(s.cfg.SettlePause)
	return false, nil
}

// drainExits reaps every worker that has exited since the last pass.
// ErrNoChildren just means the pool is currently empty; it is not an
// error condition worth surfacing.
func (d *dispatcher) drainExits() {
	s := d.sup
	for {
		st, ok, err := d.reap()
		if err != nil {
			if err != procexec.ErrNoChildren {
				s.region.Lock()
				s.region.SetRunStatus(StatusTerminate)
				s.region.Unlock()
				s.cfg.Logger.LogEvent(&journal.EventWarning{Component: "reap", Error: err.Error()})
			}
			return
		}
		if !ok {
			return
		}

		s.region.Lock()
		slot, found := s.slots.slotForPID(st.PID)
		if found {
			s.slots.release(slot)
			s.region.DecrActiveCount()
		}
		s.region.Unlock()

		if found {
			s.cfg.Logger.LogEvent(&journal.EventWorkerExited{
				Slot: slot, PID: st.PID, ExitCode: st.Code, Signaled: st.Signaled,
			})
		}
	}
}

// handleSignal processes a single latched signal: SIGHUP reloads
// configuration, anything else in HandledSignals begins graceful
// termination, optionally propagating first.
func (d *dispatcher) handleSignal(sig syscall.Signal) {
	s := d.sup

	if sig == syscall.SIGHUP {
		if s.cfg.PropagateSignals {
			for _, pid := range s.slots.occupiedPIDs() {
				d.kill(pid, syscall.SIGHUP)
			}
		}

		errMsg := ""
		if err := s.app.LoadConfig(); err != nil {
			errMsg = err.Error()
		}
		s.cfg.Logger.LogEvent(&journal.EventConfigReloaded{Error: errMsg})
		return
	}

	if s.cfg.PropagateSignals {
		for _, pid := range s.slots.occupiedPIDs() {
			d.kill(pid, sig)
		}
	}

	s.region.Lock()
	s.region.SetRunStatus(StatusTerminate)
	s.region.Unlock()
	s.termSignal = sig

	s.cfg.Logger.LogEvent(&journal.EventSignalReceived{
		Signal: sig.String(), Propagated: s.cfg.PropagateSignals, Terminating: true,
	})
}

// relaySignal delivers sig to pid, retrying once after a 1ms gap if the
// first attempt fails — spec.md §4.4's two-attempt relay.
func relaySignal(pid int, sig syscall.Signal) {
	if err := syscall.Kill(pid, sig); err == nil {
		return
	}
	time.Sleep(time.Millisecond)
	syscall.Kill(pid, sig)
}
