package supervisor

import (
	"os"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/relaypath/forkpool/internal/journal"
	"github.com/relaypath/forkpool/internal/procexec"
)

// Supervisor is a running pool: a lock file, an IPC region, a local slot
// table mirroring the region's occupancy bits, and the signal intake
// feeding the dispatcher loop. Construct one via Bootstrap or Run rather
// than directly.
type Supervisor struct {
	cfg        Config
	app        Application
	lock       *lockFile
	region     *ipcRegion
	slots      *slotTable
	latch      *signalLatch
	intake     *signalIntake
	selfExe    string
	termSignal syscall.Signal // signal to relay to workers during teardown
}

// Bootstrap is the entry point an embedding program's main() should call
// unconditionally and before any of its own flag or subcommand handling.
// If the current process is a re-exec'd worker (see doc.go's process
// model note), Bootstrap runs the worker body and calls os.Exit; it never
// returns in that case, so anything after the call in a worker process is
// dead code by construction. Otherwise it runs the supervisor to
// completion and returns once it has cleanly torn down.
func Bootstrap(app Application, cfg Config) error {
	if _, ok := workerSlotFromEnv(); ok {
		runWorkerProcess(app, cfg)
		panic("supervisor: runWorkerProcess returned")
	}
	return Run(app, cfg)
}

// Run performs spec.md §4.1's full lifecycle in the current process:
// acquire the lock file, daemonize, create the IPC region, install signal
// handling, load the application's initial configuration, run the
// dispatcher loop until the run status becomes TERMINATE, and tear down.
// The lock file is acquired in the foreground, before daemonize's re-exec,
// so a second instance fails loudly — nonzero exit, message on stderr —
// instead of only inside the already-detached child. The parent half of
// daemonize returns nil immediately after printing the child's PID; only
// the detached child runs the pool.
func Run(app Application, cfg Config) error {
	if err := cfg.normalize(); err != nil {
		return err
	}

	var lf *lockFile
	if !isDaemonizedChild() {
		var err error
		lf, err = acquireLockFile(cfg.PIDFilePath, cfg.Logger)
		if err != nil {
			return err
		}
	}

	isChild, err := daemonize()
	if err != nil {
		if lf != nil {
			lf.remove()
		}
		return err
	}
	if !isChild {
		// The reserved lock file is now the detached child's to finish
		// claiming; this process is done.
		return nil
	}

	sup, err := newSupervisor(app, cfg)
	if err != nil {
		return err
	}
	defer sup.teardown()

	return sup.run()
}

// newSupervisor finishes what Run's foreground acquireLockFile call
// reserved: the lock file already exists at cfg.PIDFilePath by the time
// this runs (in the re-exec'd child, or in the original process for a
// build without daemonization), so it only needs its real PID written in.
func newSupervisor(app Application, cfg Config) (*Supervisor, error) {
	lf := &lockFile{path: cfg.PIDFilePath}

	if err := lf.writePID(os.Getpid()); err != nil {
		lf.remove()
		return nil, err
	}

	if cfg.UIDToRunAs != nil && *cfg.UIDToRunAs != os.Geteuid() {
		if err := lf.chown(*cfg.UIDToRunAs); err != nil {
			lf.remove()
			return nil, err
		}
		if err := setUID(*cfg.UIDToRunAs); err != nil {
			lf.remove()
			return nil, err
		}
	}

	cfg.Logger.LogEvent(&journal.EventLockAcquired{Path: cfg.PIDFilePath, PID: os.Getpid()})

	paths, err := deriveIPCPaths(cfg.PIDFilePath)
	if err != nil {
		lf.remove()
		return nil, err
	}

	region, err := createRegion(paths)
	if err != nil {
		lf.remove()
		return nil, err
	}
	region.SetRunStatus(StatusRun)

	self, err := os.Executable()
	if err != nil {
		region.Close()
		lf.remove()
		return nil, errors.Wrap(err, "supervisor: resolve own executable")
	}

	if err := procexec.EnableChildSubreaper(); err != nil {
		cfg.Logger.LogEvent(&journal.EventWarning{Component: "subreaper", Error: err.Error()})
	}

	latch := &signalLatch{}
	intake := newSignalIntake(latch, cfg.HandledSignals)

	if err := app.LoadConfig(); err != nil {
		intake.Close()
		region.Close()
		lf.remove()
		return nil, errors.Wrap(err, "supervisor: initial config load")
	}

	return &Supervisor{
		cfg:        cfg,
		app:        app,
		lock:       lf,
		region:     region,
		slots:      newSlotTable(region, cfg.MaxWorkers),
		latch:      latch,
		intake:     intake,
		selfExe:    self,
		termSignal: syscall.SIGTERM,
	}, nil
}

func (s *Supervisor) run() error {
	d := newDispatcher(s)
	for {
		stop, err := d.runOnce()
		if stop {
			return err
		}
	}
}

// forkWorker re-execs the running binary with a worker-slot marker,
// handing job to it over the handoff pipe. It is dispatcher's default
// fork implementation; tests substitute their own.
func (s *Supervisor) forkWorker(slot int, job Job) (int, error) {
	proc, err := procexec.Spawn(procexec.SpawnRequest{
		Executable: s.selfExe,
		Argv:       os.Args,
		Env:        append(os.Environ(), workerEnv(slot)),
		Payload:    []byte(job),
	})
	if err != nil {
		return 0, err
	}
	return proc.PID(), nil
}

// teardown implements spec.md §5's wait_all_workers_blocking(): optionally
// relay the signal that triggered shutdown (SIGTERM if shutdown was not
// signal-driven) to every known worker, then block — with no timeout —
// reaping until none remain, before releasing the IPC region and lock
// file. Long-running jobs are expected to finish; there is no forced
// escalation to SIGKILL.
func (s *Supervisor) teardown() {
	if s.cfg.PropagateSignals {
		for _, pid := range s.slots.occupiedPIDs() {
			relaySignal(pid, s.termSignal)
		}
	}

	for len(s.slots.occupiedPIDs()) > 0 {
		st, ok, err := procexec.ReapAny()
		if err != nil || !ok {
			time.Sleep(s.cfg.NoSlotSleep)
			continue
		}
		if slot, found := s.slots.slotForPID(st.PID); found {
			s.slots.release(slot)
		}
	}

	s.intake.Close()
	s.region.Close()
	s.lock.remove()
	s.cfg.Logger.LogEvent(&journal.EventShutdown{Clean: true})
	s.cfg.Logger.Close()
}
