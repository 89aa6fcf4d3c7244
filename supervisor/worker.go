package supervisor

import (
	"io"
	"os"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/relaypath/forkpool/internal/journal"
)

// envWorkerSlot, when set, marks a re-exec'd process as a worker rather
// than a fresh supervisor invocation, and names the slot it was forked
// for. See doc.go's "Process Model" note.
const envWorkerSlot = "FORKPOOL_WORKER_SLOT"

func workerEnv(slot int) string {
	return envWorkerSlot + "=" + strconv.Itoa(slot)
}

// IsWorkerProcess reports whether the current process is a re-exec'd
// worker rather than a fresh supervisor invocation. An embedding program's
// main() can check this before doing per-command setup (opening watches,
// starting background goroutines) that a worker, which Bootstrap will
// immediately hand off to runWorkerProcess, has no use for.
func IsWorkerProcess() bool {
	_, ok := workerSlotFromEnv()
	return ok
}

func workerSlotFromEnv() (int, bool) {
	v, ok := os.LookupEnv(envWorkerSlot)
	if !ok {
		return 0, false
	}
	slot, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return slot, true
}

// jobPipeFD is the file descriptor a spawned worker reads its Job payload
// from, positioned right after stdin/stdout/stderr in procexec.Spawn's
// Files list.
const jobPipeFD = 3

// runWorkerProcess is the entry point for a re-exec'd worker: it reads its
// job off the handoff pipe, attaches the IPC region, runs the job, and
// exits. It never returns.
func runWorkerProcess(app Application, cfg Config) {
	slot, ok := workerSlotFromEnv()
	if !ok {
		fatal(cfg.Logger, errors.New("supervisor: runWorkerProcess called without a worker slot"))
	}

	pipe := os.NewFile(jobPipeFD, "forkpool-job")
	job, err := io.ReadAll(pipe)
	pipe.Close()
	if err != nil {
		fatal(cfg.Logger, errors.Wrap(err, "supervisor: read job payload"))
	}

	paths, err := deriveIPCPaths(cfg.PIDFilePath)
	if err != nil {
		fatal(cfg.Logger, err)
	}

	region, err := attachRegion(paths)
	if err != nil {
		fatal(cfg.Logger, err)
	}

	code := RunWorkerBody(app, slot, Job(job), region, cfg.Logger, os.Getppid, func() {
		syscall.Kill(os.Getpid(), syscall.SIGKILL)
	})

	region.Close()
	os.Exit(code)
}

// RunWorkerBody is the testable core of the worker runtime (spec.md §4.3):
// run the job, then either perform orphan suicide (parent PID is 1, the
// original supervisor died) without touching the IPC region, or release
// the slot normally. getppid and selfDestruct are injected so tests never
// need a real re-exec or a real SIGKILL against the test binary.
func RunWorkerBody(app Application, slot int, job Job, region *ipcRegion, logger Logger, getppid func() int, selfDestruct func()) (exitCode int) {
	code := runChildRunRecovered(app, job, slot)

	if getppid() == 1 {
		// The supervisor that forked us is gone and we were reparented to
		// init. A replacement supervisor may have already recreated this
		// same IPC region; touching it now would corrupt state that
		// belongs to a pool we are no longer part of. Self-destruct
		// instead of returning normally.
		if logger != nil {
			logger.LogEvent(&journal.EventOrphanSuicide{Slot: slot, PID: os.Getpid()})
		}
		selfDestruct()
		return 1
	}

	if err := region.Lock(); err == nil {
		region.SetSlotOccupied(slot, false)
		region.DecrActiveCount()
		region.Unlock()
	}

	return code
}

func runChildRunRecovered(app Application, job Job, slot int) (code int) {
	defer func() {
		if r := recover(); r != nil {
			code = -1
		}
	}()
	return app.ChildRun(job, slot)
}

func fatal(logger Logger, err error) {
	if logger != nil {
		logger.Log(journal.Error, err.Error(), nil)
	}
	os.Exit(1)
}
