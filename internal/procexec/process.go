// Package procexec wraps the handful of raw process-management syscalls the
// supervisor core needs: spawning a worker by re-executing the running
// binary, non-blocking reaping of any exited child, liveness probing by
// signal 0, and signal delivery. Reaping, probing and signalling go through
// golang.org/x/sys/unix, since the higher-level os/os-exec APIs do not
// expose WNOHANG reaping or an unbuffered liveness probe; spawning uses
// os.StartProcess.
package procexec

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrNoChildren is returned by ReapAny when the calling process currently
// has no children at all. spec.md calls this out explicitly as benign.
var ErrNoChildren = errors.New("procexec: no children to reap")

// ExitStatus describes a reaped child.
type ExitStatus struct {
	PID      int
	Code     int
	Signaled bool
	Signal   syscall.Signal
}

// SpawnRequest describes a worker process to start via self re-exec.
type SpawnRequest struct {
	// Executable is the path to re-exec; the supervisor passes the result
	// of os.Executable() (see Supervisor.forkWorker).
	Executable string
	Argv       []string
	Env        []string
	// Payload, if non-nil, is written to a pipe handed to the child as fd 3
	// (Files[3] in the ProcAttr) and closed. The child reads it to EOF.
	Payload []byte
}

// Process is a running (or exited-but-not-yet-reaped) child process.
type Process struct {
	pid int
}

// PID returns the process ID.
func (p *Process) PID() int { return p.pid }

// Signal sends sig to the process.
func (p *Process) Signal(sig syscall.Signal) error {
	if err := unix.Kill(p.pid, sig); err != nil {
		return errors.Wrapf(err, "procexec: signal pid %d", p.pid)
	}
	return nil
}

// Kill sends SIGKILL, the uncatchable signal, to the process.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Spawn re-execs req.Executable with req.Argv/req.Env, handing req.Payload
// to the child over a pipe on fd 3, and returns immediately without
// waiting. The child inherits stdin/stdout/stderr unchanged.
func Spawn(req SpawnRequest) (*Process, error) {
	var extra []*os.File
	var pw *os.File

	if req.Payload != nil {
		pr, w, err := os.Pipe()
		if err != nil {
			return nil, errors.Wrap(err, "procexec: create handoff pipe")
		}
		extra = []*os.File{pr}
		pw = w
		defer pr.Close()
	}

	files := []*os.File{os.Stdin, os.Stdout, os.Stderr}
	files = append(files, extra...)

	attr := &os.ProcAttr{
		Env:   req.Env,
		Files: files,
		Sys: &syscall.SysProcAttr{
			// The worker dies if the supervisor dies before reparenting
			// completes; a worker that survives past that point detects it
			// via getppid() == 1 instead (see supervisor/worker.go).
			Pdeathsig: syscall.SIGTERM,
		},
	}

	proc, err := os.StartProcess(req.Executable, req.Argv, attr)
	if err != nil {
		if pw != nil {
			pw.Close()
		}
		return nil, errors.Wrap(err, "procexec: start process")
	}

	if pw != nil {
		go func() {
			defer pw.Close()
			pw.Write(req.Payload)
		}()
	}

	return &Process{pid: proc.Pid}, nil
}

// ReapAny performs a single non-blocking wait for any exited child,
// equivalent to spec.md's "reap_finished_workers(nonblocking)" primitive.
// ok is false and err is nil when no child has exited since the last call.
// err is ErrNoChildren when the process has no children left at all.
func ReapAny() (status ExitStatus, ok bool, err error) {
	var ws unix.WaitStatus

	pid, waitErr := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
	if waitErr != nil {
		if waitErr == unix.ECHILD {
			return ExitStatus{}, false, ErrNoChildren
		}
		return ExitStatus{}, false, errors.Wrap(waitErr, "procexec: wait4")
	}
	if pid <= 0 {
		return ExitStatus{}, false, nil
	}

	status = ExitStatus{PID: pid}
	switch {
	case ws.Exited():
		status.Code = ws.ExitStatus()
	case ws.Signaled():
		status.Signaled = true
		status.Signal = ws.Signal()
		status.Code = -1
	}

	return status, true, nil
}

// ProbeAlive reports whether pid names a live process, using signal 0
// (which performs permission and existence checks without delivering
// anything). permissionDenied distinguishes "belongs to another user, but
// alive" from "no such process".
func ProbeAlive(pid int) (alive bool, permissionDenied bool, err error) {
	err = unix.Kill(pid, 0)
	switch err {
	case nil:
		return true, false, nil
	case unix.ESRCH:
		return false, false, nil
	case unix.EPERM:
		return true, true, nil
	default:
		return false, false, errors.Wrapf(err, "procexec: probe pid %d", pid)
	}
}
