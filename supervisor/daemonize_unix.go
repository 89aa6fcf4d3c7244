//go:build linux || darwin

package supervisor

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// envDaemonized marks a process as the already-detached child of a prior
// daemonize() call, so it does not re-spawn itself a second time.
const envDaemonized = "FORKPOOL_DAEMONIZED=1"

// daemonize implements spec.md §4.1 step 2: fork, print the child PID and
// exit zero in the parent, and become a session leader in the child. It
// must only be called once the caller has already acquired the lock file
// in the foreground (step 1), so a second-instance failure is reported
// before this ever re-execs. Since Go cannot fork(2) safely (see doc.go),
// "fork" here re-execs the current binary with envDaemonized set; isChild
// is true for the process that should continue starting up.
func daemonize() (isChild bool, err error) {
	if isDaemonizedChild() {
		if _, err := unix.Setsid(); err != nil {
			return false, errors.Wrap(err, "supervisor: setsid")
		}
		return true, nil
	}

	self, err := os.Executable()
	if err != nil {
		return false, errors.Wrap(err, "supervisor: resolve own executable")
	}

	proc, err := os.StartProcess(self, os.Args, &os.ProcAttr{
		Env:   append(os.Environ(), envDaemonized),
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		return false, errors.Wrap(err, "supervisor: spawn daemon child")
	}

	fmt.Fprintln(os.Stdout, proc.Pid)
	return false, nil
}

func isDaemonizedChild() bool {
	for _, e := range os.Environ() {
		if e == envDaemonized {
			return true
		}
	}
	return false
}

// setUID switches the calling process's effective and real UID, used
// after the lock file (and its ownership) are already in place so a
// dropped-privilege supervisor can still remove it on exit.
func setUID(uid int) error {
	if err := unix.Setuid(uid); err != nil {
		return errors.Wrapf(err, "supervisor: setuid %d", uid)
	}
	return nil
}
