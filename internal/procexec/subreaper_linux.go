//go:build linux

package procexec

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// EnableChildSubreaper marks the calling process as a child subreaper: while
// it is alive, any of its descendants orphaned by their own parent's exit
// (for example, a process started by a worker that exits first) is
// reparented to it instead of to init. It has no effect on the workers
// themselves, whose direct parent is the supervisor; if the supervisor
// dies they are reparented to init (or an outer subreaper), which is what
// the worker's getppid() == 1 orphan check looks for.
func EnableChildSubreaper() error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return errors.Wrap(err, "procexec: set child subreaper")
	}
	return nil
}
