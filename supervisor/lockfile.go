package supervisor

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/relaypath/forkpool/internal/journal"
	"github.com/relaypath/forkpool/internal/procexec"
)

// lockFile enforces spec.md's "at most one supervisor per pid_file_path"
// invariant: a plain-text PID file, probed with signal 0 rather than an
// advisory lock, so that the check survives the process that wrote it
// dying uncleanly.
type lockFile struct {
	path string
}

// acquire implements spec.md §4.1 step 1. If the file names a live PID, it
// returns ErrAlreadyRunning without touching anything. If the file names a
// PID this user cannot signal (EPERM), it is conservatively treated as
// live for the same reason. If the file is stale, it is removed before a
// fresh one is created for the caller's own (eventual) PID via write.
func acquireLockFile(path string, logger Logger) (*lockFile, error) {
	if data, err := os.ReadFile(path); err == nil {
		pid, parseErr := parsePID(data)
		if parseErr == nil {
			alive, denied, probeErr := procexec.ProbeAlive(pid)
			if probeErr != nil {
				return nil, errors.Wrapf(probeErr, "supervisor: probe existing lock pid %d", pid)
			}
			if alive || denied {
				return nil, ErrAlreadyRunning
			}

			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "supervisor: remove stale lock file %q", path)
			}
			logger.LogEvent(&journal.EventLockStale{Path: path, OldPID: pid})
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "supervisor: read lock file %q", path)
	}

	if err := os.MkdirAll(dirOf(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "supervisor: create lock file directory")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			// Lost a race with another instance between the stale check and
			// here; treat it the same as "already running".
			return nil, ErrAlreadyRunning
		}
		return nil, errors.Wrapf(err, "supervisor: create lock file %q", path)
	}
	f.Close()

	return &lockFile{path: path}, nil
}

// writePID truncates and rewrites the lock file with pid, spec.md §4.1
// step 3. Failure here is fatal.
func (l *lockFile) writePID(pid int) error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return errors.Wrapf(err, "supervisor: rewrite lock file %q", l.path)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		return errors.Wrapf(err, "supervisor: write pid into lock file %q", l.path)
	}
	return nil
}

// chown changes the lock file's owner, used before switching effective
// UID so the new UID can still remove it on shutdown.
func (l *lockFile) chown(uid int) error {
	if err := os.Chown(l.path, uid, -1); err != nil {
		return errors.Wrapf(err, "supervisor: chown lock file %q", l.path)
	}
	return nil
}

// remove deletes the lock file, the last step of clean teardown.
func (l *lockFile) remove() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "supervisor: remove lock file %q", l.path)
	}
	return nil
}

func parsePID(data []byte) (int, error) {
	s := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, errors.Errorf("supervisor: lock file does not contain a valid pid: %q", s)
	}
	return pid, nil
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}
