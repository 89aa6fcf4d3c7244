package supervisor

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// projectID is the single byte mixed into every derived IPC key, so that
// forkpool's regions never collide with an unrelated program that happens
// to hash the same lock-file path.
const projectID = 0x9d

// ipcPaths bundles the two filesystem paths derived from a lock-file path:
// the mmap-backed region file and its flock sidecar.
type ipcPaths struct {
	RegionPath string
	LockPath   string
}

// deriveIPCPaths computes a stable key from pidFilePath plus projectID, the
// way spec.md's §6 "IPC key derivation" requires: the same lock-file path
// always yields the same region name, so a restarted supervisor collides
// with (and can detect) a stale instance's region.
func deriveIPCPaths(pidFilePath string) (ipcPaths, error) {
	dir, err := runtimeDir()
	if err != nil {
		return ipcPaths{}, err
	}

	sum := sha256.Sum256(append([]byte(pidFilePath), projectID))
	key := hex.EncodeToString(sum[:])[:32]

	return ipcPaths{
		RegionPath: filepath.Join(dir, "region-"+key+".shm"),
		LockPath:   filepath.Join(dir, "region-"+key+".lock"),
	}, nil
}

// runtimeDir picks /dev/shm/forkpool when tmpfs-backed shared memory is
// available (the common case on Linux), falling back to a forkpool
// subdirectory of os.TempDir() otherwise. This mirrors the teacher's own
// documented status-directory scheme (os.TempDir() joined with the
// program's name), just rooted in /dev/shm first since the region is
// genuinely meant to be shared memory, not merely a temp file.
func runtimeDir() (string, error) {
	const shm = "/dev/shm"

	base := os.TempDir()
	if info, err := os.Stat(shm); err == nil && info.IsDir() {
		base = shm
	}

	dir := filepath.Join(base, "forkpool")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "supervisor: create runtime dir %q", dir)
	}
	return dir, nil
}
