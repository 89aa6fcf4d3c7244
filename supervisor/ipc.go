package supervisor

import (
	"encoding/binary"
	"os"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// maxSlotCapacity bounds the fixed-layout occupancy table the IPC region
// pre-allocates. A shared-memory segment cannot grow once mapped, so
// max_workers (now or after any future SetMaxWorkers) is capped at this
// value; 4096 comfortably exceeds any modest-rate worker pool spec.md
// targets.
const maxSlotCapacity = 4096

// appVarsCapacity bounds the serialized size of the app-var directory.
// Composite values must be kept reasonably small; this is documented, not
// silently enforced by truncation — SetAppVar returns ErrAppVarTooLarge.
const appVarsCapacity = 64 * 1024

const (
	offRunStatus  = 0
	offActive     = offRunStatus + 1
	offSlots      = offActive + 4
	offAppVarsLen = offSlots + maxSlotCapacity
	offAppVars    = offAppVarsLen + 4
	regionSize    = offAppVars + appVarsCapacity
)

// ipcRegion is the fixed-layout shared memory segment described in
// spec.md §4.5: run status, active count, slot occupancy, and an
// application key/value directory, all mutated only while mutex is held,
// except single-field reads which may go lock-free.
type ipcRegion struct {
	f     *os.File
	data  []byte
	mutex *flock.Flock

	// owner is true for the process that created (rather than attached to)
	// the region; only the owner removes the backing files on Close.
	owner bool
}

// createRegion creates and zero-initializes a new region at paths, for use
// by the supervisor during lifecycle init.
func createRegion(paths ipcPaths) (*ipcRegion, error) {
	f, err := os.OpenFile(paths.RegionPath, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, errors.Wrapf(err, "supervisor: create region file %q", paths.RegionPath)
	}

	if err := f.Truncate(regionSize); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "supervisor: size region file")
	}

	r, err := mapRegion(f, paths, true)
	if err != nil {
		f.Close()
		return nil, err
	}

	for i := range r.data {
		r.data[i] = 0
	}
	binary.LittleEndian.PutUint32(r.data[offAppVarsLen:], 0)

	return r, nil
}

// attachRegion opens an existing region at paths for use by a worker. It
// never creates or truncates the file: doing so from a worker would
// corrupt state the supervisor owns.
func attachRegion(paths ipcPaths) (*ipcRegion, error) {
	f, err := os.OpenFile(paths.RegionPath, os.O_RDWR, 0640)
	if err != nil {
		return nil, errors.Wrapf(err, "supervisor: attach region file %q", paths.RegionPath)
	}

	r, err := mapRegion(f, paths, false)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func mapRegion(f *os.File, paths ipcPaths, owner bool) (*ipcRegion, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, regionSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "supervisor: mmap region")
	}

	return &ipcRegion{
		f:     f,
		data:  data,
		mutex: flock.New(paths.LockPath),
		owner: owner,
	}, nil
}

// Lock acquires the region's cross-process mutex, blocking until it is
// available. Acquisition failure is loop-fatal per spec.md §7.
func (r *ipcRegion) Lock() error {
	if err := r.mutex.Lock(); err != nil {
		return errors.Wrap(err, "supervisor: lock ipc mutex")
	}
	return nil
}

// Unlock releases the region's cross-process mutex.
func (r *ipcRegion) Unlock() error {
	if err := r.mutex.Unlock(); err != nil {
		return errors.Wrap(err, "supervisor: unlock ipc mutex")
	}
	return nil
}

// Close unmaps the region. The owner also removes the backing files, the
// last step spec.md's teardown requires; a worker (non-owner) leaves them
// alone.
func (r *ipcRegion) Close() error {
	err := unix.Munmap(r.data)
	closeErr := r.f.Close()

	if r.owner {
		os.Remove(r.f.Name())
		if path := r.mutex.Path(); path != "" {
			os.Remove(path)
		}
	}

	if err != nil {
		return errors.Wrap(err, "supervisor: munmap region")
	}
	return errors.Wrap(closeErr, "supervisor: close region file")
}

// RunStatus reads the run/terminate flag. Single-field, safe lock-free.
func (r *ipcRegion) RunStatus() RunStatus {
	return RunStatus(r.data[offRunStatus])
}

// SetRunStatus writes the run/terminate flag. spec.md requires this
// transition be monotonic (RUN -> TERMINATE); callers enforce that, not
// this low-level setter.
func (r *ipcRegion) SetRunStatus(s RunStatus) {
	r.data[offRunStatus] = byte(s)
}

// ActiveCount reads the active worker count. Single-field, safe lock-free.
func (r *ipcRegion) ActiveCount() int {
	return int(binary.LittleEndian.Uint32(r.data[offActive:]))
}

func (r *ipcRegion) setActiveCount(n int) {
	binary.LittleEndian.PutUint32(r.data[offActive:], uint32(n))
}

// IncrActiveCount and DecrActiveCount must only be called with the mutex
// held, since they read-modify-write the same field a concurrent process
// could also be touching.
func (r *ipcRegion) IncrActiveCount() { r.setActiveCount(r.ActiveCount() + 1) }
func (r *ipcRegion) DecrActiveCount() {
	if n := r.ActiveCount(); n > 0 {
		r.setActiveCount(n - 1)
	}
}

// SlotOccupied reads a single slot's occupancy bit. Single-field, safe
// lock-free.
func (r *ipcRegion) SlotOccupied(i int) bool {
	return r.data[offSlots+i] != 0
}

// SetSlotOccupied writes a single slot's occupancy bit.
func (r *ipcRegion) SetSlotOccupied(i int, occupied bool) {
	if occupied {
		r.data[offSlots+i] = 1
	} else {
		r.data[offSlots+i] = 0
	}
}

// appVarEntry is a single decoded directory entry.
type appVarEntry struct {
	Key     string
	Payload []byte
}

// appVars decodes the whole app-var directory. Callers needing a
// consistent view across a read-then-write must hold the mutex.
func (r *ipcRegion) appVars() ([]appVarEntry, error) {
	n := binary.LittleEndian.Uint32(r.data[offAppVarsLen:])
	buf := r.data[offAppVars : offAppVars+int(n)]

	var entries []appVarEntry
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, errors.New("supervisor: corrupt app-var directory (short key length)")
		}
		keyLen := int(binary.LittleEndian.Uint16(buf))
		buf = buf[2:]
		if len(buf) < keyLen+4 {
			return nil, errors.New("supervisor: corrupt app-var directory (short key/value)")
		}
		key := string(buf[:keyLen])
		buf = buf[keyLen:]

		valLen := int(binary.LittleEndian.Uint32(buf))
		buf = buf[4:]
		if len(buf) < valLen {
			return nil, errors.New("supervisor: corrupt app-var directory (short value)")
		}
		val := make([]byte, valLen)
		copy(val, buf[:valLen])
		buf = buf[valLen:]

		entries = append(entries, appVarEntry{Key: key, Payload: val})
	}

	return entries, nil
}

// putAppVars re-encodes and writes back the entire app-var directory, per
// spec.md's "every mutation writes the entire indexed field back" rule.
func (r *ipcRegion) putAppVars(entries []appVarEntry) error {
	size := 0
	for _, e := range entries {
		size += 2 + len(e.Key) + 4 + len(e.Payload)
	}
	if size > appVarsCapacity {
		return ErrAppVarTooLarge
	}

	buf := make([]byte, 0, size)
	for _, e := range entries {
		var tmp [4]byte
		binary.LittleEndian.PutUint16(tmp[:2], uint16(len(e.Key)))
		buf = append(buf, tmp[:2]...)
		buf = append(buf, e.Key...)
		binary.LittleEndian.PutUint32(tmp[:4], uint32(len(e.Payload)))
		buf = append(buf, tmp[:4]...)
		buf = append(buf, e.Payload...)
	}

	binary.LittleEndian.PutUint32(r.data[offAppVarsLen:], uint32(len(buf)))
	copy(r.data[offAppVars:offAppVars+appVarsCapacity], buf)
	return nil
}

// GetAppVarRaw returns the raw stored envelope for name, or ErrNotFound.
// If lock is true, the region mutex is acquired for the duration of the
// read.
func (r *ipcRegion) GetAppVarRaw(name string, lock bool) ([]byte, error) {
	if lock {
		if err := r.Lock(); err != nil {
			return nil, err
		}
		defer r.Unlock()
	}

	entries, err := r.appVars()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Key == name {
			return e.Payload, nil
		}
	}
	return nil, ErrNotFound
}

// SetAppVarRaw stores the raw envelope payload for name, overwriting any
// existing value. If lock is true, the region mutex is acquired for the
// duration of the read-modify-write.
func (r *ipcRegion) SetAppVarRaw(name string, payload []byte, lock bool) error {
	if lock {
		if err := r.Lock(); err != nil {
			return err
		}
		defer r.Unlock()
	}

	entries, err := r.appVars()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].Key == name {
			entries[i].Payload = payload
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, appVarEntry{Key: name, Payload: payload})
	}

	return r.putAppVars(entries)
}
