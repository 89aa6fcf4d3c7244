package supervisor

// slotTable tracks the supervisor-local half of the slot table (owning
// PIDs) alongside the IPC region's shared occupancy bits. Every method
// that touches more than the local pid map assumes the caller holds the
// region mutex; the dispatcher and SetMaxWorkers take it before calling in.
type slotTable struct {
	region *ipcRegion
	pids   []int // pids[i] == 0 means slot i is unoccupied or mid-fork
	cap    int   // current max_workers; len(pids) may exceed this transiently
}

func newSlotTable(region *ipcRegion, maxWorkers int) *slotTable {
	t := &slotTable{region: region, cap: maxWorkers, pids: make([]int, maxWorkers)}
	for i := 0; i < maxWorkers; i++ {
		region.SetSlotOccupied(i, false)
	}
	return t
}

// len returns the current length of the local slot table, which may
// transiently exceed cap right after a shrink until occupied over-range
// slots drain.
func (t *slotTable) len() int { return len(t.pids) }

// assign scans in index order, within the current cap, for the first
// unoccupied slot and reserves it, recording pid 0 until the fork
// completes and fills it in. It returns (-1, false) if the table has no
// free slot right now — spec.md treats that as "keep waiting", not an
// error. Slots past cap are never handed out, even transiently after a
// shrink while they still drain an old worker.
func (t *slotTable) assign() (slot int, ok bool) {
	for i := 0; i < t.cap; i++ {
		if !t.region.SlotOccupied(i) {
			t.region.SetSlotOccupied(i, true)
			t.pids[i] = 0
			return i, true
		}
	}
	return -1, false
}

// setPID records the real PID for a slot once fork() has returned it.
func (t *slotTable) setPID(slot, pid int) {
	t.pids[slot] = pid
}

// pidOf returns the locally tracked PID for slot, or 0 if unknown.
func (t *slotTable) pidOf(slot int) int {
	if slot < 0 || slot >= len(t.pids) {
		return 0
	}
	return t.pids[slot]
}

// release marks slot unoccupied and clears its local PID, then compacts
// trailing unoccupied slots down to the current cap.
func (t *slotTable) release(slot int) {
	t.region.SetSlotOccupied(slot, false)
	if slot >= 0 && slot < len(t.pids) {
		t.pids[slot] = 0
	}
	t.compact()
}

// slotForPID finds the slot currently attributed to pid, or (-1, false).
func (t *slotTable) slotForPID(pid int) (int, bool) {
	for i, p := range t.pids {
		if p == pid {
			return i, true
		}
	}
	return -1, false
}

// occupiedPIDs returns every currently tracked worker PID, in slot order,
// skipping slots whose fork has not yet completed (pid == 0).
func (t *slotTable) occupiedPIDs() []int {
	var pids []int
	for _, p := range t.pids {
		if p != 0 {
			pids = append(pids, p)
		}
	}
	return pids
}

// setCap changes the configured cap. If growing, the local and IPC tables
// gain unoccupied trailing entries immediately. If shrinking, occupied
// slots past the new cap are left alone — spec.md deliberately does not
// kill running workers on a shrink — and compact() catches up once they
// drain.
func (t *slotTable) setCap(n int) {
	if n == t.cap {
		return
	}

	if n > len(t.pids) {
		old := len(t.pids)
		grown := make([]int, n)
		copy(grown, t.pids)
		t.pids = grown
		for i := old; i < n; i++ {
			t.region.SetSlotOccupied(i, false)
		}
	}

	t.cap = n
	t.compact()
}

// compact drops trailing unoccupied slots down to cap. Occupied slots past
// cap persist until release() is called for them, at which point compact
// runs again and removes them if they were the new tail.
func (t *slotTable) compact() {
	for len(t.pids) > t.cap && !t.region.SlotOccupied(len(t.pids)-1) {
		t.pids = t.pids[:len(t.pids)-1]
	}
}
