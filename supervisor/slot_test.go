package supervisor

import (
	"path/filepath"
	"testing"
)

func newTestRegion(t *testing.T) *ipcRegion {
	t.Helper()
	dir := t.TempDir()
	paths := ipcPaths{
		RegionPath: filepath.Join(dir, "region.shm"),
		LockPath:   filepath.Join(dir, "region.lock"),
	}
	region, err := createRegion(paths)
	if err != nil {
		t.Fatalf("createRegion: %v", err)
	}
	t.Cleanup(func() { region.Close() })
	return region
}

func TestSlotTableAssignAndRelease(t *testing.T) {
	region := newTestRegion(t)
	table := newSlotTable(region, 2)

	slotA, ok := table.assign()
	if !ok || slotA != 0 {
		t.Fatalf("assign() = (%d, %v), want (0, true)", slotA, ok)
	}
	table.setPID(slotA, 111)

	slotB, ok := table.assign()
	if !ok || slotB != 1 {
		t.Fatalf("assign() = (%d, %v), want (1, true)", slotB, ok)
	}
	table.setPID(slotB, 222)

	if _, ok := table.assign(); ok {
		t.Fatal("assign() succeeded on a fully occupied table")
	}

	table.release(slotA)
	slotC, ok := table.assign()
	if !ok || slotC != 0 {
		t.Fatalf("assign() after release = (%d, %v), want (0, true)", slotC, ok)
	}
}

func TestSlotTableSlotForPID(t *testing.T) {
	region := newTestRegion(t)
	table := newSlotTable(region, 3)

	slot, _ := table.assign()
	table.setPID(slot, 999)

	found, ok := table.slotForPID(999)
	if !ok || found != slot {
		t.Fatalf("slotForPID(999) = (%d, %v), want (%d, true)", found, ok, slot)
	}

	if _, ok := table.slotForPID(1); ok {
		t.Fatal("slotForPID found a pid that was never assigned")
	}
}

func TestSlotTableSetCapGrowShrink(t *testing.T) {
	region := newTestRegion(t)
	table := newSlotTable(region, 1)

	table.setCap(3)
	if table.len() != 3 {
		t.Fatalf("len() after grow = %d, want 3", table.len())
	}

	table.assign() // occupy slot 0 so the tracked slot lands past the shrunk cap
	slot, ok := table.assign()
	if !ok {
		t.Fatal("assign() failed after grow")
	}
	table.setPID(slot, 5)

	// Shrinking below an occupied slot's index must not evict it.
	table.setCap(1)
	if table.pidOf(slot) != 5 {
		t.Fatalf("pidOf(%d) = %d after shrink, want 5 (occupied slots survive a shrink)", slot, table.pidOf(slot))
	}

	table.release(slot)
	if table.len() != 1 {
		t.Fatalf("len() after release following shrink = %d, want 1 (compact should catch up)", table.len())
	}
}

func TestSlotTableOccupiedPIDsSkipsPendingFork(t *testing.T) {
	region := newTestRegion(t)
	table := newSlotTable(region, 2)

	table.assign() // fork not yet completed, pid stays 0
	slot, _ := table.assign()
	table.setPID(slot, 42)

	pids := table.occupiedPIDs()
	if len(pids) != 1 || pids[0] != 42 {
		t.Fatalf("occupiedPIDs() = %v, want [42]", pids)
	}
}
