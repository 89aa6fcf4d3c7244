package procexec

import (
	"os"
	"testing"
	"time"
)

func TestSpawnAndReap(t *testing.T) {
	proc, err := Spawn(SpawnRequest{
		Executable: "/bin/sh",
		Argv:       []string{"/bin/sh", "-c", "exit 7"},
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, ok, err := ReapAny()
		if err != nil && err != ErrNoChildren {
			t.Fatalf("ReapAny: %v", err)
		}
		if ok && status.PID == proc.PID() {
			if status.Code != 7 {
				t.Errorf("exit code = %d, want 7", status.Code)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting to reap spawned process")
}

func TestSpawnWithPayload(t *testing.T) {
	// The child cats fd 3 into a temp file via /bin/sh input redirection,
	// letting us assert the handoff pipe delivers the payload bytes.
	out, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer out.Close()

	proc, err := Spawn(SpawnRequest{
		Executable: "/bin/sh",
		Argv:       []string{"/bin/sh", "-c", "cat <&3 > " + out.Name()},
		Payload:    []byte("job-payload"),
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, ok, _ := ReapAny()
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	_ = proc

	data, err := os.ReadFile(out.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "job-payload" {
		t.Errorf("payload = %q, want %q", data, "job-payload")
	}
}

func TestProbeAlive(t *testing.T) {
	alive, denied, err := ProbeAlive(os.Getpid())
	if err != nil {
		t.Fatalf("ProbeAlive(self): %v", err)
	}
	if !alive || denied {
		t.Errorf("ProbeAlive(self) = (%v, %v), want (true, false)", alive, denied)
	}

	// PID 1 always exists in any Unix namespace this test runs in, but this
	// process (running unprivileged, in the general case) cannot signal it.
	// We only assert the "not alive" case, which is stable: an implausibly
	// large PID that is very unlikely to be assigned.
	alive, _, err = ProbeAlive(1 << 30)
	if err != nil {
		t.Fatalf("ProbeAlive(huge pid): %v", err)
	}
	if alive {
		t.Error("ProbeAlive(huge pid) = alive, want not alive")
	}
}

func TestReapAnyNoChildren(t *testing.T) {
	// Drain anything left over from other subtests first.
	for {
		_, ok, err := ReapAny()
		if err != nil || !ok {
			break
		}
	}

	_, ok, err := ReapAny()
	if ok {
		t.Fatal("ReapAny reported an exit with no children spawned")
	}
	if err != nil && err != ErrNoChildren {
		t.Fatalf("ReapAny: %v", err)
	}
}
