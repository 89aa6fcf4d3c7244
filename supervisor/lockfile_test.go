package supervisor

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireLockFileFreshPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "test.pid")
	logger := &recordingLogger{}

	lf, err := acquireLockFile(path, logger)
	if err != nil {
		t.Fatalf("acquireLockFile: %v", err)
	}
	defer lf.remove()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
}

func TestAcquireLockFileAlreadyRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := acquireLockFile(path, &recordingLogger{}); err != ErrAlreadyRunning {
		t.Fatalf("acquireLockFile err = %v, want ErrAlreadyRunning", err)
	}
}

func TestAcquireLockFileStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	// PID 1<<30 is implausibly large and very unlikely to be assigned.
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	logger := &recordingLogger{}
	lf, err := acquireLockFile(path, logger)
	if err != nil {
		t.Fatalf("acquireLockFile: %v", err)
	}
	defer lf.remove()

	if len(logger.events) != 1 {
		t.Fatalf("len(events) = %d, want 1 (stale lock event)", len(logger.events))
	}
}

func TestLockFileWritePIDAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	lf, err := acquireLockFile(path, &recordingLogger{})
	if err != nil {
		t.Fatalf("acquireLockFile: %v", err)
	}

	if err := lf.writePID(4242); err != nil {
		t.Fatalf("writePID: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "4242" {
		t.Fatalf("lock file contents = %q, want %q", data, "4242")
	}

	if err := lf.remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("lock file still exists after remove")
	}

	// remove must be idempotent.
	if err := lf.remove(); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestParsePIDRejectsGarbage(t *testing.T) {
	if _, err := parsePID([]byte("not-a-pid")); err == nil {
		t.Fatal("parsePID accepted non-numeric contents")
	}
	if _, err := parsePID([]byte("-5")); err == nil {
		t.Fatal("parsePID accepted a non-positive pid")
	}
	pid, err := parsePID([]byte("  123\n"))
	if err != nil || pid != 123 {
		t.Fatalf("parsePID(\"  123\\n\") = (%d, %v), want (123, nil)", pid, err)
	}
}
