package supervisor

import "github.com/relaypath/forkpool/internal/journal"

// Logger is the level-filtered append interface supervisor requires of its
// logging collaborator, plus Reopen for rotation. See internal/journal for
// the concrete implementations forkpool ships.
type Logger = journal.Logger

// Job is the opaque metadata GetNextJob produces and ChildRun consumes. The
// core never inspects its contents; it is handed to the worker verbatim
// over the handoff pipe, so it must already be a self-contained byte
// encoding the application understands.
type Job []byte

// Application is the embedding program's contract with the supervisor.
// GetNextJob and ChildRun are mandatory; LoadConfig has a no-op default via
// NoConfigReload.
type Application interface {
	// LoadConfig is called once during Lifecycle init and again for every
	// HUP the supervisor processes. It may call the Supervisor's control
	// surface (e.g. SetMaxWorkers) to change tunables. It must return
	// promptly: it runs on the dispatcher's only thread of control.
	LoadConfig() error

	// GetNextJob is called by the supervisor immediately before it forks a
	// worker for the given slot. A nil Job means "nothing ready right now"
	// and causes the dispatcher to sleep for IdleSleep. An error is
	// treated as spec.md's "graceful-terminate" condition.
	GetNextJob(slot int) (Job, error)

	// ChildRun executes job in the freshly forked worker process for slot
	// and returns the process's exit code. It runs in its own process;
	// panics are recovered by the worker runtime and converted to exit
	// code -1.
	ChildRun(job Job, slot int) int
}

// NoConfigReload is embeddable by an Application that has nothing to do on
// LoadConfig.
type NoConfigReload struct{}

// LoadConfig implements Application's optional hook as a no-op.
func (NoConfigReload) LoadConfig() error { return nil }
