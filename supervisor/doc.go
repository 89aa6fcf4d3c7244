// Package supervisor is the core of forkpool: a long-running daemon that
// dispatches application-defined jobs to a bounded pool of forked worker
// processes.
//
// Process Model
//
// Go cannot safely fork(2) a multi-threaded process without an immediate
// exec, so "forking a worker" here means re-executing the supervisor's own
// binary with a hidden environment marker. The freshly started process
// notices the marker in its own startup path (via Bootstrap), reads its job
// payload from an inherited pipe, runs Application.ChildRun, and exits — it
// never re-enters the dispatcher loop. From the outside this is
// indistinguishable from a true fork: a new PID, a new address space, and
// its own file descriptor table save for the handoff pipe.
//
// Shared State
//
// One process — the supervisor — owns a fixed-layout shared memory region
// (mmap'd from a regular file so any worker that can open the file can map
// it too) holding the run status, the active worker count, a fixed-capacity
// slot occupancy table, and an application key/value map. A single
// gofrs/flock file lock, keyed off the same derived path as the region
// file, serializes every multi-field mutation across the supervisor and
// its workers.
//
// Identity and Single-Instance Enforcement
//
// A plain-text PID file at a configurable path is used the traditional
// Unix way: on startup, an existing file's PID is probed with signal 0; a
// live PID aborts startup, a dead one is removed and replaced. The file is
// deleted as the last step of a clean shutdown, never touched by workers.
package supervisor
