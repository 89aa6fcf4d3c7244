package supervisor

import "github.com/pkg/errors"

var (
	// ErrAlreadyRunning is returned by Run (and so by Bootstrap) when the
	// lock file names a live PID.
	ErrAlreadyRunning = errors.New("supervisor: another instance is already running")

	// ErrInvalidMaxWorkers is returned by SetMaxWorkers(n) for n < 1.
	ErrInvalidMaxWorkers = errors.New("supervisor: max_workers must be >= 1")

	// ErrAppVarTooLarge is returned by SetAppVar when the encoded directory
	// would exceed the region's fixed app-var capacity.
	ErrAppVarTooLarge = errors.New("supervisor: app-var directory exceeds region capacity")

	// ErrNotFound is returned by GetAppVar for an unset key.
	ErrNotFound = errors.New("supervisor: app-var not set")
)
