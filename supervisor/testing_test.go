package supervisor

import "github.com/relaypath/forkpool/internal/journal"

// recordingLogger is a minimal in-memory Logger for tests that need to
// assert which events were emitted without touching the filesystem.
type recordingLogger struct {
	events []journal.Event
}

func (l *recordingLogger) Log(level journal.Level, msg string, fields map[string]interface{}) error {
	return nil
}

func (l *recordingLogger) LogEvent(ev journal.Event) error {
	l.events = append(l.events, ev)
	return nil
}

func (l *recordingLogger) Reopen() error { return nil }
func (l *recordingLogger) Close() error  { return nil }
