// Package journal is forkpool's structured logging and audit trail. It
// writes newline-delimited JSON records at one of ten severities (mirroring
// the levels named in the supervisor's external-interface contract) and
// keeps a dedicated Daemon-level stream of structured lifecycle Events,
// adapted from the teacher's own event journal.
package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Logger is the level-filtered append interface the supervisor core
// requires of its logging collaborator, plus a Reopen hook so an embedder
// can wire it into logrotate-style rotation.
type Logger interface {
	Log(level Level, msg string, fields map[string]interface{}) error
	LogEvent(ev Event) error
	Reopen() error
	Close() error
}

// record is the on-disk shape of a single log line. EventType names the
// concrete type of Event so a persisted record can be decoded back into
// one via NewEvent; Event itself marshals fine as an interface field
// (encoding/json only needs the concrete value at write time) but cannot
// be unmarshaled without that discriminator.
type record struct {
	Time      time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Msg       string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	EventType string                 `json:"event_type,omitempty"`
	Event     Event                  `json:"event,omitempty"`
}

// FileLogger writes records as line-delimited JSON to a file, reopening it
// by path on Reopen so a rotated file starts fresh. Writes are guarded by a
// mutex; forkpool never needs more than one writer per process, so a plain
// mutex (rather than the flock the IPC region uses) is enough here.
type FileLogger struct {
	mu       sync.Mutex
	path     string
	f        *os.File
	minLevel Level
}

var _ Logger = (*FileLogger)(nil)

// NewFileLogger opens (creating if necessary) path for appending and
// returns a Logger that filters out anything below minLevel, except Daemon
// events, which are never filtered.
func NewFileLogger(path string, minLevel Level) (*FileLogger, error) {
	l := &FileLogger{path: path, minLevel: minLevel}
	if err := l.openLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) openLocked() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0640)
	if err != nil {
		return errors.Wrapf(err, "journal: open %q", l.path)
	}
	l.f = f
	return nil
}

// Log appends a leveled, free-form message.
func (l *FileLogger) Log(level Level, msg string, fields map[string]interface{}) error {
	if level != Daemon && level > l.minLevel {
		return nil
	}
	return l.write(record{Time: time.Now(), Level: level.String(), Msg: msg, Fields: fields})
}

// LogEvent appends a structured Daemon-level lifecycle event.
func (l *FileLogger) LogEvent(ev Event) error {
	return l.write(record{Time: time.Now(), Level: Daemon.String(), EventType: ev.Type(), Event: ev})
}

func (l *FileLogger) write(rec record) error {
	buf := bytes.Buffer{}
	buf.Grow(256)

	if err := json.NewEncoder(&buf).Encode(rec); err != nil {
		return errors.Wrap(err, "journal: marshal record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "journal: write record")
	}
	return nil
}

// Reopen closes and reopens the underlying file by path, picking up a
// rename-based rotation performed by an external tool (e.g. logrotate).
func (l *FileLogger) Reopen() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f != nil {
		l.f.Close()
	}
	return l.openLocked()
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// WriterLogger writes to an arbitrary io.Writer (e.g. os.Stderr before
// daemonization) and treats Reopen as a no-op, since an io.Writer has no
// path to reopen.
type WriterLogger struct {
	mu       sync.Mutex
	w        io.Writer
	minLevel Level
}

var _ Logger = (*WriterLogger)(nil)

// NewWriterLogger wraps w as a Logger.
func NewWriterLogger(w io.Writer, minLevel Level) *WriterLogger {
	return &WriterLogger{w: w, minLevel: minLevel}
}

func (l *WriterLogger) Log(level Level, msg string, fields map[string]interface{}) error {
	if level != Daemon && level > l.minLevel {
		return nil
	}
	return l.write(record{Time: time.Now(), Level: level.String(), Msg: msg, Fields: fields})
}

func (l *WriterLogger) LogEvent(ev Event) error {
	return l.write(record{Time: time.Now(), Level: Daemon.String(), EventType: ev.Type(), Event: ev})
}

func (l *WriterLogger) write(rec record) error {
	buf := bytes.Buffer{}
	if err := json.NewEncoder(&buf).Encode(rec); err != nil {
		return errors.Wrap(err, "journal: marshal record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(buf.Bytes())
	return err
}

func (l *WriterLogger) Reopen() error { return nil }
func (l *WriterLogger) Close() error  { return nil }
