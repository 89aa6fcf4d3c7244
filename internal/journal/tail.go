package journal

import (
	"encoding/json"
	"io"
	"os"

	"github.com/diamondburned/backwardio"
	"github.com/pkg/errors"
)

// Entry is a decoded log record returned by Tail. Event is non-nil only
// for a Daemon-level record whose event_type named a type NewEvent knows.
type Entry struct {
	Time  string
	Level string
	Msg   string
	Event Event
	Raw   json.RawMessage
}

// TailFile reads up to n records from the end of the journal file at path,
// most recent first, without reading the file forward from the start. It is
// the backing implementation of "forkpoold logs -n".
func TailFile(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "journal: open %q", path)
	}
	defer f.Close()

	return Tail(f, n)
}

// Tail is the io.ReadSeeker-based core of TailFile, split out for testing
// against an in-memory buffer instead of a real file.
func Tail(r io.ReadSeeker, n int) ([]Entry, error) {
	back := backwardio.NewScanner(r)

	entries := make([]Entry, 0, n)
	for len(entries) < n {
		line, err := back.ReadUntil('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return entries, errors.Wrap(err, "journal: read backward")
		}
		if len(line) == 0 {
			continue
		}

		var raw struct {
			Time      string          `json:"time"`
			Level     string          `json:"level"`
			Msg       string          `json:"msg"`
			EventType string          `json:"event_type"`
			Event     json.RawMessage `json:"event"`
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			return entries, errors.Wrap(err, "journal: decode entry")
		}

		var ev Event
		if raw.EventType != "" {
			if ev = NewEvent(raw.EventType); ev != nil {
				if err := json.Unmarshal(raw.Event, ev); err != nil {
					return entries, errors.Wrap(err, "journal: decode event")
				}
			}
		}

		buf := make([]byte, len(line))
		copy(buf, line)

		entries = append(entries, Entry{
			Time:  raw.Time,
			Level: raw.Level,
			Msg:   raw.Msg,
			Event: ev,
			Raw:   buf,
		})
	}

	return entries, nil
}
