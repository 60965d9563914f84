package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventSink writes execution-history events (signals, denials, halts,
// fills) to a day-rotated CSV file under dir, one file per UTC
// calendar day.
type EventSink struct {
	mu      sync.Mutex
	dir     string
	day     string
	file    *os.File
	writer  *csv.Writer
}

// NewEventSink creates the sink's directory if needed; the first file
// is opened lazily on the first Write, once the observation time is
// known.
func NewEventSink(dir string) (*EventSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create event sink directory: %w", err)
	}
	return &EventSink{dir: dir}, nil
}

// Write appends one event row, rotating to a new day's file if needed.
func (s *EventSink) Write(ts time.Time, pair, eventType, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := ts.UTC().Format("2006-01-02")
	if day != s.day {
		if err := s.rotate(day); err != nil {
			return err
		}
	}

	if err := s.writer.Write([]string{ts.UTC().Format(time.RFC3339Nano), pair, eventType, detail}); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *EventSink) rotate(day string) error {
	if s.file != nil {
		s.writer.Flush()
		s.file.Close()
	}

	path := filepath.Join(s.dir, fmt.Sprintf("events-%s.csv", day))
	_, statErr := os.Stat(path)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log %s: %w", path, err)
	}

	s.file = file
	s.writer = csv.NewWriter(file)
	s.day = day

	if statErr != nil { // file didn't already exist: write a header
		if err := s.writer.Write([]string{"timestamp", "pair", "event_type", "detail"}); err != nil {
			return err
		}
		s.writer.Flush()
	}
	return nil
}

// Close flushes and closes the current day's file.
func (s *EventSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.writer.Flush()
	return s.file.Close()
}
