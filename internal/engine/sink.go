package engine

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// =============================================================================
// Sinks
// =============================================================================

// Sink receives the append-only status and error lines of a run. CI hosts
// show these lines to the operator.
type Sink interface {
	Status(msg string)
	Error(msg string)
}

// SlogSink forwards lines to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink that logs through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Status(msg string) { s.logger.Info(msg) }
func (s *SlogSink) Error(msg string)  { s.logger.Error(msg) }

// LineSink writes one prefixed line per message to w.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineSink creates a sink that writes to w.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

func (s *LineSink) Status(msg string) { s.write("", msg) }
func (s *LineSink) Error(msg string)  { s.write("ERROR: ", msg) }

func (s *LineSink) write(prefix, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s%s\n", prefix, msg)
}

// MultiSink fans every line out to several sinks.
type MultiSink []Sink

func (m MultiSink) Status(msg string) {
	for _, s := range m {
		s.Status(msg)
	}
}

func (m MultiSink) Error(msg string) {
	for _, s := range m {
		s.Error(msg)
	}
}

// MemorySink keeps every line in memory.
type MemorySink struct {
	mu       sync.Mutex
	statuses []string
	errors   []string
}

func (s *MemorySink) Status(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, msg)
}

func (s *MemorySink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, msg)
}

// Statuses returns a copy of the status lines.
func (s *MemorySink) Statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statuses...)
}

// Errors returns a copy of the error lines.
func (s *MemorySink) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}
