package sse

import (
	"fmt"
	"net/http"
	"sync"
)

// StreamWriter serializes writes to one SSE connection. Event frames come
// from the handler goroutine and keep-alive comments from the strategy
// goroutine, so every write goes through the same mutex.
type StreamWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStreamWriter creates a writer over a flushable response.
func NewStreamWriter(w http.ResponseWriter, flusher http.Flusher) *StreamWriter {
	return &StreamWriter{
		w:       w,
		flusher: flusher,
	}
}

// WriteFrame writes a formatted SSE frame and flushes it.
func (s *StreamWriter) WriteFrame(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.w, frame); err != nil {
		return fmt.Errorf("write frame failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment and flushes. Comments are ignored
// by clients per the SSE spec; a failed write signals a closed connection.
func (s *StreamWriter) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

var _ KeepAliveWriter = (*StreamWriter)(nil)
