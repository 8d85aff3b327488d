package stocktaking

import (
	"strings"
	"sync"
	"time"
)

// DefaultScanDebounce is the quiet period after the last keystroke before a
// typed barcode is submitted
const DefaultScanDebounce = 300 * time.Millisecond

// ScanInput debounces barcode input from a keyboard-wedge scanner. Every
// Type restarts the quiet period; only the last value is submitted.
type ScanInput struct {
	mu      sync.Mutex
	delay   time.Duration
	submit  func(value string)
	timer   *time.Timer
	pending string
	seq     uint64
	stopped bool
}

// NewScanInput creates a debouncer calling submit with the settled value
func NewScanInput(delay time.Duration, submit func(value string)) *ScanInput {
	if delay <= 0 {
		delay = DefaultScanDebounce
	}
	return &ScanInput{delay: delay, submit: submit}
}

// Type replaces the pending value and restarts the quiet period.
// Blank input cancels whatever was pending.
func (s *ScanInput) Type(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.cancelLocked()

	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	s.pending = value
	seq := s.seq
	s.timer = time.AfterFunc(s.delay, func() { s.fire(seq) })
}

// Flush submits the pending value immediately, as on an Enter key
func (s *ScanInput) Flush() (string, bool) {
	s.mu.Lock()
	value := s.pending
	if s.stopped || value == "" {
		s.mu.Unlock()
		return "", false
	}
	s.cancelLocked()
	s.mu.Unlock()

	s.submit(value)
	return value, true
}

// Pending returns the value waiting for the quiet period to elapse
func (s *ScanInput) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.pending != ""
}

// Stop discards the pending value; later input is ignored
func (s *ScanInput) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.stopped = true
}

// fire runs on the timer goroutine; a stale seq means the value was replaced
func (s *ScanInput) fire(seq uint64) {
	s.mu.Lock()
	if s.stopped || seq != s.seq || s.pending == "" {
		s.mu.Unlock()
		return
	}
	value := s.pending
	s.pending = ""
	s.seq++
	s.timer = nil
	s.mu.Unlock()

	s.submit(value)
}

func (s *ScanInput) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = ""
	s.seq++
}
