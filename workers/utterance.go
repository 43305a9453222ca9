package workers

import "sync"

// UtteranceState is the running / end-signaled pair shared by the receive
// path, the recognition worker and the watchdog. Every transition that
// touches both flags happens under one lock.
type UtteranceState struct {
	mu          sync.Mutex
	running     bool
	endSignaled bool

	// generation advances every time an end of speech is resolved.
	generation uint64
	stopped    chan struct{}
}

func NewUtteranceState() *UtteranceState {
	stopped := make(chan struct{})
	close(stopped)
	return &UtteranceState{stopped: stopped}
}

// Begin marks audio as flowing. It is a no-op while already running.
func (s *UtteranceState) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.running = true
		s.stopped = make(chan struct{})
	}
}

func (s *UtteranceState) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *UtteranceState) EndSignaled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endSignaled
}

// SignalEnd records that the client reported end of speech and returns the
// generation a watchdog for this signal must present to Expire.
func (s *UtteranceState) SignalEnd() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endSignaled = true
	return s.generation
}

// Finalize reports whether a result with the given final flag ends the
// utterance, clearing both flags when it does.
func (s *UtteranceState) Finalize(isFinal bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !isFinal || !s.endSignaled {
		return false
	}
	s.resolveLocked()
	return true
}

// Expire clears both flags if the end of speech signaled in generation is
// still outstanding and reports whether it did. A signal already resolved by
// a final result or an earlier expiry makes it a no-op.
func (s *UtteranceState) Expire(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endSignaled || s.generation != generation {
		return false
	}
	s.resolveLocked()
	return true
}

// Reset clears both flags unconditionally.
func (s *UtteranceState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveLocked()
}

// Stopped returns a channel closed when the current utterance stops running.
func (s *UtteranceState) Stopped() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *UtteranceState) resolveLocked() {
	s.endSignaled = false
	s.generation++
	s.stopLocked()
}

func (s *UtteranceState) stopLocked() {
	if s.running {
		s.running = false
		close(s.stopped)
	}
}
