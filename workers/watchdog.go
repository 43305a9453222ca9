package workers

import (
	"sync"
	"time"

	"github.com/mrsingh-rishi/voice-relay/model"
)

// DefaultEndOfSpeechTimeout is how long the engine gets to deliver a final
// result after the client signals end of speech.
const DefaultEndOfSpeechTimeout = time.Second

// Watchdog guarantees a terminal transcript after end of speech. Each Arm
// starts an independent one-shot timer tagged with the signal's generation;
// a timer only emits while that same signal is still outstanding.
type Watchdog struct {
	Timeout time.Duration
	State   *UtteranceState
	Emit    func(model.TranscriptEvent)

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

func NewWatchdog(timeout time.Duration, state *UtteranceState, emit func(model.TranscriptEvent)) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultEndOfSpeechTimeout
	}
	return &Watchdog{
		Timeout: timeout,
		State:   state,
		Emit:    emit,
		timers:  make(map[*time.Timer]struct{}),
	}
}

// Arm starts a timer for the end of speech signaled in generation.
func (w *Watchdog) Arm(generation uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(w.Timeout, func() {
		w.mu.Lock()
		delete(w.timers, t)
		stopped := w.stopped
		w.mu.Unlock()
		if !stopped {
			w.fire(generation)
		}
	})
	w.timers[t] = struct{}{}
}

// Pending returns the number of timers that have not fired yet.
func (w *Watchdog) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// Stop cancels every pending timer; later Arm calls are ignored.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for t := range w.timers {
		t.Stop()
		delete(w.timers, t)
	}
}

func (w *Watchdog) fire(generation uint64) {
	if w.State.Expire(generation) {
		w.Emit(model.TranscriptEvent{Text: "", IsFinal: true, IsEnd: true})
	}
}
