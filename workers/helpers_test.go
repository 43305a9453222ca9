package workers

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/stt"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeStream is a recognition call driven by the test: responses are pushed
// on the responses channel, and Recv reports io.EOF once CloseSend was called.
type fakeStream struct {
	ctx       context.Context
	responses chan *stt.Response
	eof       chan struct{}
	eofOnce   sync.Once

	mu      sync.Mutex
	audio   [][]byte
	sendErr error
	halfed  bool
}

func newFakeStream(ctx context.Context) *fakeStream {
	return &fakeStream{
		ctx:       ctx,
		responses: make(chan *stt.Response, 8),
		eof:       make(chan struct{}),
	}
}

func (f *fakeStream) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.audio = append(f.audio, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeStream) CloseSend() error {
	f.mu.Lock()
	f.halfed = true
	f.mu.Unlock()
	f.eofOnce.Do(func() { close(f.eof) })
	return nil
}

func (f *fakeStream) Recv() (*stt.Response, error) {
	select {
	case r := <-f.responses:
		return r, nil
	case <-f.eof:
		return nil, io.EOF
	case <-f.ctx.Done():
		return nil, f.ctx.Err()
	}
}

func (f *fakeStream) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.audio))
	copy(out, f.audio)
	return out
}

func (f *fakeStream) halfClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.halfed
}

func final(text string) *stt.Response {
	return &stt.Response{Results: []stt.Result{{Alternatives: []string{text}, IsFinal: true}}}
}

func interim(text string) *stt.Response {
	return &stt.Response{Results: []stt.Result{{Alternatives: []string{text}}}}
}

type eventLog struct {
	mu     sync.Mutex
	events []model.TranscriptEvent
}

func (l *eventLog) emit(ev model.TranscriptEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []model.TranscriptEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.TranscriptEvent, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) ends() []model.TranscriptEvent {
	var out []model.TranscriptEvent
	for _, ev := range l.snapshot() {
		if ev.IsEnd {
			out = append(out, ev)
		}
	}
	return out
}
