package workers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/queue"
	"github.com/mrsingh-rishi/voice-relay/stt"
)

// DefaultDrainTimeout bounds how long a half-closed call may take to deliver
// its last results.
const DefaultDrainTimeout = 10 * time.Second

// RecognitionWorker drains the audio queue into streaming recognition calls,
// one call per utterance, and emits a transcript event per engine result.
type RecognitionWorker struct {
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	Recognizer   stt.Recognizer
	Config       stt.Config
	Queue        *queue.Queue[model.Item]
	State        *UtteranceState
	Watchdog     *Watchdog
	Emit         func(model.TranscriptEvent)
	DrainTimeout time.Duration
	logger       *slog.Logger
}

func NewRecognitionWorker(
	recognizer stt.Recognizer,
	cfg stt.Config,
	q *queue.Queue[model.Item],
	state *UtteranceState,
	watchdog *Watchdog,
	emit func(model.TranscriptEvent),
	logger *slog.Logger,
) (*RecognitionWorker, error) {
	if recognizer == nil {
		return nil, errors.New("recognizer is required")
	}
	if q == nil || state == nil || watchdog == nil {
		return nil, errors.New("queue, state and watchdog are required")
	}
	if emit == nil {
		return nil, errors.New("emit func is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RecognitionWorker{
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		Recognizer:   recognizer,
		Config:       cfg,
		Queue:        q,
		State:        state,
		Watchdog:     watchdog,
		Emit:         emit,
		DrainTimeout: DefaultDrainTimeout,
		logger:       logger,
	}, nil
}

// Start begins the worker's processing loop in its own goroutine.
func (w *RecognitionWorker) Start() {
	go w.run()
}

// Stop cancels the worker and any live call. It does not wait.
func (w *RecognitionWorker) Stop() {
	w.cancel()
}

// Done is closed once the worker has exited.
func (w *RecognitionWorker) Done() <-chan struct{} {
	return w.done
}

func (w *RecognitionWorker) run() {
	defer close(w.done)

	for {
		item, err := w.Queue.Pop(w.ctx)
		if err != nil {
			w.logger.Debug("recognition worker canceled")
			return
		}

		if !item.IsAudio() {
			if item.Sentinel == model.Close {
				return
			}
			// Nothing is streaming; the watchdog still owes the client an end event.
			w.signalEnd()
			continue
		}

		w.State.Begin()
		if closed := w.stream(item.Chunk); closed || w.ctx.Err() != nil {
			return
		}
	}
}

func (w *RecognitionWorker) signalEnd() {
	w.Watchdog.Arm(w.State.SignalEnd())
}

// stream runs one call starting with first and reports whether the Close
// sentinel was consumed.
func (w *RecognitionWorker) stream(first model.AudioChunk) bool {
	callCtx, cancelCall := context.WithCancel(w.ctx)
	defer cancelCall()

	s, err := w.Recognizer.Stream(callCtx, w.Config)
	if err != nil {
		if callCtx.Err() == nil {
			w.logger.Error("open recognition stream", "error", err)
		}
		return false
	}

	recvErr := make(chan error, 1)
	go func() {
		err := w.receive(s)
		if err != nil {
			cancelCall()
		}
		recvErr <- err
	}()

	requests := newRequestIter(callCtx, w.Queue, w.State, w.signalEnd)
	sendErr := pump(s, first, requests)
	requests.Close()

	if sendErr == nil && callCtx.Err() == nil {
		sendErr = s.CloseSend()
	}
	if sendErr != nil {
		cancelCall()
	}

	var rerr error
	drain := w.DrainTimeout
	if drain <= 0 {
		drain = DefaultDrainTimeout
	}
	select {
	case rerr = <-recvErr:
	case <-time.After(drain):
		w.logger.Warn("recognition stream did not finish after half-close", "timeout", drain)
		cancelCall()
		rerr = <-recvErr
	}

	switch {
	case w.ctx.Err() != nil:
		w.logger.Debug("streaming canceled")
	case rerr != nil && !errors.Is(rerr, context.Canceled):
		w.logger.Error("recognition stream failed", "error", rerr)
	case sendErr != nil && !errors.Is(sendErr, context.Canceled):
		w.logger.Error("recognition send failed", "error", sendErr)
	}
	return requests.closed
}

func pump(s stt.Stream, first model.AudioChunk, requests *requestIter) error {
	if err := s.SendAudio(first); err != nil {
		return err
	}
	for {
		chunk, ok := requests.Next()
		if !ok {
			return nil
		}
		if err := s.SendAudio(chunk); err != nil {
			return err
		}
	}
}

func (w *RecognitionWorker) receive(s stt.Stream) error {
	for {
		resp, err := s.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			isEnd := w.State.Finalize(r.IsFinal)
			w.Emit(model.TranscriptEvent{
				Text:    r.Alternatives[0],
				IsFinal: r.IsFinal,
				IsEnd:   isEnd,
			})
		}
	}
}

// requestIter yields queued audio for one call. It ends when the utterance
// stops running, the Close sentinel is dequeued, or ctx is done.
type requestIter struct {
	ctx    context.Context
	cancel context.CancelFunc
	queue  *queue.Queue[model.Item]
	state  *UtteranceState
	onEnd  func()
	closed bool
}

func newRequestIter(ctx context.Context, q *queue.Queue[model.Item], state *UtteranceState, onEnd func()) *requestIter {
	ctx, cancel := context.WithCancel(ctx)
	stopped := state.Stopped()
	go func() {
		select {
		case <-stopped:
			cancel()
		case <-ctx.Done():
		}
	}()
	return &requestIter{ctx: ctx, cancel: cancel, queue: q, state: state, onEnd: onEnd}
}

func (it *requestIter) Next() (model.AudioChunk, bool) {
	for {
		if it.closed || !it.state.Running() {
			return nil, false
		}
		item, err := it.queue.Pop(it.ctx)
		if err != nil {
			return nil, false
		}
		if item.IsAudio() {
			return item.Chunk, true
		}
		if item.Sentinel == model.Close {
			it.closed = true
			return nil, false
		}
		it.onEnd()
	}
}

func (it *requestIter) Close() {
	it.cancel()
}
