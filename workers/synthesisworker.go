package workers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mrsingh-rishi/voice-relay/tts"
	"github.com/mrsingh-rishi/voice-relay/types"
)

// DefaultSynthesisTimeout bounds a single synthesis call.
const DefaultSynthesisTimeout = 15 * time.Second

// SynthesisWorker answers "tts" commands. Handle is called on its own
// goroutine per command and always replies exactly once.
type SynthesisWorker struct {
	Synthesizer tts.Synthesizer
	Voice       tts.Voice
	Timeout     time.Duration
	Reply       func(types.ResponseMessage)
	logger      *slog.Logger
}

func NewSynthesisWorker(synthesizer tts.Synthesizer, voice tts.Voice, timeout time.Duration, reply func(types.ResponseMessage), logger *slog.Logger) (*SynthesisWorker, error) {
	if synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}
	if reply == nil {
		return nil, errors.New("reply func is required")
	}
	if timeout <= 0 {
		timeout = DefaultSynthesisTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthesisWorker{
		Synthesizer: synthesizer,
		Voice:       voice,
		Timeout:     timeout,
		Reply:       reply,
		logger:      logger,
	}, nil
}

func (w *SynthesisWorker) Handle(ctx context.Context, text string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("synthesis panicked", "panic", fmt.Sprint(r))
			w.Reply(types.Error())
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	start := time.Now()
	audio, err := w.Synthesizer.Synthesize(ctx, w.Voice.Request(text))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			w.logger.Debug("synthesis canceled")
		} else {
			w.logger.Error("synthesis failed", "error", err)
		}
		w.Reply(types.Error())
		return
	}
	if len(audio) == 0 {
		w.logger.Info("synthesis returned no audio", "chars", len(text))
		w.Reply(types.TTSNoSpeech())
		return
	}

	w.logger.Debug("synthesized speech", "bytes", len(audio), "elapsed", time.Since(start))
	w.Reply(types.TTSOK(base64.StdEncoding.EncodeToString(audio)))
}
