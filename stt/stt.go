// Package stt holds the streaming speech recognition engines the relay can
// forward audio to.
package stt

//go:generate mockgen -destination=../mocks/mock_stt.go -package=mocks github.com/mrsingh-rishi/voice-relay/stt Recognizer,Stream

import (
	"context"
)

// Config is the configuration sent as the first frame of every streaming call.
type Config struct {
	Encoding                   string
	SampleRateHertz            int32
	LanguageCode               string
	ProfanityFilter            bool
	EnableAutomaticPunctuation bool
	InterimResults             bool
}

// DefaultConfig returns the relay's fixed recognition profile: 16 kHz LINEAR16
// with profanity filter, punctuation and interim results enabled.
func DefaultConfig(languageCode string) Config {
	if languageCode == "" {
		languageCode = "ja-JP"
	}
	return Config{
		Encoding:                   "LINEAR16",
		SampleRateHertz:            16000,
		LanguageCode:               languageCode,
		ProfanityFilter:            true,
		EnableAutomaticPunctuation: true,
		InterimResults:             true,
	}
}

// Result is one recognition result. Alternatives are ordered best first.
type Result struct {
	Alternatives []string
	IsFinal      bool
}

// Response is what the engine returns for a batch of audio.
type Response struct {
	Results []Result
}

// Recognizer opens streaming recognition calls.
type Recognizer interface {
	// Stream opens a new call. Implementations send cfg before returning, so
	// the caller may start sending audio immediately.
	Stream(ctx context.Context, cfg Config) (Stream, error)
}

// Stream is one live streaming recognition call. SendAudio and CloseSend are
// called from a single goroutine, Recv from another.
type Stream interface {
	SendAudio(chunk []byte) error
	// CloseSend half-closes the call; the engine flushes its remaining results.
	CloseSend() error
	// Recv returns the next response, or io.EOF once the engine is done.
	Recv() (*Response, error)
}
