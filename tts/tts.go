// Package tts holds the speech synthesis engines used for "tts" commands.
package tts

//go:generate mockgen -destination=../mocks/mock_tts.go -package=mocks github.com/mrsingh-rishi/voice-relay/tts Synthesizer

import "context"

// Request describes one synthesis call.
type Request struct {
	Text          string
	LanguageCode  string
	VoiceName     string
	Gender        string
	AudioEncoding string
}

// Voice is the fixed voice profile the relay synthesizes with.
type Voice struct {
	LanguageCode  string
	Name          string
	Gender        string
	AudioEncoding string
}

// DefaultVoice is ja-JP, neutral gender, Ogg/Opus.
func DefaultVoice() Voice {
	return Voice{
		LanguageCode:  "ja-JP",
		Gender:        "NEUTRAL",
		AudioEncoding: "OGG_OPUS",
	}
}

// Request builds a request for text with this voice profile.
func (v Voice) Request(text string) Request {
	return Request{
		Text:          text,
		LanguageCode:  v.LanguageCode,
		VoiceName:     v.Name,
		Gender:        v.Gender,
		AudioEncoding: v.AudioEncoding,
	}
}

// Synthesizer turns text into encoded audio. An empty result with a nil error
// means the engine produced no speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
