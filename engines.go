package main

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/stt"
	"github.com/mrsingh-rishi/voice-relay/tts"
)

func googleOptions(cfg *config.Config) []option.ClientOption {
	if cfg.GoogleCredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.GoogleCredentialsFile)}
}

func newRecognizer(ctx context.Context, cfg *config.Config) (stt.Recognizer, func(), error) {
	switch cfg.STTProvider {
	case config.STTGoogle:
		r, err := stt.NewGoogleRecognizer(ctx, googleOptions(cfg)...)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case config.STTDeepgram:
		return stt.NewDeepgramRecognizer(cfg.DeepgramAPIKey), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}

func newSynthesizer(ctx context.Context, cfg *config.Config) (tts.Synthesizer, func(), error) {
	switch cfg.TTSProvider {
	case config.TTSGoogle:
		s, err := tts.NewGoogleSynthesizer(ctx, googleOptions(cfg)...)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.TTSElevenLabs:
		s, err := tts.NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, "")
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case config.TTSOpenAI:
		return tts.NewOpenAISynthesizer(cfg.OpenAIAPIKey, ""), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown TTS provider %q", cfg.TTSProvider)
	}
}
