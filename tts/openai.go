package tts

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

var openAIFormats = map[string]openai.SpeechResponseFormat{
	"OGG_OPUS": openai.SpeechResponseFormatOpus,
	"MP3":      openai.SpeechResponseFormatMp3,
}

// OpenAISynthesizer uses the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	Client *openai.Client
	Model  openai.SpeechModel
	Voice  openai.SpeechVoice
}

func NewOpenAISynthesizer(apiKey string, voice string) *OpenAISynthesizer {
	v := openai.VoiceAlloy
	if voice != "" {
		v = openai.SpeechVoice(voice)
	}
	return &OpenAISynthesizer{
		Client: openai.NewClient(apiKey),
		Model:  openai.TTSModel1,
		Voice:  v,
	}
}

func (o *OpenAISynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	format, ok := openAIFormats[req.AudioEncoding]
	if !ok {
		format = openai.SpeechResponseFormatMp3
	}
	resp, err := o.Client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.Model,
		Input:          req.Text,
		Voice:          o.Voice,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, errors.Wrap(err, "openai create speech")
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, errors.Wrap(err, "read openai speech")
	}
	return audio, nil
}
