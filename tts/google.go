package tts

import (
	"context"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// GoogleSynthesizer calls Google Cloud Text-to-Speech.
type GoogleSynthesizer struct {
	client *texttospeech.Client
}

func NewGoogleSynthesizer(ctx context.Context, opts ...option.ClientOption) (*GoogleSynthesizer, error) {
	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create text-to-speech client")
	}
	return &GoogleSynthesizer{client: client}, nil
}

func (g *GoogleSynthesizer) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	resp, err := g.client.SynthesizeSpeech(ctx, googleSynthesizeRequest(req))
	if err != nil {
		return nil, errors.Wrap(err, "synthesize speech")
	}
	return resp.GetAudioContent(), nil
}

func (g *GoogleSynthesizer) Close() error {
	return g.client.Close()
}

func googleSynthesizeRequest(req Request) *texttospeechpb.SynthesizeSpeechRequest {
	gender := texttospeechpb.SsmlVoiceGender_NEUTRAL
	if v, ok := texttospeechpb.SsmlVoiceGender_value[req.Gender]; ok {
		gender = texttospeechpb.SsmlVoiceGender(v)
	}
	encoding := texttospeechpb.AudioEncoding_OGG_OPUS
	if v, ok := texttospeechpb.AudioEncoding_value[req.AudioEncoding]; ok {
		encoding = texttospeechpb.AudioEncoding(v)
	}
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: req.LanguageCode,
			Name:         req.VoiceName,
			SsmlGender:   gender,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: encoding,
		},
	}
}
