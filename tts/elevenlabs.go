package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// elevenLabsFormats maps the relay's encoding names to ElevenLabs output formats.
var elevenLabsFormats = map[string]string{
	"OGG_OPUS": "opus_48000_64",
	"MP3":      "mp3_44100_128",
	"LINEAR16": "pcm_16000",
	"MULAW":    "ulaw_8000",
}

type ElevenLabsClient struct {
	APIKey     string
	VoiceId    string
	ModelId    string
	BaseURL    string
	HTTPClient *http.Client
}

func NewElevenLabsClient(apiKey string, voiceId string, modelId string) (*ElevenLabsClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("elevenlabs API key is required")
	}
	if voiceId == "" {
		return nil, fmt.Errorf("elevenlabs voice id is required")
	}
	if modelId == "" {
		modelId = "eleven_multilingual_v2"
	}
	return &ElevenLabsClient{
		APIKey:     apiKey,
		VoiceId:    voiceId,
		ModelId:    modelId,
		BaseURL:    elevenLabsBaseURL,
		HTTPClient: http.DefaultClient,
	}, nil
}

func (client *ElevenLabsClient) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	voiceId := client.VoiceId
	if req.VoiceName != "" {
		voiceId = req.VoiceName
	}
	base, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s", client.BaseURL, url.PathEscape(voiceId)))
	if err != nil {
		return nil, errors.Wrap(err, "build elevenlabs url")
	}
	format, ok := elevenLabsFormats[req.AudioEncoding]
	if !ok {
		format = elevenLabsFormats["MP3"]
	}
	q := base.Query()
	q.Set("output_format", format)
	base.RawQuery = q.Encode()

	payload := map[string]interface{}{
		"text":          req.Text,
		"model_id":      client.ModelId,
		"language_code": languageOnly(req.LanguageCode),
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal elevenlabs payload")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "build elevenlabs request")
	}
	httpReq.Header.Set("xi-api-key", client.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpClient := client.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("elevenlabs bad status: %s", resp.Status)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read elevenlabs audio")
	}
	return audio, nil
}

// languageOnly turns "ja-JP" into "ja".
func languageOnly(tag string) string {
	for i, r := range tag {
		if r == '-' || r == '_' {
			return tag[:i]
		}
	}
	return tag
}
