package stt

import (
	"context"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// GoogleRecognizer streams audio to Google Cloud Speech-to-Text v1 over gRPC.
type GoogleRecognizer struct {
	client *speech.Client
}

func NewGoogleRecognizer(ctx context.Context, opts ...option.ClientOption) (*GoogleRecognizer, error) {
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create speech client")
	}
	return &GoogleRecognizer{client: client}, nil
}

func (g *GoogleRecognizer) Stream(ctx context.Context, cfg Config) (Stream, error) {
	s, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "open streaming recognize")
	}
	if err := s.Send(googleConfigRequest(cfg)); err != nil {
		return nil, errors.Wrap(err, "send streaming config")
	}
	return &googleStream{s: s}, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleRecognizer) Close() error {
	return g.client.Close()
}

func googleConfigRequest(cfg Config) *speechpb.StreamingRecognizeRequest {
	encoding := speechpb.RecognitionConfig_LINEAR16
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[cfg.Encoding]; ok {
		encoding = speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   encoding,
					SampleRateHertz:            cfg.SampleRateHertz,
					LanguageCode:               cfg.LanguageCode,
					ProfanityFilter:            cfg.ProfanityFilter,
					EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
				},
				InterimResults: cfg.InterimResults,
			},
		},
	}
}

type googleStream struct {
	s speechpb.Speech_StreamingRecognizeClient
}

func (g *googleStream) SendAudio(chunk []byte) error {
	err := g.s.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: chunk},
	})
	return errors.Wrap(err, "send audio")
}

func (g *googleStream) CloseSend() error {
	return errors.Wrap(g.s.CloseSend(), "close send")
}

func (g *googleStream) Recv() (*Response, error) {
	resp, err := g.s.Recv()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrap(err, "receive recognition response")
	}
	if st := resp.GetError(); st != nil && st.GetCode() != 0 {
		return nil, errors.Errorf("recognition error %d: %s", st.GetCode(), st.GetMessage())
	}

	out := &Response{Results: make([]Result, 0, len(resp.GetResults()))}
	for _, r := range resp.GetResults() {
		res := Result{IsFinal: r.GetIsFinal()}
		for _, alt := range r.GetAlternatives() {
			res.Alternatives = append(res.Alternatives, alt.GetTranscript())
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
