package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const deepgramListenURL = "wss://api.deepgram.com/v1/listen"

// DeepgramRecognizer streams audio to Deepgram's live transcription socket.
type DeepgramRecognizer struct {
	APIKey   string
	Endpoint string
	Model    string
	Dialer   *gws.Dialer
}

type deepgramMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func NewDeepgramRecognizer(apiKey string) *DeepgramRecognizer {
	return &DeepgramRecognizer{
		APIKey:   apiKey,
		Endpoint: deepgramListenURL,
		Model:    "nova-2",
		Dialer:   gws.DefaultDialer,
	}
}

// Stream dials a new socket. Deepgram takes its configuration from the query
// string of the handshake, so no config frame follows the upgrade.
func (dg *DeepgramRecognizer) Stream(ctx context.Context, cfg Config) (Stream, error) {
	u, err := dg.listenURL(cfg)
	if err != nil {
		return nil, err
	}
	header := http.Header{
		"Authorization": {fmt.Sprintf("Token %s", dg.APIKey)},
	}
	dialer := dg.Dialer
	if dialer == nil {
		dialer = gws.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, u, header)
	if err != nil {
		return nil, errors.Wrap(err, "deepgram dial")
	}

	s := &deepgramStream{conn: conn, ctx: ctx, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			s.close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (dg *DeepgramRecognizer) listenURL(cfg Config) (string, error) {
	endpoint := dg.Endpoint
	if endpoint == "" {
		endpoint = deepgramListenURL
	}
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse deepgram endpoint")
	}
	q := base.Query()
	if dg.Model != "" {
		q.Set("model", dg.Model)
	}
	q.Set("encoding", strings.ToLower(cfg.Encoding))
	q.Set("sample_rate", strconv.Itoa(int(cfg.SampleRateHertz)))
	q.Set("channels", "1")
	q.Set("language", cfg.LanguageCode)
	q.Set("profanity_filter", strconv.FormatBool(cfg.ProfanityFilter))
	q.Set("punctuate", strconv.FormatBool(cfg.EnableAutomaticPunctuation))
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	base.RawQuery = q.Encode()
	return base.String(), nil
}

type deepgramStream struct {
	conn      *gws.Conn
	ctx       context.Context
	done      chan struct{}
	closeOnce sync.Once
}

func (s *deepgramStream) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	return errors.Wrap(s.conn.WriteMessage(gws.BinaryMessage, chunk), "deepgram write")
}

func (s *deepgramStream) CloseSend() error {
	return errors.Wrap(s.conn.WriteMessage(gws.TextMessage, []byte(`{"type":"CloseStream"}`)), "deepgram close stream")
}

func (s *deepgramStream) Recv() (*Response, error) {
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.close()
			if s.ctx.Err() != nil {
				return nil, s.ctx.Err()
			}
			if gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, "deepgram read")
		}

		var msg deepgramMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return nil, errors.Wrap(err, "parse deepgram response")
		}
		// Metadata, SpeechStarted and UtteranceEnd carry no transcript.
		if msg.Type != "" && msg.Type != "Results" {
			continue
		}
		res := Result{IsFinal: msg.IsFinal}
		for _, alt := range msg.Channel.Alternatives {
			res.Alternatives = append(res.Alternatives, alt.Transcript)
		}
		return &Response{Results: []Result{res}}, nil
	}
}

func (s *deepgramStream) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
