package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepgramRecognizer_ListenURL(t *testing.T) {
	dg := NewDeepgramRecognizer("key")
	raw, err := dg.listenURL(DefaultConfig("ja-JP"))
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "linear16", q.Get("encoding"))
	assert.Equal(t, "16000", q.Get("sample_rate"))
	assert.Equal(t, "ja-JP", q.Get("language"))
	assert.Equal(t, "true", q.Get("profanity_filter"))
	assert.Equal(t, "true", q.Get("punctuate"))
	assert.Equal(t, "true", q.Get("interim_results"))
}

func TestDeepgramRecognizer_StreamRoundTrip(t *testing.T) {
	upgrader := gws.Upgrader{}
	received := make(chan []byte, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == gws.TextMessage && strings.Contains(string(msg), "CloseStream") {
				_ = conn.WriteMessage(gws.TextMessage, []byte(`{"type":"Metadata"}`))
				_ = conn.WriteMessage(gws.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"こんにちは"}]}}`))
				_ = conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
				return
			}
			received <- msg
		}
	}))
	defer srv.Close()

	dg := NewDeepgramRecognizer("key")
	dg.Endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")

	s, err := dg.Stream(context.Background(), DefaultConfig("ja-JP"))
	require.NoError(t, err)

	require.NoError(t, s.SendAudio([]byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, <-received)
	require.NoError(t, s.CloseSend())

	resp, err := s.Recv()
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].IsFinal)
	assert.Equal(t, []string{"こんにちは"}, resp.Results[0].Alternatives)

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
