package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedWrite struct {
	messageType int
	data        []byte
}

type fakeWriter struct {
	mu       sync.Mutex
	writes   []recordedWrite
	inFlight int32
	overlap  int32
	failWith error
}

func (f *fakeWriter) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeWriter) WriteMessage(messageType int, data []byte) error {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	defer atomic.AddInt32(&f.inFlight, -1)
	time.Sleep(100 * time.Microsecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.writes = append(f.writes, recordedWrite{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (f *fakeWriter) WriteControl(messageType int, data []byte, _ time.Time) error {
	return f.WriteMessage(messageType, data)
}

func (f *fakeWriter) snapshot() []recordedWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func decompress(t *testing.T, data []byte) []byte {
	t.Helper()
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	require.NoError(t, err)
	return out
}

func TestSender_TextAndBinaryFrames(t *testing.T) {
	ws := &fakeWriter{}
	s := NewSender(ws, Config{}, nil)
	s.Start()

	require.True(t, s.Send(Frame{Payload: map[string]interface{}{"transcript": "hi", "is_final": false, "is_end": false}}))
	require.True(t, s.Send(Frame{Payload: map[string]interface{}{"cmd": "tts", "ok": true}, Binary: true}))
	s.Stop()

	writes := ws.snapshot()
	require.Len(t, writes, 2)

	assert.Equal(t, websocket.TextMessage, writes[0].messageType)
	assert.JSONEq(t, `{"transcript":"hi","is_final":false,"is_end":false}`, string(writes[0].data))

	assert.Equal(t, websocket.BinaryMessage, writes[1].messageType)
	assert.JSONEq(t, `{"cmd":"tts","ok":true}`, string(decompress(t, writes[1].data)))
}

func TestSender_SendAfterStopIsNoop(t *testing.T) {
	ws := &fakeWriter{}
	s := NewSender(ws, Config{}, nil)
	s.Start()
	s.Stop()
	s.Stop()

	assert.False(t, s.Send(Frame{Payload: "late"}))
	assert.Empty(t, ws.snapshot())
}

func TestSender_StopWithoutStart(t *testing.T) {
	s := NewSender(&fakeWriter{}, Config{}, nil)
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a sender that was never started")
	}
}

func TestSender_ConcurrentProducersNeverOverlap(t *testing.T) {
	ws := &fakeWriter{}
	s := NewSender(ws, Config{Buffer: 4}, nil)
	s.Start()

	const producers, per = 8, 25
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				s.Send(Frame{Payload: map[string]int{"p": p, "i": i}, Binary: i%2 == 0})
			}
		}(p)
	}
	wg.Wait()
	s.Stop()

	assert.Equal(t, int32(0), atomic.LoadInt32(&ws.overlap))
	writes := ws.snapshot()
	require.Len(t, writes, producers*per)
	for _, w := range writes {
		data := w.data
		if w.messageType == websocket.BinaryMessage {
			data = decompress(t, data)
		}
		var v map[string]int
		require.NoError(t, json.Unmarshal(data, &v))
	}
}

func TestSender_WriteErrorStopsSender(t *testing.T) {
	ws := &fakeWriter{failWith: errors.New("broken pipe")}
	s := NewSender(ws, Config{}, nil)
	s.Start()

	s.Send(Frame{Payload: "x"})
	require.Eventually(t, func() bool {
		return !s.Send(Frame{Payload: "y"})
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSender_Pings(t *testing.T) {
	ws := &fakeWriter{}
	s := NewSender(ws, Config{PingInterval: 5 * time.Millisecond}, nil)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		for _, w := range ws.snapshot() {
			if w.messageType == websocket.PingMessage {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestCompress_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"audioContent":"AAAA"}`), 50)
	out, err := Compress(payload, DefaultBrotliQuality)
	require.NoError(t, err)
	assert.Less(t, len(out), len(payload))
	assert.Equal(t, payload, decompress(t, out))
}
