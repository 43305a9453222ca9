package workers

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/mrsingh-rishi/voice-relay/mocks"
	"github.com/mrsingh-rishi/voice-relay/tts"
	"github.com/mrsingh-rishi/voice-relay/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type replyLog struct {
	mu      sync.Mutex
	replies []types.ResponseMessage
}

func (l *replyLog) reply(m types.ResponseMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.replies = append(l.replies, m)
}

func (l *replyLog) only(t *testing.T) types.ResponseMessage {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.replies, 1)
	return l.replies[0]
}

func newSynthesisWorker(t *testing.T, synth tts.Synthesizer, log *replyLog) *SynthesisWorker {
	t.Helper()
	w, err := NewSynthesisWorker(synth, tts.DefaultVoice(), time.Second, log.reply, discard)
	require.NoError(t, err)
	return w
}

func TestSynthesisWorker_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	synth.EXPECT().
		Synthesize(gomock.Any(), tts.DefaultVoice().Request("hello")).
		Return([]byte("OggS\x00audio"), nil)

	var log replyLog
	newSynthesisWorker(t, synth, &log).Handle(context.Background(), "hello")

	msg := log.only(t)
	assert.Equal(t, types.CmdTTS, msg.Cmd)
	assert.True(t, msg.OK)
	assert.Equal(t, 200, msg.Status)
	require.NotNil(t, msg.AudioContent)
	decoded, err := base64.StdEncoding.DecodeString(*msg.AudioContent)
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS\x00audio"), decoded)
}

func TestSynthesisWorker_EmptyAudio(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).Return(nil, nil)

	var log replyLog
	newSynthesisWorker(t, synth, &log).Handle(context.Background(), "")

	assert.Equal(t, types.TTSNoSpeech(), log.only(t))
}

func TestSynthesisWorker_EngineError(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).Return(nil, errors.New("quota exceeded"))

	var log replyLog
	newSynthesisWorker(t, synth, &log).Handle(context.Background(), "hello")

	assert.Equal(t, types.Error(), log.only(t))
}

func TestSynthesisWorker_Panic(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, tts.Request) ([]byte, error) {
		panic("boom")
	})

	var log replyLog
	newSynthesisWorker(t, synth, &log).Handle(context.Background(), "hello")

	assert.Equal(t, types.Error(), log.only(t))
}

func TestSynthesisWorker_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	synth.EXPECT().Synthesize(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ tts.Request) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	var log replyLog
	w := newSynthesisWorker(t, synth, &log)
	w.Timeout = 10 * time.Millisecond
	w.Handle(context.Background(), "hello")

	assert.Equal(t, types.Error(), log.only(t))
}

func TestNewSynthesisWorker_Validation(t *testing.T) {
	_, err := NewSynthesisWorker(nil, tts.DefaultVoice(), 0, func(types.ResponseMessage) {}, nil)
	assert.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewSynthesisWorker(mocks.NewMockSynthesizer(ctrl), tts.DefaultVoice(), 0, nil, nil)
	assert.Error(t, err)

	w, err := NewSynthesisWorker(mocks.NewMockSynthesizer(ctrl), tts.DefaultVoice(), 0, func(types.ResponseMessage) {}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSynthesisTimeout, w.Timeout)
}
