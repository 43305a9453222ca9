// Package session runs one relay connection: it resolves the caller, routes
// inbound frames to recognition or synthesis, and tears everything down in
// order when the socket goes away.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/mrsingh-rishi/voice-relay/auth"
	"github.com/mrsingh-rishi/voice-relay/model"
	"github.com/mrsingh-rishi/voice-relay/output"
	"github.com/mrsingh-rishi/voice-relay/queue"
	"github.com/mrsingh-rishi/voice-relay/stt"
	"github.com/mrsingh-rishi/voice-relay/tts"
	"github.com/mrsingh-rishi/voice-relay/types"
	"github.com/mrsingh-rishi/voice-relay/workers"
)

var (
	ErrUnauthenticated = errors.New("session: unauthenticated")
	ErrInvalidState    = errors.New("session: invalid state")
)

// State is the lifecycle of a session.
type State int32

const (
	Connecting State = iota
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Conn is the socket a session is served on.
type Conn interface {
	output.Writer
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Deps are the external collaborators shared by every session.
type Deps struct {
	Resolver    auth.Resolver
	Recognizer  stt.Recognizer
	Synthesizer tts.Synthesizer
}

type Config struct {
	Recognition        stt.Config
	Voice              tts.Voice
	EndOfSpeechTimeout time.Duration
	SynthesisTimeout   time.Duration
	Output             output.Config
}

// DefaultConfig is the ja-JP profile with the documented timeouts.
func DefaultConfig() Config {
	return Config{
		Recognition:        stt.DefaultConfig("ja-JP"),
		Voice:              tts.DefaultVoice(),
		EndOfSpeechTimeout: workers.DefaultEndOfSpeechTimeout,
		SynthesisTimeout:   workers.DefaultSynthesisTimeout,
	}
}

type Session struct {
	ID     string
	deps   Deps
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	resolved bool
	identity *auth.Identity

	conn        Conn
	queue       *queue.Queue[model.Item]
	utterance   *workers.UtteranceState
	watchdog    *workers.Watchdog
	recognition *workers.RecognitionWorker
	synthesis   *workers.SynthesisWorker
	sender      *output.Sender

	ctx       context.Context
	cancel    context.CancelFunc
	tasks     sync.WaitGroup
	closeOnce sync.Once
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		ID:     id,
		deps:   deps,
		cfg:    cfg,
		logger: logger.With("session_id", id),
		state:  Connecting,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Identity() *auth.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect resolves the caller's identity. It may be called once; without an
// identity the session moves straight to Closed and ErrUnauthenticated is
// returned, and the caller must not accept the socket.
func (s *Session) Connect(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	s.mu.Lock()
	if s.state != Connecting || s.resolved {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	s.resolved = true
	s.mu.Unlock()

	id, err := s.deps.Resolver.Resolve(ctx, creds)
	if err != nil {
		s.logger.Warn("identity resolution failed", "error", err)
		s.setState(Closed)
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if id == nil {
		s.logger.Info("connection rejected: no identity")
		s.setState(Closed)
		return nil, ErrUnauthenticated
	}

	s.mu.Lock()
	s.identity = id
	s.logger = s.logger.With("user_id", id.UserID)
	s.mu.Unlock()
	return id, nil
}

// Serve accepts conn and blocks until the client disconnects or ctx is done.
// The socket is closed when Serve returns.
func (s *Session) Serve(ctx context.Context, conn Conn) error {
	if err := s.accept(conn); err != nil {
		_ = conn.Close()
		return err
	}
	defer s.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				s.logger.Info("session canceled")
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.logger.Info("client disconnected")
			default:
				s.logger.Warn("websocket read error", "error", err)
			}
			return nil
		}
		s.route(messageType, msg)
	}
}

func (s *Session) accept(conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connecting {
		return ErrInvalidState
	}
	if s.identity == nil {
		s.state = Closed
		return ErrUnauthenticated
	}

	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.queue = queue.New[model.Item]()
	s.utterance = workers.NewUtteranceState()
	s.sender = output.NewSender(conn, s.cfg.Output, s.logger)
	s.watchdog = workers.NewWatchdog(s.cfg.EndOfSpeechTimeout, s.utterance, s.sendTranscript)

	recognition, err := workers.NewRecognitionWorker(s.deps.Recognizer, s.cfg.Recognition, s.queue, s.utterance, s.watchdog, s.sendTranscript, s.logger)
	if err != nil {
		s.state = Closed
		return err
	}
	synthesis, err := workers.NewSynthesisWorker(s.deps.Synthesizer, s.cfg.Voice, s.cfg.SynthesisTimeout, s.sendResponse, s.logger)
	if err != nil {
		s.state = Closed
		return err
	}
	s.recognition = recognition
	s.synthesis = synthesis

	s.sender.Start()
	s.recognition.Start()
	s.state = Active
	s.logger.Info("session accepted")
	return nil
}

func (s *Session) route(messageType int, msg []byte) {
	switch messageType {
	case websocket.BinaryMessage:
		s.utterance.Begin()
		if bytes.Equal(msg, types.EndOfSpeechMarker) {
			s.queue.Enqueue(model.ControlItem(model.EndOfSpeech))
			return
		}
		s.queue.Enqueue(model.AudioItem(msg))
	case websocket.TextMessage:
		s.handleCommand(msg)
	}
}

func (s *Session) handleCommand(msg []byte) {
	var cmd types.Command
	if err := json.Unmarshal(msg, &cmd); err != nil {
		s.logger.Debug("dropping malformed command", "error", err)
		return
	}
	switch cmd.Cmd {
	case types.CmdTTS:
		var data types.TTSData
		if len(cmd.Data) == 0 || json.Unmarshal(cmd.Data, &data) != nil || data.Text == nil {
			s.logger.Debug("dropping tts command without text")
			return
		}
		s.dispatch(*data.Text)
	case types.CmdPing:
	default:
		s.logger.Debug("dropping unknown command", "cmd", cmd.Cmd)
	}
}

func (s *Session) dispatch(text string) {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return
	}
	s.tasks.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.tasks.Done()
		s.synthesis.Handle(s.ctx, text)
	}()
}

func (s *Session) sendTranscript(ev model.TranscriptEvent) {
	s.sender.Send(output.Frame{Payload: types.TranscriptMessage{
		Transcript: ev.Text,
		IsFinal:    ev.IsFinal,
		IsEnd:      ev.IsEnd,
	}})
}

func (s *Session) sendResponse(msg types.ResponseMessage) {
	s.sender.Send(output.Frame{Payload: msg, Binary: true})
}

// Close tears the session down. The recognition worker has exited before the
// socket is closed. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.state != Active {
			s.state = Closed
			s.mu.Unlock()
			return
		}
		s.state = Closing
		s.mu.Unlock()

		s.utterance.Reset()
		s.queue.Enqueue(model.ControlItem(model.Close))
		s.recognition.Stop()
		<-s.recognition.Done()
		s.watchdog.Stop()

		s.sender.Stop()
		s.cancel()
		s.tasks.Wait()

		_ = s.conn.Close()
		s.setState(Closed)
		s.logger.Info("session closed")
	})
}
