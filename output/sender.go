// Package output serializes every write a session makes to its socket.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gofiber/websocket/v2"
)

// DefaultBrotliQuality is the compression level for binary envelopes.
const DefaultBrotliQuality = 4

// Writer is the subset of a websocket connection the sender needs.
type Writer interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
}

// Frame is one outbound envelope. Binary frames are JSON encoded, Brotli
// compressed and written as binary messages; the rest go out as JSON text.
type Frame struct {
	Payload interface{}
	Binary  bool
}

type Config struct {
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	Buffer        int
	BrotliQuality int
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
	if c.BrotliQuality <= 0 {
		c.BrotliQuality = DefaultBrotliQuality
	}
	return c
}

// Sender owns the write side of one socket.
type Sender struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     Writer
	cfg    Config
	logger *slog.Logger
	frames chan Frame
	done   chan struct{}
	start  sync.Once
}

func NewSender(ws Writer, cfg Config, logger *slog.Logger) *Sender {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sender{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		cfg:    cfg,
		logger: logger,
		frames: make(chan Frame, cfg.Buffer),
		done:   make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (s *Sender) Start() {
	s.start.Do(func() {
		go s.run()
	})
}

// Send queues f for writing. It reports false, without error, once the
// sender has stopped.
func (s *Sender) Send(f Frame) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.frames <- f:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Stop flushes what is already queued and waits for the writer to exit.
func (s *Sender) Stop() {
	s.cancel()
	s.start.Do(func() {
		close(s.done)
	})
	<-s.done
}

func (s *Sender) run() {
	defer close(s.done)

	var ping <-chan time.Time
	if s.cfg.PingInterval > 0 {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-s.ctx.Done():
			s.flush()
			return
		case <-ping:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping write failed", "error", err)
				s.cancel()
				return
			}
		case f := <-s.frames:
			if err := s.write(f); err != nil {
				s.logger.Warn("socket write failed", "error", err)
				s.cancel()
				return
			}
		}
	}
}

func (s *Sender) flush() {
	for {
		select {
		case f := <-s.frames:
			if err := s.write(f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Sender) write(f Frame) error {
	data, err := json.Marshal(f.Payload)
	if err != nil {
		s.logger.Error("marshal outbound frame", "error", err)
		return nil
	}
	messageType := websocket.TextMessage
	if f.Binary {
		if data, err = Compress(data, s.cfg.BrotliQuality); err != nil {
			s.logger.Error("compress outbound frame", "error", err)
			return nil
		}
		messageType = websocket.BinaryMessage
	}
	if err := s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.ws.WriteMessage(messageType, data)
}

// Compress Brotli-encodes data at the given quality.
func Compress(data []byte, quality int) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, quality)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
