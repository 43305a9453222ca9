// Package server exposes the relay over HTTP: a health probe and the
// authenticated WebSocket endpoint that hosts one session per connection.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/voice-relay/auth"
	"github.com/mrsingh-rishi/voice-relay/session"
)

const (
	DefaultWSPath = "/ws/stt_tts"
	localsSession = "session"
)

type Config struct {
	WSPath  string
	Session session.Config
}

type Server struct {
	app    *fiber.App
	cfg    Config
	deps   session.Deps
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closing bool
	active  sync.WaitGroup
}

func New(cfg Config, deps session.Deps, logger *slog.Logger) *Server {
	if cfg.WSPath == "" {
		cfg.WSPath = DefaultWSPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:    fiber.New(fiber.Config{DisableStartupMessage: true}),
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	s.routes()
	return s
}

// App is the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Identity is resolved before the upgrade so a rejected caller never
	// gets an accepted socket.
	s.app.Use(s.cfg.WSPath, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		creds := auth.Credentials{Cookies: map[string]string{}}
		c.Request().Header.VisitAllCookie(func(key, value []byte) {
			creds.Cookies[string(key)] = string(value)
		})

		sess := session.New(s.deps, s.cfg.Session, s.logger)
		if _, err := sess.Connect(c.UserContext(), creds); err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals(localsSession, sess)
		return c.Next()
	})

	s.app.Get(s.cfg.WSPath, websocket.New(s.handle))
}

func (s *Server) handle(conn *websocket.Conn) {
	sess, ok := conn.Locals(localsSession).(*session.Session)
	if !ok {
		_ = conn.Close()
		return
	}
	if !s.track() {
		sess.Close()
		_ = conn.Close()
		return
	}
	defer s.active.Done()

	if err := sess.Serve(s.ctx, conn); err != nil {
		s.logger.Warn("session ended with error", "session_id", sess.ID, "error", err)
	}
}

func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.active.Add(1)
	return true
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("relay listening", "addr", addr, "ws_path", s.cfg.WSPath)
	return s.app.Listen(addr)
}

func (s *Server) Listener(ln net.Listener) error {
	s.logger.Info("relay listening", "addr", ln.Addr().String(), "ws_path", s.cfg.WSPath)
	return s.app.Listener(ln)
}

// Shutdown tears down every live session, waits for them to finish and then
// stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("sessions still open at shutdown deadline")
	}

	if err := s.app.ShutdownWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
