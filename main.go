package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrsingh-rishi/voice-relay/auth"
	"github.com/mrsingh-rishi/voice-relay/config"
	"github.com/mrsingh-rishi/voice-relay/output"
	"github.com/mrsingh-rishi/voice-relay/server"
	"github.com/mrsingh-rishi/voice-relay/session"
	"github.com/mrsingh-rishi/voice-relay/stt"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	addr     string
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:          "voice-relay",
		Short:        "Relay browser audio to speech recognition and text to speech synthesis over WebSocket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			logger := cfg.Logger(os.Stderr)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (overrides ADDR)")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "dotenv file to load if present")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	return cmd
}

func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func sessionConfig(cfg *config.Config) session.Config {
	sc := session.DefaultConfig()
	sc.Recognition = stt.DefaultConfig(cfg.LanguageCode)
	sc.Voice.LanguageCode = cfg.LanguageCode
	sc.EndOfSpeechTimeout = cfg.STTEndTimeout
	sc.SynthesisTimeout = cfg.TTSTimeout
	sc.Output = output.Config{
		PingInterval: cfg.PingInterval,
		WriteTimeout: cfg.WriteTimeout,
	}
	return sc
}

func newResolver(cfg *config.Config, logger *slog.Logger) (*auth.JWTCookieResolver, error) {
	var users auth.UserLookup = auth.AnyUser
	if cfg.UserLookupURL != "" {
		lookup, err := auth.NewHTTPUserLookup(cfg.UserLookupURL, cfg.UserLookupToken)
		if err != nil {
			return nil, err
		}
		users = lookup
	}
	r := auth.NewJWTCookieResolver(cfg.JWTSecret, cfg.JWTCookie, cfg.JWTUserClaim, users)
	r.Logger = logger
	return r, nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	recognizer, closeRecognizer, err := newRecognizer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRecognizer()

	synthesizer, closeSynthesizer, err := newSynthesizer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSynthesizer()

	resolver, err := newResolver(cfg, logger)
	if err != nil {
		return err
	}

	deps := session.Deps{
		Resolver:    resolver,
		Recognizer:  recognizer,
		Synthesizer: synthesizer,
	}
	srv := server.New(server.Config{WSPath: cfg.WSPath, Session: sessionConfig(cfg)}, deps, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
