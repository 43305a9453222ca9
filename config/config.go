// Package config reads relay settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	STTGoogle   = "google"
	STTDeepgram = "deepgram"

	TTSGoogle     = "google"
	TTSElevenLabs = "elevenlabs"
	TTSOpenAI     = "openai"
)

type Config struct {
	Addr   string
	WSPath string

	JWTSecret    string
	JWTCookie    string
	JWTUserClaim string

	// UserLookupURL, when set, is queried per handshake to confirm the
	// token's user still exists.
	UserLookupURL   string
	UserLookupToken string

	STTProvider string
	TTSProvider string

	GoogleCredentialsFile string
	DeepgramAPIKey        string
	ElevenLabsAPIKey      string
	ElevenLabsVoiceID     string
	OpenAIAPIKey          string

	LanguageCode  string
	STTEndTimeout time.Duration
	TTSTimeout    time.Duration
	PingInterval  time.Duration
	WriteTimeout  time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads envFile (".env" when empty) if it exists, then the process
// environment. Values already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (*Config, error) {
	c := &Config{
		Addr:                  getenv("ADDR", ":3000"),
		WSPath:                getenv("WS_PATH", "/ws/stt_tts"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		JWTCookie:             getenv("JWT_COOKIE", "access_token"),
		JWTUserClaim:          getenv("JWT_USER_CLAIM", "user_id"),
		UserLookupURL:         os.Getenv("USER_LOOKUP_URL"),
		UserLookupToken:       os.Getenv("USER_LOOKUP_TOKEN"),
		STTProvider:           strings.ToLower(getenv("STT_PROVIDER", STTGoogle)),
		TTSProvider:           strings.ToLower(getenv("TTS_PROVIDER", TTSGoogle)),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		DeepgramAPIKey:        os.Getenv("DEEPGRAM_API_KEY"),
		ElevenLabsAPIKey:      os.Getenv("ELEVEN_LABS_API_KEY"),
		ElevenLabsVoiceID:     os.Getenv("ELEVEN_LABS_VOICE_ID"),
		OpenAIAPIKey:          os.Getenv("OPEN_AI_API_KEY"),
		LanguageCode:          getenv("LANGUAGE_CODE", "ja-JP"),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		LogFormat:             getenv("LOG_FORMAT", "text"),
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"STT_END_TIMEOUT", time.Second, &c.STTEndTimeout},
		{"TTS_TIMEOUT", 15 * time.Second, &c.TTSTimeout},
		{"WS_PING_INTERVAL", 20 * time.Second, &c.PingInterval},
		{"WS_WRITE_TIMEOUT", 5 * time.Second, &c.WriteTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Validate checks that the selected providers have what they need.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("WS_PATH must start with '/': %q", c.WSPath)
	}

	switch c.STTProvider {
	case STTGoogle:
	case STTDeepgram:
		if c.DeepgramAPIKey == "" {
			return errors.New("DEEPGRAM_API_KEY must be set when STT_PROVIDER=deepgram")
		}
	default:
		return fmt.Errorf("unknown STT_PROVIDER %q", c.STTProvider)
	}

	switch c.TTSProvider {
	case TTSGoogle:
	case TTSElevenLabs:
		if c.ElevenLabsAPIKey == "" || c.ElevenLabsVoiceID == "" {
			return errors.New("ELEVEN_LABS_API_KEY and ELEVEN_LABS_VOICE_ID must be set when TTS_PROVIDER=elevenlabs")
		}
	case TTSOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPEN_AI_API_KEY must be set when TTS_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}
