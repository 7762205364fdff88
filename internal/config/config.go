// Package config loads memo settings from .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings shared by the memo binaries.
type Config struct {
	SocketPath string
	DBPath     string

	TranscribeURL     string
	TranscribeTimeout time.Duration

	AudioFormat string
	AudioInput  string
	SampleRate  int
	Channels    int

	ServerAddr   string
	ServerURL    string
	InferenceURL string

	OpenAIKey   string
	OpenAIModel string

	DatabaseURL string
	SupabaseURL string
	SupabaseKey string

	DebugLog string
}

// Load reads the given .env files (".env" when none are named) and builds
// a Config. Missing files are skipped and variables already set in the
// process environment take precedence.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (*Config, error) {
	dir := configDir()
	format, input := defaultAudioInput()

	c := &Config{
		SocketPath:    env("MEMO_SOCKET", filepath.Join(dir, "memo.sock")),
		DBPath:        env("MEMO_DB_PATH", filepath.Join(dir, "memo.sqlite")),
		TranscribeURL: env("MEMO_TRANSCRIBE_URL", "http://localhost:3001/upload"),
		AudioFormat:   env("MEMO_AUDIO_FORMAT", format),
		AudioInput:    env("MEMO_AUDIO_INPUT", input),
		ServerAddr:    env("MEMO_SERVER_ADDR", ":3001"),
		ServerURL:     env("MEMO_SERVER_URL", "http://localhost:3001"),
		InferenceURL:  env("MEMO_INFERENCE_URL", "http://localhost:8001/predict"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   env("OPENAI_MODEL", "gpt-3.5-turbo"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		SupabaseURL:   os.Getenv("SUPABASE_URL"),
		SupabaseKey:   os.Getenv("SUPABASE_KEY"),
		DebugLog:      os.Getenv("MEMO_DEBUG"),
	}

	var err error
	if c.TranscribeTimeout, err = durationEnv("MEMO_TRANSCRIBE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.SampleRate, err = intEnv("MEMO_SAMPLE_RATE", 48000); err != nil {
		return nil, err
	}
	if c.Channels, err = intEnv("MEMO_CHANNELS", 1); err != nil {
		return nil, err
	}
	return c, nil
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "Memo")
}

func defaultAudioInput() (format, input string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":0"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return n, nil
}
