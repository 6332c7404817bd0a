package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// TranscriptTableParam is the SSM key, relative to ParamPrefix, naming the
// transcript table when TranscriptTable is not set directly.
const TranscriptTableParam = "transcript_table"

type Config struct {
	Port            int    `env:"PORT,default=8080"`
	LogLevel        string `env:"LOG_LEVEL,default=info"`
	TranscriptTable string `env:"TRANSCRIPT_TABLE"`
	ParamPrefix     string `env:"PARAM_PREFIX"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("config: read environment: %w", err)
	}
	return FromEnvSet(es)
}

// FromEnvSet decodes and validates a Config from es.
func FromEnvSet(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.TranscriptTable = strings.TrimSpace(cfg.TranscriptTable)
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be between 1 and 65535, got %d", c.Port)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// TranscriptsEnabled reports whether any transcript source is configured.
func (c Config) TranscriptsEnabled() bool {
	return c.TranscriptTable != "" || c.ParamPrefix != ""
}

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q: %w", s, err)
	}
	return lvl, nil
}

// NewLogger returns a JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
