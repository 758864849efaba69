package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jvlax/motord/internal/catalog"
	"github.com/jvlax/motord/internal/engine"
)

// Config holds application configuration
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string // "json" or "console"

	WordlistPath string
	CatalogDSN   string // when set, words come from Postgres instead of the word list
	Languages    [2]string

	Game engine.Settings

	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration

	WSRatePerSec   float64
	WSBurst        int
	AllowedOrigins []string
}

// Load reads an optional .env file, then the environment, with defaults for
// everything.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from lookup, usually os.Getenv.
func FromEnv(lookup func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	intVar := func(key string, def int) int {
		n, err := strconv.Atoi(get(key, strconv.Itoa(def)))
		if err != nil || n < 1 {
			errs = append(errs, fmt.Errorf("%s: want a positive integer", key))
			return def
		}
		return n
	}
	durationVar := func(key string, def time.Duration) time.Duration {
		d, err := time.ParseDuration(get(key, def.String()))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: want a positive duration", key))
			return def
		}
		return d
	}

	cfg := &Config{
		Port:             get("PORT", "8080"),
		LogLevel:         get("LOG_LEVEL", "info"),
		LogFormat:        get("LOG_FORMAT", "json"),
		WordlistPath:     get("WORDLIST_PATH", "./data/words.jsonl"),
		CatalogDSN:       get("CATALOG_DSN", ""),
		HeartbeatTimeout: durationVar("HEARTBEAT_TIMEOUT", 60*time.Second),
		SweepInterval:    durationVar("SWEEP_INTERVAL", 15*time.Second),
		WSBurst:          intVar("WS_BURST", 10),
		Game: engine.Settings{
			Difficulty:  strings.ToLower(get("DEFAULT_DIFFICULTY", catalog.DifficultyMedium)),
			Target:      intVar("DEFAULT_TARGET", engine.DefaultTarget),
			FuseSeconds: intVar("FUSE_SECONDS", engine.DefaultFuseSeconds),
			EndMode:     engine.EndMode(strings.ToLower(get("END_MODE", string(engine.EndByWords)))),
		},
	}

	rate, err := strconv.ParseFloat(get("WS_RATE_PER_SEC", "5"), 64)
	if err != nil || rate <= 0 {
		errs = append(errs, errors.New("WS_RATE_PER_SEC: want a positive number"))
		rate = 5
	}
	cfg.WSRatePerSec = rate

	langs := strings.Split(get("LANGUAGES", "fr,sv"), ",")
	if len(langs) != 2 || strings.TrimSpace(langs[0]) == "" || strings.TrimSpace(langs[1]) == "" {
		errs = append(errs, errors.New("LANGUAGES: want exactly two comma separated codes"))
	} else {
		cfg.Languages = [2]string{strings.TrimSpace(langs[0]), strings.TrimSpace(langs[1])}
	}

	if cfg.Game.EndMode != engine.EndByWords && cfg.Game.EndMode != engine.EndByScore {
		errs = append(errs, fmt.Errorf("END_MODE: unknown mode %q", cfg.Game.EndMode))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: unknown format %q", cfg.LogFormat))
	}

	for _, o := range strings.Split(get("ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Addr() string { return ":" + c.Port }

// Logger builds the process logger from LogLevel and LogFormat.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
