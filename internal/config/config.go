package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexiworks/lexisurvey/internal/embedding"
	"github.com/lexiworks/lexisurvey/internal/questiongen"
	"github.com/lexiworks/lexisurvey/internal/scoring"
	"github.com/lexiworks/lexisurvey/internal/store"
	"github.com/lexiworks/lexisurvey/internal/survey"
)

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Store     store.Config       `yaml:"store"`
	ItemBank  ItemBankConfig     `yaml:"item_bank"`
	Embedding embedding.Config   `yaml:"embedding"`
	Survey    SurveyConfig       `yaml:"survey"`
	Generator questiongen.Config `yaml:"generator"`
	Scoring   scoring.Config     `yaml:"scoring"`
	Log       LogConfig          `yaml:"log"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Item bank sources.
const (
	SourceSeed  = "seed"
	SourceFile  = "file"
	SourceMongo = "mongo"
)

// ItemBankConfig selects where items come from.
type ItemBankConfig struct {
	// Source is "seed" (embedded demo bank), "file" or "mongo".
	Source string `yaml:"source"`

	// Path is the JSON bank file for the "file" source.
	Path string `yaml:"path"`

	Mongo MongoConfig `yaml:"mongo"`
}

// MongoConfig locates the item collection.
type MongoConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SurveyConfig tunes the phase controller.
type SurveyConfig struct {
	StartRank int             `yaml:"start_rank"`
	Window    int             `yaml:"window"`
	Schedule  survey.Schedule `yaml:"schedule"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Store: store.DefaultConfig(),
		ItemBank: ItemBankConfig{
			Source: SourceSeed,
			Mongo: MongoConfig{
				Database:   "lexisurvey",
				Collection: "items",
				Timeout:    10 * time.Second,
			},
		},
		Embedding: embedding.DefaultConfig(),
		Survey: SurveyConfig{
			StartRank: survey.DefaultStartRank,
			Window:    survey.DefaultWindow,
			Schedule:  survey.DefaultSchedule(),
		},
		Generator: questiongen.DefaultConfig(),
		Scoring:   scoring.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the file at DefaultPath when it exists.
func LoadDefault() (Config, error) {
	p, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	cfg, err := Load(p)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// DefaultPath resolves the config file path:
// 1. LEXISURVEY_CONFIG environment variable
// 2. $XDG_CONFIG_HOME/lexisurvey/config.yaml
// 3. ~/.config/lexisurvey/config.yaml
func DefaultPath() (string, error) {
	if p := os.Getenv("LEXISURVEY_CONFIG"); p != "" {
		return p, nil
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "lexisurvey", "config.yaml"), nil
}

// ApplyEnv overrides cfg from LEXISURVEY_* variables and provider API
// keys.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LEXISURVEY_DB"); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv("LEXISURVEY_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("LEXISURVEY_REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("LEXISURVEY_BANK"); v != "" {
		c.ItemBank.Source = SourceFile
		c.ItemBank.Path = v
	}
	if v := os.Getenv("LEXISURVEY_MONGO_URI"); v != "" {
		c.ItemBank.Source = SourceMongo
		c.ItemBank.Mongo.URI = v
	}
	if v := os.Getenv("LEXISURVEY_HTTP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LEXISURVEY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	c.Embedding.ApplyEnv()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.ItemBank.Source {
	case SourceSeed:
	case SourceFile:
		if c.ItemBank.Path == "" {
			errs = append(errs, errors.New("item_bank.path is required for the file source"))
		}
	case SourceMongo:
		if c.ItemBank.Mongo.URI == "" {
			errs = append(errs, errors.New("item_bank.mongo.uri is required for the mongo source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown item_bank.source %q", c.ItemBank.Source))
	}
	if err := c.Embedding.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Survey.Schedule.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("survey.schedule: %w", err))
	}
	if c.Survey.StartRank < 1 {
		errs = append(errs, errors.New("survey.start_rank must be positive"))
	}
	if c.Survey.Window < 0 {
		errs = append(errs, errors.New("survey.window must not be negative"))
	}
	if _, err := scoring.NewFitter(c.Scoring); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
