// Package config loads process settings for the relay, the simulator and
// the agent.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	RelayAddr       string   `yaml:"relay_addr" env:"GRIDPUZZLE_RELAY_ADDR"`
	RelayURL        string   `yaml:"relay_url" env:"GRIDPUZZLE_RELAY_URL"`
	HTTPAddr        string   `yaml:"http_addr" env:"GRIDPUZZLE_HTTP_ADDR"`
	AllowedOrigins  []string `yaml:"allowed_origins" env:"GRIDPUZZLE_ALLOWED_ORIGINS" envSeparator:","`
	Human           bool     `yaml:"human" env:"GRIDPUZZLE_HUMAN"`
	Configs         []string `yaml:"configs" env:"GRIDPUZZLE_CONFIGS" envSeparator:","`
	CellSize        float64  `yaml:"cell_size" env:"GRIDPUZZLE_CELL_SIZE"`
	FrameCellPx     int      `yaml:"frame_cell_px" env:"GRIDPUZZLE_FRAME_CELL_PX"`
	LogLevel        string   `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat       string   `yaml:"log_format" env:"LOG_FORMAT"`
	MaxMessageBytes int64    `yaml:"max_message_bytes" env:"GRIDPUZZLE_MAX_MESSAGE_BYTES"`
}

func Defaults() Config {
	return Config{
		RelayAddr:       ":5000",
		RelayURL:        "ws://localhost:5000/ws",
		HTTPAddr:        ":3000",
		AllowedOrigins:  []string{"http://localhost:5173"},
		CellSize:        1,
		FrameCellPx:     32,
		LogLevel:        "info",
		LogFormat:       "text",
		MaxMessageBytes: 8 << 20,
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	d := Defaults()
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.CellSize <= 0 {
		c.CellSize = d.CellSize
	}
	if c.FrameCellPx <= 0 {
		c.FrameCellPx = d.FrameCellPx
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	c.AllowedOrigins = trimList(c.AllowedOrigins)
	c.Configs = trimList(c.Configs)
}

func (c Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	if c.RelayAddr == "" || c.HTTPAddr == "" {
		return fmt.Errorf("%w: relay_addr and http_addr are required", ErrInvalid)
	}
	if !c.Human {
		u, err := url.Parse(c.RelayURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("%w: relay_url must be a ws:// or wss:// url, got %q", ErrInvalid, c.RelayURL)
		}
	}
	if c.Human && len(c.Configs) == 0 {
		return fmt.Errorf("%w: human experiments need at least one entry in configs", ErrInvalid)
	}
	return nil
}

// LoadLevels parses every landmark file into a queue, in the given order.
func LoadLevels(paths []string) (*model.Queue, error) {
	q := model.NewQueue()
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read level %s: %w", p, err)
		}
		data, err := model.ParseLandmarkData(raw)
		if err != nil {
			return nil, fmt.Errorf("level %s: %w", p, err)
		}
		q.Add(p, data)
	}
	return q, nil
}

func trimList(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
