package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHEETCALC_"

type Config struct {
	Server Server         `yaml:"server"`
	Store  Store          `yaml:"store"`
	Engine calc.Limits    `yaml:"engine"`
	Log    logging.Config `yaml:"log"`
}

type Server struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type Store struct {
	Path string `yaml:"path"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", MaxBodyBytes: 8 << 20},
		Store:  Store{Path: "sheetcalc.db"},
		Engine: calc.DefaultLimits,
		Log:    logging.Config{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults and then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := Parse(bytes.NewReader(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML into cfg, keeping fields the document leaves out.
// Unknown keys are rejected.
func Parse(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from SHEETCALC_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, set func(int64)) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		set(n)
		return nil
	}

	str("SERVER_ADDR", &c.Server.Addr)
	str("STORE_PATH", &c.Store.Path)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	if err := num("SERVER_MAX_BODY_BYTES", func(n int64) { c.Server.MaxBodyBytes = n }); err != nil {
		return err
	}
	if err := num("ENGINE_MAX_DEPTH", func(n int64) { c.Engine.MaxDepth = int(n) }); err != nil {
		return err
	}
	return num("ENGINE_MAX_VISITS", func(n int64) { c.Engine.MaxVisits = int(n) })
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Engine.MaxDepth <= 0 || c.Engine.MaxVisits <= 0 {
		return fmt.Errorf("engine limits must be positive")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	return nil
}
