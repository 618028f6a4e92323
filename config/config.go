// Package config loads service settings from defaults, an optional YAML
// file and DUPIMG_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/hubenschmidt/go-dupimg/core"
	"github.com/hubenschmidt/go-dupimg/logging"
	"github.com/hubenschmidt/go-dupimg/phash"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "DUPIMG_"

type Config struct {
	// DatabaseDSN selects the index backend; see index.Open.
	DatabaseDSN string `yaml:"database_dsn"`

	// SimilarityThreshold is the largest Hamming distance at which an
	// ingested image counts as a duplicate. Range: 0-64.
	SimilarityThreshold int `yaml:"similarity_threshold"`

	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MaxPixels bounds width*height of images accepted for hashing.
	MaxPixels int `yaml:"max_pixels"`

	// MaxBodyBytes bounds HTTP request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

func Default() Config {
	return Config{
		DatabaseDSN:         "data/dupimg.db",
		SimilarityThreshold: 10,
		Addr:                ":8000",
		LogLevel:            "info",
		LogFormat:           logging.FormatText,
		MaxPixels:           phash.DefaultMaxPixels,
		MaxBodyBytes:        20 << 20,
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.DatabaseDSN = v
	}

	strs := map[string]*string{
		"DATABASE_DSN": &c.DatabaseDSN,
		"ADDR":         &c.Addr,
		"LOG_LEVEL":    &c.LogLevel,
		"LOG_FORMAT":   &c.LogFormat,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SIMILARITY_THRESHOLD": &c.SimilarityThreshold,
		"MAX_PIXELS":           &c.MaxPixels,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "MAX_BODY_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err)
		}
		c.MaxBodyBytes = n
	}
	return nil
}

func (c Config) Validate() error {
	if err := core.ValidateThreshold(c.SimilarityThreshold); err != nil {
		return fmt.Errorf("similarity_threshold: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		return fmt.Errorf("log_format: unknown format %q", c.LogFormat)
	}
	if c.MaxPixels <= 0 {
		return fmt.Errorf("max_pixels must be positive, got %d", c.MaxPixels)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}
