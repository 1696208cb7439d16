// Package config loads colortrack settings from defaults, a YAML file and
// COLORTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/colortrack/internal/colour"
)

// AppSlug names the per-user config and data directories.
const AppSlug = "colortrack"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COLORTRACK_"

// Config holds all user-tunable settings.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	DBPath       string `yaml:"db_path"`
	ImageDir     string `yaml:"image_dir"`
	ColorCount   int    `yaml:"colour_count"`
	Algorithm    string `yaml:"algorithm"`
	LogLevel     string `yaml:"log_level"`
	LogJSON      bool   `yaml:"log_json"`
	DeleteImages bool   `yaml:"delete_images"`
}

// Default returns the built-in configuration. Paths are left empty and
// derived from DataDir by Load.
func Default() Config {
	extractor := colour.DefaultExtractorConfig()
	return Config{
		ColorCount:   extractor.ColorCount,
		Algorithm:    string(extractor.Algorithm),
		LogLevel:     "info",
		DeleteImages: true,
	}
}

// DefaultConfigPath returns <user config dir>/colortrack/config.yaml.
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, AppSlug, "config.yaml"), nil
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path means the default location, which may be
// absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	if err := cfg.mergeFile(path, explicit); err != nil {
		return Config{}, err
	}
	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.fillPaths(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path) // #nosec G304 - User-specified config path, intended to be read
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	strs := map[string]*string{
		"DATA_DIR":  &c.DataDir,
		"DB_PATH":   &c.DBPath,
		"IMAGE_DIR": &c.ImageDir,
		"ALGORITHM": &c.Algorithm,
		"LOG_LEVEL": &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "COLOURS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %sCOLOURS: %w", EnvPrefix, err)
		}
		c.ColorCount = n
	}

	bools := map[string]*bool{
		"DELETE_IMAGES": &c.DeleteImages,
		"LOG_JSON":      &c.LogJSON,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}

	return nil
}

func (c *Config) fillPaths() error {
	if c.DataDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("resolve user config dir: %w", err)
		}
		c.DataDir = filepath.Join(configDir, AppSlug)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "colortrack.db")
	}
	if c.ImageDir == "" {
		c.ImageDir = filepath.Join(c.DataDir, "images")
	}
	return nil
}

// WithDerivedPaths returns cfg with empty paths derived from DataDir.
func WithDerivedPaths(cfg Config) (Config, error) {
	if err := cfg.fillPaths(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Extractor returns the extraction settings.
func (c Config) Extractor() colour.ExtractorConfig {
	return colour.ExtractorConfig{
		Algorithm:  colour.Algorithm(c.Algorithm),
		ColorCount: c.ColorCount,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if err := c.Extractor().Validate(); err != nil {
		return fmt.Errorf("invalid extractor settings: %w", err)
	}
	if c.DBPath == "" {
		return errors.New("db path is required")
	}
	if c.ImageDir == "" {
		return errors.New("image dir is required")
	}
	return nil
}
