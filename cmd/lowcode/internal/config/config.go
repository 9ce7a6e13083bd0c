package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/recera/lowcode/internal/cache"
	"github.com/recera/lowcode/pkg/markup"
	"github.com/recera/lowcode/pkg/script"
)

// FileName is the project configuration file.
const FileName = "lowcode.yaml"

// Config represents the lowcode.yaml configuration
type Config struct {
	// Directory holding page files (.yaml / .json)
	PagesDir string `yaml:"pagesDir" validate:"required"`

	// Directory receiving generated .vue documents
	OutDir string `yaml:"outDir" validate:"required"`

	// Component registry file; empty uses the built-in registry
	Registry string `yaml:"registry,omitempty"`

	Generate *GenerateConfig `yaml:"generate" validate:"required"`
	Cache    *CacheConfig    `yaml:"cache" validate:"required"`
	Store    *StoreConfig    `yaml:"store" validate:"required"`
	Dev      *DevConfig      `yaml:"dev" validate:"required"`
}

// GenerateConfig controls document generation
type GenerateConfig struct {
	// Script API style: "composition" | "options"
	Style string `yaml:"style" validate:"oneof=composition options"`

	// When nodes carry class tokens: "styled" | "always" | "never"
	Class string `yaml:"class" validate:"oneof=styled always never"`

	// Whether to minify the style block
	Minify bool `yaml:"minify,omitempty"`
}

// CacheConfig contains generated-output cache configuration
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir,omitempty"`
	MaxSize  int64         `yaml:"maxSize" validate:"gte=0"`
	MaxAge   time.Duration `yaml:"maxAge" validate:"gte=0"`
	Strategy string        `yaml:"strategy" validate:"oneof=lru lfu fifo"`
}

// StoreConfig contains snapshot database configuration
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`

	// Snapshots kept per page after a save; 0 keeps all
	Keep int `yaml:"keep,omitempty" validate:"gte=0"`
}

// DevConfig contains development server configuration
type DevConfig struct {
	Host     string        `yaml:"host" validate:"required"`
	Port     int           `yaml:"port" validate:"min=1,max=65535"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

var validate = validator.New()

// Load loads configuration from lowcode.yaml in projectPath. A missing file
// yields the default configuration.
func Load(projectPath string) (*Config, error) {
	configPath := filepath.Join(projectPath, FileName)

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return &config, nil
}

// Save saves configuration to lowcode.yaml
func Save(config *Config, projectPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(projectPath, FileName), data, 0644)
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		PagesDir: "pages",
		OutDir:   "dist",
		Generate: &GenerateConfig{
			Style: string(script.Composition),
			Class: "styled",
		},
		Cache: &CacheConfig{
			Enabled:  true,
			MaxSize:  64 << 20,
			MaxAge:   7 * 24 * time.Hour,
			Strategy: "lru",
		},
		Store: &StoreConfig{
			Path: ".lowcode/snapshots.db",
		},
		Dev: &DevConfig{
			Host:     "localhost",
			Port:     8080,
			Debounce: 150 * time.Millisecond,
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.PagesDir == "" {
		config.PagesDir = defaults.PagesDir
	}
	if config.OutDir == "" {
		config.OutDir = defaults.OutDir
	}

	if config.Generate == nil {
		config.Generate = defaults.Generate
	} else {
		if config.Generate.Style == "" {
			config.Generate.Style = defaults.Generate.Style
		}
		if config.Generate.Class == "" {
			config.Generate.Class = defaults.Generate.Class
		}
	}

	// A cache section that is present but empty keeps caching off.
	if config.Cache == nil {
		config.Cache = defaults.Cache
	} else if config.Cache.Strategy == "" {
		config.Cache.Strategy = defaults.Cache.Strategy
	}

	if config.Store == nil {
		config.Store = defaults.Store
	} else if config.Store.Path == "" {
		config.Store.Path = defaults.Store.Path
	}

	if config.Dev == nil {
		config.Dev = defaults.Dev
	} else {
		if config.Dev.Host == "" {
			config.Dev.Host = defaults.Dev.Host
		}
		if config.Dev.Port == 0 {
			config.Dev.Port = defaults.Dev.Port
		}
		if config.Dev.Debounce == 0 {
			config.Dev.Debounce = defaults.Dev.Debounce
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ScriptStyle returns the configured script API style.
func (c *Config) ScriptStyle() script.Style {
	s, err := script.ParseStyle(c.Generate.Style)
	if err != nil {
		return script.Composition
	}
	return s
}

// ClassMode returns the configured class token mode.
func (c *Config) ClassMode() markup.ClassMode {
	switch c.Generate.Class {
	case "always":
		return markup.ClassAlways
	case "never":
		return markup.ClassNever
	}
	return markup.ClassStyled
}

// CacheConfig returns the cache settings with paths resolved against root.
func (c *Config) CacheConfig(root string) cache.Config {
	out := cache.DefaultConfig()
	if c.Cache.Dir != "" {
		out.Dir = Resolve(root, c.Cache.Dir)
	}
	out.MaxSize = c.Cache.MaxSize
	out.MaxAge = c.Cache.MaxAge
	if s, err := cache.ParseStrategy(c.Cache.Strategy); err == nil {
		out.Strategy = s
	}
	return out
}

// Addr returns the dev server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Dev.Host, c.Dev.Port)
}

// Resolve joins a relative path onto root.
func Resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
