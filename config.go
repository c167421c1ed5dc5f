package scriptload

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/goliatone/go-scriptload/ivalue"
)

// Config is the file and environment form of the load options.
type Config struct {
	CodePrefix string   `env:"SCRIPTLOAD_CODE_PREFIX"`
	Device     string   `env:"SCRIPTLOAD_DEVICE"`
	ExtraFiles []string `env:"SCRIPTLOAD_EXTRA_FILES" envSeparator:","`
	Optimize   bool     `env:"SCRIPTLOAD_OPTIMIZE"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		CodePrefix: DefaultCodePrefix,
		Optimize:   true,
	}
}

type fileConfig struct {
	CodePrefix string   `toml:"code_prefix"`
	Device     string   `toml:"device"`
	ExtraFiles []string `toml:"extra_files"`
	Optimize   bool     `toml:"optimize"`
}

// LoadConfigFile reads a TOML config file over DefaultConfig. Keys absent
// from the file keep their defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load scriptload config: %w", err)
	}

	if meta.IsDefined("code_prefix") {
		cfg.CodePrefix = strings.TrimSpace(raw.CodePrefix)
	}
	if meta.IsDefined("device") {
		cfg.Device = strings.TrimSpace(raw.Device)
	}
	if meta.IsDefined("extra_files") {
		cfg.ExtraFiles = normalizeKeys(raw.ExtraFiles)
	}
	if meta.IsDefined("optimize") {
		cfg.Optimize = raw.Optimize
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with SCRIPTLOAD_* environment variables that are
// set.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.ExtraFiles = normalizeKeys(c.ExtraFiles)
	return nil
}

// Options converts the config into load options.
func (c Config) Options() ([]Option, error) {
	opts := []Option{
		WithCodePrefix(c.CodePrefix),
		WithExtraFiles(c.ExtraFiles...),
		withOptimize(c.Optimize),
	}
	if c.Device != "" {
		device, err := ivalue.ParseDevice(c.Device)
		if err != nil {
			return nil, fmt.Errorf("scriptload: config device: %w", err)
		}
		opts = append(opts, WithDevice(device))
	}
	return opts, nil
}

// WithConfig applies cfg. An invalid device fails the load.
func WithConfig(cfg Config) Option {
	opts, err := cfg.Options()
	return func(lc *loadConfig) {
		if err != nil {
			lc.configErr = err
			return
		}
		for _, opt := range opts {
			opt(lc)
		}
	}
}

func normalizeKeys(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, key := range in {
		v := strings.TrimSpace(key)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
