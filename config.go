package summon

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from YAML strings such as "90s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the server configuration read by the CLI.
//
//	addr: ":8080"
//	key: "change me"
//	callbacks:
//	  max_entries: 10000
//	  ttl: 30m
//	  single_use: false
//	  sweep_interval: 1m
//	hydration:
//	  timeout: 2s
//	log:
//	  level: info
//	  format: auto
type Config struct {
	Addr      string          `yaml:"addr"`
	Key       string          `yaml:"key"`
	Callbacks CallbackConfig  `yaml:"callbacks"`
	Hydration HydrationConfig `yaml:"hydration"`
	Log       LogConfig       `yaml:"log"`
}

// CallbackConfig selects the callback registry's eviction policy.
type CallbackConfig struct {
	MaxEntries    int      `yaml:"max_entries"`
	TTL           Duration `yaml:"ttl"`
	SingleUse     bool     `yaml:"single_use"`
	SweepInterval Duration `yaml:"sweep_interval"`
}

// HydrationConfig tunes client hydration.
type HydrationConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// LogConfig selects the log level and encoding. Format is "console",
// "json" or "auto" (console on a terminal).
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Addr: ":8080",
		Callbacks: CallbackConfig{
			MaxEntries:    10_000,
			TTL:           Duration(30 * time.Minute),
			SweepInterval: Duration(time.Minute),
		},
		Hydration: HydrationConfig{Timeout: Duration(2 * time.Second)},
		Log:       LogConfig{Level: "info", Format: "auto"},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return ReadConfig(f)
}

// ParseConfig parses YAML on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	return ReadConfig(bytes.NewReader(data))
}

// ReadConfig decodes YAML from r on top of DefaultConfig. Unknown keys are
// rejected.
func ReadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr is empty", ErrInvalidConfig)
	case c.Callbacks.MaxEntries < 0:
		return fmt.Errorf("%w: callbacks.max_entries is negative", ErrInvalidConfig)
	case c.Callbacks.TTL < 0:
		return fmt.Errorf("%w: callbacks.ttl is negative", ErrInvalidConfig)
	case c.Callbacks.SweepInterval < 0:
		return fmt.Errorf("%w: callbacks.sweep_interval is negative", ErrInvalidConfig)
	case c.Hydration.Timeout < 0:
		return fmt.Errorf("%w: hydration.timeout is negative", ErrInvalidConfig)
	}
	switch c.Log.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// Options returns the registry options for the configured policy.
func (c CallbackConfig) Options() []RegistryOption {
	var opts []RegistryOption
	if c.MaxEntries > 0 {
		opts = append(opts, WithMaxEntries(c.MaxEntries))
	}
	if c.TTL > 0 {
		opts = append(opts, WithTTL(time.Duration(c.TTL)))
	}
	if c.SingleUse {
		opts = append(opts, WithSingleUse())
	}
	return opts
}
