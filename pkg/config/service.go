package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/telem_cli/pkg/pathing"
)

const DefaultAPIURL = "http://127.0.0.1:5000/api"

// Serial read timeouts are set in tenths of a second, one byte wide.
const (
	MinSerialReadTimeout = 100 * time.Millisecond
	MaxSerialReadTimeout = 25500 * time.Millisecond
)

var ErrInvalidConfig = errors.New("invalid config")

func Default() *Config {
	return &Config{
		APIURL:      DefaultAPIURL,
		TokenPath:   pathing.GetDefaultTokenPath(),
		HTTPTimeout: Duration{10 * time.Second},
		LogLevel:    "info",
		HistoryDb:   pathing.GetHistoryDbPath(),
		Serial: SerialConfig{
			Device:      "/dev/cu.usbmodem1101",
			Baudrate:    9600,
			ReadTimeout: Duration{time.Second},
			SettleDelay: Duration{2 * time.Second},
		},
		Stream: StreamConfig{
			BatchSize:       10,
			QueueSize:       256,
			RetryBackoff:    Duration{500 * time.Millisecond},
			MaxRetryBackoff: Duration{5 * time.Second},
		},
	}
}

// Load reads the config file at path, writing the defaults there first
// if it does not exist yet. Environment overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
	} else {
		// Keys missing from the file keep their defaults
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.TokenPath = pathing.ExpandHome(cfg.TokenPath)
	cfg.HistoryDb = pathing.ExpandHome(cfg.HistoryDb)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	if err := pathing.EnsureParentDir(path, 0o755); err != nil {
		return err
	}
	cfgFile, err := os.Create(path)
	if err != nil {
		return err
	}
	defer cfgFile.Close()
	if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// Legacy variable name, still honoured
	if v := os.Getenv("API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TELEM_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("TELEM_TOKEN_PATH"); v != "" {
		cfg.TokenPath = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, fmt.Errorf("api_url is empty"))
	}
	if c.TokenPath == "" {
		errs = append(errs, fmt.Errorf("token_path is empty"))
	}
	if c.Serial.Baudrate == 0 {
		errs = append(errs, fmt.Errorf("serial.baudrate must be positive"))
	}
	if rt := c.Serial.ReadTimeout.Duration; rt < MinSerialReadTimeout || rt > MaxSerialReadTimeout {
		errs = append(errs, fmt.Errorf("serial.read_timeout must be between %s and %s, got %s",
			MinSerialReadTimeout, MaxSerialReadTimeout, rt))
	}
	if c.Stream.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("stream.batch_size must be at least 1"))
	}
	if c.Stream.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("stream.queue_size must be at least 1"))
	}
	durations := map[string]Duration{
		"http_timeout":             c.HTTPTimeout,
		"serial.read_timeout":      c.Serial.ReadTimeout,
		"serial.settle_delay":      c.Serial.SettleDelay,
		"stream.retry_backoff":     c.Stream.RetryBackoff,
		"stream.max_retry_backoff": c.Stream.MaxRetryBackoff,
	}
	for key, d := range durations {
		if d.Duration < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}
	if len(errs) > 0 {
		return errors.Join(ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
