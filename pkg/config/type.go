package config

import "time"

type Config struct {
	APIURL      string   `toml:"api_url"`
	TokenPath   string   `toml:"token_path"`
	HTTPTimeout Duration `toml:"http_timeout"`
	LogLevel    string   `toml:"log_level"`
	HistoryDb   string   `toml:"history_db"`

	Serial SerialConfig `toml:"serial"`
	Stream StreamConfig `toml:"stream"`
}

type SerialConfig struct {
	Device      string   `toml:"device"`
	Baudrate    uint     `toml:"baudrate"`
	ReadTimeout Duration `toml:"read_timeout"`
	// Boot noise from Arduino-style boards is skipped by waiting this long
	// after opening the port.
	SettleDelay Duration `toml:"settle_delay"`
	// Lines carry a `!XXXX` CRC16 suffix
	LineChecksum bool `toml:"line_checksum"`
}

type StreamConfig struct {
	BatchSize       int      `toml:"batch_size"`
	QueueSize       int      `toml:"queue_size"`
	RetryBackoff    Duration `toml:"retry_backoff"`
	MaxRetryBackoff Duration `toml:"max_retry_backoff"`
	// Empty disables the live monitor
	MonitorListen string `toml:"monitor_listen"`
}

// Duration is a time.Duration stored as a string like "2s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
