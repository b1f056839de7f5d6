package port_reader

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/metrics"
	"github.com/NotCoffee418/telem_cli/pkg/units"
	"github.com/jacobsa/go-serial/serial"
)

// OpenFunc opens the serial device. serial.Open in production.
type OpenFunc func(options serial.OpenOptions) (io.ReadWriteCloser, error)

type Options struct {
	Port        string
	Unit        units.Unit
	BaudRate    uint
	ReadTimeout time.Duration
	SettleDelay time.Duration
	// Expect a `!XXXX` CRC16 suffix on every line
	LineChecksum bool
}

// SerialReader turns newline-delimited text from a serial device into
// readings. A reader streams once; open a new one to reconnect.
type SerialReader struct {
	options Options
	open    OpenFunc
	logger  *slog.Logger
	metrics *metrics.Collectors

	mu         sync.Mutex
	started    bool
	serialPort io.ReadWriteCloser
	closeOnce  sync.Once
}

type Option func(*SerialReader)

func WithOpener(open OpenFunc) Option {
	return func(r *SerialReader) {
		r.open = open
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *SerialReader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(r *SerialReader) {
		r.metrics = m
	}
}
