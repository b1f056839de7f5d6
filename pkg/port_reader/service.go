package port_reader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/jacobsa/go-serial/serial"
)

var (
	ErrOpenFailed     = errors.New("failed to open serial port")
	ErrAlreadyStarted = errors.New("serial reader already started")
)

// Initialize a new SerialReader. Nothing is opened until Stream is called.
func NewSerialReader(options Options, opts ...Option) *SerialReader {
	reader := &SerialReader{
		options: options,
		open:    openSerial,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Stream opens the port and sends every valid reading to out until the
// device closes the connection (nil), ctx is cancelled (ctx.Err()), or a
// read fails. Failing to open the port is the only error returned before
// any reading is produced. Malformed lines are skipped without error.
//
// Reads on the port return at least once per read timeout, so a silent
// device still notices cancellation within that time.
func (r *SerialReader) Stream(ctx context.Context, out chan<- types.Reading) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	if err := r.connect(); err != nil {
		return err
	}
	defer r.disconnect()

	// Unblocks ports whose Read returns on Close
	stop := context.AfterFunc(ctx, r.disconnect)
	defer stop()

	if !sleepContext(ctx, r.options.SettleDelay) {
		return ctx.Err()
	}

	reader := bufio.NewReader(r.serialPort)
	// Part of a line read before a read timeout
	var partial []byte
	for {
		line, err := reader.ReadBytes('\n')
		if errors.Is(err, errIdle) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			partial = append(partial, line...)
			continue
		}
		if len(partial) > 0 {
			line = append(partial, line...)
			partial = nil
		}
		if len(line) > 0 {
			if sendErr := r.handleLine(ctx, line, out); sendErr != nil {
				return sendErr
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				r.logger.Info("serial port closed by device", "port", r.options.Port)
				return nil
			}
			return fmt.Errorf("reading serial port %s: %w", r.options.Port, err)
		}
	}
}

func (r *SerialReader) handleLine(ctx context.Context, line []byte, out chan<- types.Reading) error {
	r.metrics.LineRead()

	reading, ok := ParseLine(line, r.options.Unit, r.options.LineChecksum)
	if !ok {
		r.metrics.LineSkipped()
		r.logger.Debug("skipping line", "line", string(line))
		return nil
	}

	r.metrics.ReadingAccepted()
	r.logger.Debug("reading gathered", "unit", reading.Unit, "value", reading.Value)

	select {
	case out <- reading:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open the connection to the serial port.
func (r *SerialReader) connect() error {
	options := serial.OpenOptions{
		PortName:              r.options.Port,
		BaudRate:              r.options.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: readTimeoutMillis(r.options.ReadTimeout),
	}

	port, err := r.open(options)
	if err != nil {
		r.logger.Error("serial port isn't open, verify the correct port has been provided",
			"port", r.options.Port, "error", err)
		return errors.Join(ErrOpenFailed, fmt.Errorf("%s: %w", r.options.Port, err))
	}

	r.mu.Lock()
	r.serialPort = port
	r.mu.Unlock()
	r.logger.Info("serial port is open", "port", r.options.Port, "baud", r.options.BaudRate)
	return nil
}

func (r *SerialReader) disconnect() {
	r.mu.Lock()
	port := r.serialPort
	r.mu.Unlock()
	if port == nil {
		return
	}
	r.closeOnce.Do(func() {
		port.Close()
		r.logger.Debug("disconnected from serial port", "port", r.options.Port)
	})
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
