package forwarder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/metrics"
	"github.com/NotCoffee418/telem_cli/pkg/types"
)

const (
	DefaultBatchSize = 10
	// One call plus up to two retries
	MaxAttempts = 3
)

var (
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrInvalidSensorID  = errors.New("sensor id must be positive")
	ErrNilSubmitter     = errors.New("submitter is required")
)

// Forwarder groups readings into fixed-size batches and submits each full
// batch with a bounded number of attempts. It is not safe for concurrent
// use; the goroutine calling Add or Run owns the buffer.
type Forwarder struct {
	options   Options
	submitter Submitter
	logger    *slog.Logger
	metrics   *metrics.Collectors
	onResult  func(Result)
	onReading func(types.Reading)
	sleep     func(ctx context.Context, d time.Duration) bool

	buffer []types.Reading
}

type Option func(*Forwarder)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Collectors) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

// WithResultHandler is called once per submitted batch.
func WithResultHandler(handle func(Result)) Option {
	return func(f *Forwarder) {
		f.onResult = handle
	}
}

// WithReadingHandler is called for every reading as it enters the buffer.
func WithReadingHandler(handle func(types.Reading)) Option {
	return func(f *Forwarder) {
		f.onReading = handle
	}
}

func New(options Options, submitter Submitter, opts ...Option) (*Forwarder, error) {
	if options.BatchSize == 0 {
		options.BatchSize = DefaultBatchSize
	}
	if options.BatchSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, options.BatchSize)
	}
	if options.SensorID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSensorID, options.SensorID)
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}

	f := &Forwarder{
		options:   options,
		submitter: submitter,
		logger:    slog.Default(),
		sleep:     sleepContext,
		buffer:    make([]types.Reading, 0, options.BatchSize),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Add appends a reading and submits the buffer once it holds exactly
// BatchSize readings. The bool reports whether a submission happened.
func (f *Forwarder) Add(ctx context.Context, reading types.Reading) (Result, bool) {
	f.buffer = append(f.buffer, reading)
	f.metrics.SetBufferSize(len(f.buffer))
	if f.onReading != nil {
		f.onReading(reading)
	}

	if len(f.buffer) < f.options.BatchSize {
		return Result{}, false
	}

	f.logger.Info("batch size reached", "sensor_id", f.options.SensorID, "size", len(f.buffer))
	return f.submit(ctx), true
}

// Flush submits whatever is buffered, full or not. Streaming never calls
// this; file ingestion does once its input is exhausted.
func (f *Forwarder) Flush(ctx context.Context) (Result, bool) {
	if len(f.buffer) == 0 {
		return Result{}, false
	}
	return f.submit(ctx), true
}

// Pending is the number of buffered readings not yet submitted.
func (f *Forwarder) Pending() int {
	return len(f.buffer)
}

// Run feeds every reading from in through Add until in is closed (nil) or
// ctx ends (ctx.Err()). A partial batch left at that point is not sent.
func (f *Forwarder) Run(ctx context.Context, in <-chan types.Reading) error {
	for {
		select {
		case <-ctx.Done():
			f.logPending()
			return ctx.Err()
		case reading, ok := <-in:
			if !ok {
				f.logPending()
				return nil
			}
			f.Add(ctx, reading)
		}
	}
}

func (f *Forwarder) submit(ctx context.Context) Result {
	batch := types.ReadingBatch{
		Readings: append([]types.Reading(nil), f.buffer...),
	}
	result := Result{
		Status:   StatusDropped,
		SensorID: f.options.SensorID,
		Size:     len(batch.Readings),
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := f.backoff(attempt - 1)
			f.logger.Warn("error pushing data, retrying",
				"sensor_id", f.options.SensorID,
				"attempt", attempt,
				"max_attempts", MaxAttempts,
				"delay", delay,
				"error", result.Err)
			if !f.sleep(ctx, delay) {
				result.Err = errors.Join(result.Err, ctx.Err())
				break
			}
		}

		f.metrics.SubmitAttempt()
		result.Attempts = attempt
		response, err := f.submitter.PushSensorData(ctx, f.options.SensorID, batch)
		if err == nil {
			result.Status = StatusDelivered
			result.Response = response
			result.Err = nil
			break
		}
		result.Err = err
		if ctx.Err() != nil {
			break
		}
	}

	// Cleared whatever happened; a dropped batch is never re-queued
	f.buffer = f.buffer[:0]
	f.metrics.SetBufferSize(0)
	result.FinishedAt = time.Now()

	if result.Delivered() {
		f.metrics.BatchDelivered()
		f.logger.Info("batch delivered",
			"sensor_id", result.SensorID, "size", result.Size, "attempts", result.Attempts)
	} else {
		f.metrics.BatchDropped()
		f.logger.Error("batch dropped",
			"sensor_id", result.SensorID, "size", result.Size, "attempts", result.Attempts, "error", result.Err)
	}

	if f.onResult != nil {
		f.onResult(result)
	}
	return result
}

// backoff returns the wait before the given retry (1-based).
func (f *Forwarder) backoff(retry int) time.Duration {
	base := f.options.RetryBackoff
	if base <= 0 {
		return 0
	}
	delay := base << (retry - 1)
	if maxDelay := f.options.MaxRetryBackoff; maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func (f *Forwarder) logPending() {
	if n := len(f.buffer); n > 0 {
		f.logger.Info("input ended with a partial batch, not submitted",
			"sensor_id", f.options.SensorID, "pending", n, "batch_size", f.options.BatchSize)
	}
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
