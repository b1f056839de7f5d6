package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/metrics"
	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	sensorID int
	batch    types.ReadingBatch
}

// scriptedSubmitter fails its first failures calls, then succeeds.
// failures < 0 always fails.
type scriptedSubmitter struct {
	mu       sync.Mutex
	failures int
	calls    []call
}

func (s *scriptedSubmitter) PushSensorData(_ context.Context, sensorID int, batch types.ReadingBatch) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{sensorID: sensorID, batch: batch})
	if s.failures < 0 || len(s.calls) <= s.failures {
		return nil, errors.New("500 internal server error")
	}
	return json.RawMessage(`{"inserted":true}`), nil
}

func (s *scriptedSubmitter) recorded() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestForwarder(t *testing.T, batchSize int, submitter Submitter, opts ...Option) *Forwarder {
	t.Helper()
	f, err := New(Options{SensorID: 7, BatchSize: batchSize}, submitter, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return f
}

func reading(v float64) types.Reading {
	return types.Reading{Unit: "m", Value: v}
}

func TestNewValidatesOptions(t *testing.T) {
	sub := &scriptedSubmitter{}

	f, err := New(Options{SensorID: 1}, sub)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, f.options.BatchSize)

	_, err = New(Options{SensorID: 1, BatchSize: -1}, sub)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = New(Options{SensorID: 0, BatchSize: 3}, sub)
	assert.ErrorIs(t, err, ErrInvalidSensorID)

	_, err = New(Options{SensorID: 1, BatchSize: 3}, nil)
	assert.ErrorIs(t, err, ErrNilSubmitter)
}

func TestSubmitsExactlyAtThreshold(t *testing.T) {
	sub := &scriptedSubmitter{}
	f := newTestForwarder(t, 3, sub)
	ctx := context.Background()

	_, submitted := f.Add(ctx, reading(1))
	assert.False(t, submitted)
	_, submitted = f.Add(ctx, reading(2))
	assert.False(t, submitted)
	assert.Empty(t, sub.recorded())
	assert.Equal(t, 2, f.Pending())

	result, submitted := f.Add(ctx, reading(3))
	require.True(t, submitted)
	assert.True(t, result.Delivered())
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 3, result.Size)
	assert.JSONEq(t, `{"inserted":true}`, string(result.Response))
	assert.Equal(t, 0, f.Pending())

	calls := sub.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, 7, calls[0].sensorID)
	assert.Equal(t, []types.Reading{reading(1), reading(2), reading(3)}, calls[0].batch.Readings)
}

func TestRetriesUntilSuccessOnThirdAttempt(t *testing.T) {
	sub := &scriptedSubmitter{failures: 2}
	f := newTestForwarder(t, 2, sub)

	f.Add(context.Background(), reading(1))
	result, submitted := f.Add(context.Background(), reading(2))
	require.True(t, submitted)

	assert.Equal(t, StatusDelivered, result.Status)
	assert.Equal(t, 3, result.Attempts)
	assert.NoError(t, result.Err)
	assert.Len(t, sub.recorded(), 3, "no fourth call after success")
	assert.Equal(t, 0, f.Pending())
}

func TestAlwaysFailingSubmitterIsDroppedAfterThreeAttempts(t *testing.T) {
	sub := &scriptedSubmitter{failures: -1}
	var results []Result
	f := newTestForwarder(t, 2, sub, WithResultHandler(func(r Result) { results = append(results, r) }))

	f.Add(context.Background(), reading(1))
	result, submitted := f.Add(context.Background(), reading(2))
	require.True(t, submitted)

	assert.Equal(t, StatusDropped, result.Status)
	assert.Equal(t, MaxAttempts, result.Attempts)
	assert.EqualError(t, result.Err, "500 internal server error")
	assert.Len(t, sub.recorded(), 3)
	assert.Equal(t, 0, f.Pending(), "buffer cleared after drop")
	require.Len(t, results, 1)
	assert.Equal(t, result.Status, results[0].Status)

	// Every attempt sends the same batch
	for _, c := range sub.recorded() {
		assert.Equal(t, []types.Reading{reading(1), reading(2)}, c.batch.Readings)
	}

	// The next batch starts from empty
	f.Add(context.Background(), reading(3))
	assert.Equal(t, 1, f.Pending())
}

func TestBatchSizeOneSubmitsEveryReading(t *testing.T) {
	sub := &scriptedSubmitter{}
	f := newTestForwarder(t, 1, sub)
	for i := 0; i < 4; i++ {
		_, submitted := f.Add(context.Background(), reading(float64(i)))
		assert.True(t, submitted)
	}
	assert.Len(t, sub.recorded(), 4)
}

func TestSubmittedBatchIsNotAliasedByLaterReadings(t *testing.T) {
	sub := &scriptedSubmitter{}
	f := newTestForwarder(t, 2, sub)
	ctx := context.Background()

	f.Add(ctx, reading(1))
	f.Add(ctx, reading(2))
	f.Add(ctx, reading(3))
	f.Add(ctx, reading(4))

	calls := sub.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, []types.Reading{reading(1), reading(2)}, calls[0].batch.Readings)
	assert.Equal(t, []types.Reading{reading(3), reading(4)}, calls[1].batch.Readings)
}

func TestBackoffBetweenRetries(t *testing.T) {
	sub := &scriptedSubmitter{failures: -1}
	f, err := New(Options{
		SensorID:        1,
		BatchSize:       1,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 150 * time.Millisecond,
	}, sub, WithLogger(quietLogger()))
	require.NoError(t, err)

	var delays []time.Duration
	f.sleep = func(_ context.Context, d time.Duration) bool {
		delays = append(delays, d)
		return true
	}

	result, _ := f.Add(context.Background(), reading(1))
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 150 * time.Millisecond}, delays)
}

func TestZeroBackoffRetriesImmediately(t *testing.T) {
	f := newTestForwarder(t, 1, &scriptedSubmitter{})
	assert.Equal(t, time.Duration(0), f.backoff(1))
	assert.Equal(t, time.Duration(0), f.backoff(2))
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	sub := &scriptedSubmitter{failures: -1}
	f, err := New(Options{SensorID: 1, BatchSize: 1, RetryBackoff: time.Hour}, sub, WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.sleep = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}

	result, submitted := f.Add(ctx, reading(1))
	require.True(t, submitted)
	assert.Equal(t, StatusDropped, result.Status)
	assert.Equal(t, 1, result.Attempts)
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, 0, f.Pending())
}

func TestFlushSubmitsPartialBatch(t *testing.T) {
	sub := &scriptedSubmitter{}
	f := newTestForwarder(t, 10, sub)

	_, flushed := f.Flush(context.Background())
	assert.False(t, flushed, "nothing to flush")

	f.Add(context.Background(), reading(1))
	f.Add(context.Background(), reading(2))
	result, flushed := f.Flush(context.Background())
	require.True(t, flushed)
	assert.Equal(t, 2, result.Size)
	assert.Len(t, sub.recorded(), 1)
}

func TestRunLeavesPartialBatchUnsent(t *testing.T) {
	sub := &scriptedSubmitter{}
	var seen []types.Reading
	f := newTestForwarder(t, 3, sub, WithReadingHandler(func(r types.Reading) { seen = append(seen, r) }))

	in := make(chan types.Reading, 5)
	for i := 1; i <= 5; i++ {
		in <- reading(float64(i))
	}
	close(in)

	require.NoError(t, f.Run(context.Background(), in))
	assert.Len(t, sub.recorded(), 1)
	assert.Equal(t, 2, f.Pending())
	assert.Len(t, seen, 5)
}

func TestRunReturnsOnCancel(t *testing.T) {
	f := newTestForwarder(t, 3, &scriptedSubmitter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Run(ctx, make(chan types.Reading))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetricsTrackOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	ok := newTestForwarder(t, 1, &scriptedSubmitter{}, WithMetrics(m))
	ok.Add(context.Background(), reading(1))

	failing := newTestForwarder(t, 1, &scriptedSubmitter{failures: -1}, WithMetrics(m))
	failing.Add(context.Background(), reading(2))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BatchesDelivered))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BatchesDropped))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.SubmitAttempts))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.BatchBufferSize))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "delivered", StatusDelivered.String())
	assert.Equal(t, "dropped", StatusDropped.String())
	assert.Equal(t, "unknown", Status(0).String())
}
