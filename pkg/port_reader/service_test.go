package port_reader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/metrics"
	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/jacobsa/go-serial/serial"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	io.Reader
	mu     sync.Mutex
	closed int
	closer func() error
}

func (p *fakePort) Write(b []byte) (int, error) {
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
	if p.closer != nil {
		return p.closer()
	}
	return nil
}

func (p *fakePort) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func newTestReader(t *testing.T, port *fakePort, opts ...Option) (*SerialReader, *serial.OpenOptions) {
	t.Helper()
	var captured serial.OpenOptions
	opener := func(options serial.OpenOptions) (io.ReadWriteCloser, error) {
		captured = options
		return port, nil
	}
	options := Options{
		Port:        "/dev/ttyTEST0",
		Unit:        mustUnit(t, "meters"),
		BaudRate:    9600,
		ReadTimeout: time.Second,
	}
	return NewSerialReader(options, append([]Option{WithOpener(opener)}, opts...)...), &captured
}

func collect(t *testing.T, reader *SerialReader) ([]types.Reading, error) {
	t.Helper()
	out := make(chan types.Reading, 64)
	err := reader.Stream(context.Background(), out)
	close(out)
	var readings []types.Reading
	for r := range out {
		readings = append(readings, r)
	}
	return readings, err
}

func TestStreamEmitsValidReadingsAndSkipsNoise(t *testing.T) {
	port := &fakePort{Reader: strings.NewReader("1.0\n\nbad\r\n2.0\nnan\n3.0")}
	reader, captured := newTestReader(t, port)

	readings, err := collect(t, reader)
	require.NoError(t, err)
	assert.Equal(t, []types.Reading{
		{Unit: "m", Value: 1.0},
		{Unit: "m", Value: 2.0},
		{Unit: "m", Value: 3.0},
	}, readings)

	assert.Equal(t, "/dev/ttyTEST0", captured.PortName)
	assert.Equal(t, uint(9600), captured.BaudRate)
	assert.Equal(t, uint(1000), captured.InterCharacterTimeout)
	assert.Equal(t, uint(0), captured.MinimumReadSize)
	assert.Equal(t, 1, port.closeCount())
}

func TestStreamOpenFailureIsFatal(t *testing.T) {
	opener := func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such file or directory")
	}
	reader := NewSerialReader(Options{Port: "/dev/missing", BaudRate: 9600}, WithOpener(opener))

	err := reader.Stream(context.Background(), make(chan types.Reading, 1))
	require.ErrorIs(t, err, ErrOpenFailed)
	assert.Contains(t, err.Error(), "/dev/missing")
}

func TestStreamIsNotRestartable(t *testing.T) {
	reader, _ := newTestReader(t, &fakePort{Reader: strings.NewReader("1\n")})

	_, err := collect(t, reader)
	require.NoError(t, err)

	_, err = collect(t, reader)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestStreamPropagatesReadErrors(t *testing.T) {
	failing := io.MultiReader(strings.NewReader("4.5\n"), iotestErrReader{errors.New("device unplugged")})
	reader, _ := newTestReader(t, &fakePort{Reader: failing})

	readings, err := collect(t, reader)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device unplugged")
	assert.Equal(t, []types.Reading{{Unit: "m", Value: 4.5}}, readings)
}

type iotestErrReader struct{ err error }

func (r iotestErrReader) Read([]byte) (int, error) { return 0, r.err }

func TestStreamStopsOnContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	port := &fakePort{Reader: pr, closer: pr.Close}
	reader, _ := newTestReader(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan types.Reading, 4)
	done := make(chan error, 1)
	go func() { done <- reader.Stream(ctx, out) }()

	_, err := pw.Write([]byte("5.5\n"))
	require.NoError(t, err)
	assert.Equal(t, types.Reading{Unit: "m", Value: 5.5}, <-out)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Stream did not return after cancel")
	}
	assert.Equal(t, 1, port.closeCount())
}

func TestStreamHonoursSettleDelay(t *testing.T) {
	reader, _ := newTestReader(t, &fakePort{Reader: strings.NewReader("1\n")})
	reader.options.SettleDelay = 50 * time.Millisecond

	start := time.Now()
	_, err := collect(t, reader)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestStreamCountsLines(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	reader, _ := newTestReader(t, &fakePort{Reader: strings.NewReader("1\nx\n\n2\n")}, WithMetrics(m))
	_, err = collect(t, reader)
	require.NoError(t, err)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.LinesRead))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LinesSkipped))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReadingsAccepted))
}

func TestStreamLogsEachReadingOnce(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reader, _ := newTestReader(t, &fakePort{Reader: strings.NewReader("1\nx\n2\n")}, WithLogger(logger))
	_, err := collect(t, reader)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(logs.String(), "reading gathered"))
}
