package port_reader

import (
	"errors"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
)

const (
	DefaultReadTimeout = time.Second
	// VTIME counts tenths of a second in one byte
	MinReadTimeout = 100 * time.Millisecond
	MaxReadTimeout = 25500 * time.Millisecond
)

// errIdle is returned by idlePort when a read timeout passes without a byte.
var errIdle = errors.New("no data before read timeout")

// idlePort wraps a port opened with MinimumReadSize 0. There the kernel
// ends a read with zero bytes once the read timeout expires, which
// *os.File reports as io.EOF. A zero-byte read that comes back well before
// the timeout is a hangup and stays io.EOF.
type idlePort struct {
	io.ReadWriteCloser
	timeout time.Duration
	now     func() time.Time
}

func newIdlePort(port io.ReadWriteCloser, timeout time.Duration) *idlePort {
	return &idlePort{ReadWriteCloser: port, timeout: timeout, now: time.Now}
}

func (p *idlePort) Read(b []byte) (int, error) {
	start := p.now()
	n, err := p.ReadWriteCloser.Read(b)
	if n == 0 && errors.Is(err, io.EOF) && p.now().Sub(start) >= p.timeout/2 {
		return 0, errIdle
	}
	return n, err
}

func openSerial(options serial.OpenOptions) (io.ReadWriteCloser, error) {
	port, err := serial.Open(options)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(options.InterCharacterTimeout) * time.Millisecond
	return newIdlePort(port, timeout), nil
}

// readTimeoutMillis converts the configured read timeout into the
// InterCharacterTimeout jacobsa accepts.
func readTimeoutMillis(d time.Duration) uint {
	switch {
	case d <= 0:
		d = DefaultReadTimeout
	case d < MinReadTimeout:
		d = MinReadTimeout
	case d > MaxReadTimeout:
		d = MaxReadTimeout
	}
	return uint(d / time.Millisecond)
}
