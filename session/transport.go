package session

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-ova/scpi"
)

// ErrConnClosed is returned by transport operations after Close.
var ErrConnClosed = fmt.Errorf("%w: connection closed", scpi.ErrConnection)

// Transport is the raw byte stream of one TCP connection to an instrument.
//
// It knows nothing about framing. Send writes a complete buffer under a write deadline,
// Receive returns whatever arrived within a wait, and distinguishes an empty wait from
// a broken connection.
//
// Send and Receive are not meant to be called concurrently with themselves; the
// command channel is the only user. Close may be called from any goroutine.
type Transport struct {
	conn         net.Conn
	writeTimeout time.Duration
	metrics      *ChannelMetrics
	closed       atomic.Bool
}

// NewTransport wraps an established connection.
//
// writeTimeout bounds each Send. metrics may be nil.
func NewTransport(conn net.Conn, writeTimeout time.Duration, metrics *ChannelMetrics) *Transport {
	if metrics == nil {
		metrics = &ChannelMetrics{}
	}

	return &Transport{
		conn:         conn,
		writeTimeout: writeTimeout,
		metrics:      metrics,
	}
}

// Send writes all of data to the connection.
//
// A write that does not finish within the write timeout returns an error wrapping
// scpi.ErrTimeout; any other failure returns an error wrapping scpi.ErrConnection.
func (t *Transport) Send(data []byte) error {
	if t.closed.Load() {
		return ErrConnClosed
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return t.classify("set write deadline", err)
	}

	for written := 0; written < len(data); {
		n, err := t.conn.Write(data[written:])
		written += n
		t.metrics.addBytesSent(n)

		if err != nil {
			if isTimeout(err) {
				return fmt.Errorf("%w: send stalled after %d of %d bytes", scpi.ErrTimeout, written, len(data))
			}

			return t.classify("send", err)
		}
	}

	return nil
}

// Receive reads whatever bytes are available into buf, waiting at most timeout.
//
// It returns (0, nil) when nothing arrived in time. End of stream, a reset or a
// closed transport return an error wrapping scpi.ErrConnection. Bytes read
// together with an error are returned with a nil error; the error surfaces on the
// next call.
func (t *Transport) Receive(buf []byte, timeout time.Duration) (int, error) {
	if t.closed.Load() {
		return 0, ErrConnClosed
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, t.classify("set read deadline", err)
	}

	n, err := t.conn.Read(buf)
	if n > 0 {
		t.metrics.addBytesRecv(n)
		return n, nil
	}

	if err == nil || isTimeout(err) {
		return 0, nil
	}

	return 0, t.classify("receive", err)
}

// Close closes the connection. It is safe to call more than once.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	return t.conn.Close()
}

// IsOpen reports whether Close has not been called.
func (t *Transport) IsOpen() bool {
	return !t.closed.Load()
}

// LocalAddr returns the local network address.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *Transport) classify(op string, err error) error {
	if t.closed.Load() || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %s: %w", ErrConnClosed, op, err)
	}

	return fmt.Errorf("%w: %s: %w", scpi.ErrConnection, op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
