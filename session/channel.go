package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-ova/internal/pool"
	"github.com/arloliu/go-ova/logger"
	"github.com/arloliu/go-ova/scpi"
)

// Exchanger sends commands over a command channel.
//
// Channel and Session implement it. Inside Reserve, the Exchanger handed to the
// callback sends on the reserved channel without acquiring it again.
type Exchanger interface {
	// Exchange sends a query and waits for its complete response.
	Exchange(ctx context.Context, cmd scpi.Command) (scpi.Response, error)
	// Write sends a command that has no response.
	Write(ctx context.Context, cmd scpi.Command) error
}

// Channel turns commands into request/response exchanges over a Transport.
//
// At most one exchange is in flight at any time. A call made while another one is
// outstanding, or while the channel is reserved, fails immediately with an error
// wrapping scpi.ErrProtocol; calls are never queued or interleaved.
//
// When an exchange is abandoned, its response may still arrive later. The channel
// then marks itself stale, and the next command first drains the socket until it
// stays silent for one poll interval. A response arriving later than that is read as
// the answer to the next command; raise the poll interval with WithPollInterval for
// instruments that answer slowly.
type Channel struct {
	tr      *Transport
	cfg     *ConnectionConfig
	logger  logger.Logger
	metrics *ChannelMetrics
	dec     *scpi.Decoder

	busy  atomic.Bool
	stale atomic.Bool

	// onConnLost is called once the transport reported an unrecoverable error.
	onConnLost func(error)
}

var _ Exchanger = (*Channel)(nil)

// NewChannel creates a command channel over tr using cfg's timeout, poll interval,
// terminator and buffer sizes. metrics may be nil.
func NewChannel(tr *Transport, cfg *ConnectionConfig, metrics *ChannelMetrics) *Channel {
	if metrics == nil {
		metrics = &ChannelMetrics{}
	}

	return &Channel{
		tr:      tr,
		cfg:     cfg,
		logger:  cfg.GetLogger(),
		metrics: metrics,
		dec:     scpi.NewDecoder(cfg.Terminator(), cfg.MaxResponseSize()),
	}
}

// Exchange sends a query and returns its parsed response.
//
// The whole exchange, from send to the last byte, is bounded by the session timeout,
// or by ctx's deadline when that is earlier. Errors wrap one of the scpi sentinels:
//   - scpi.ErrTimeout when no complete response arrived in time or ctx ended;
//   - scpi.ErrConnection when the connection broke, the channel's session is closed;
//   - scpi.ErrParse when the response body does not match the command's shape;
//   - scpi.ErrProtocol when cmd is not a query, cannot be framed, or the channel is busy.
func (c *Channel) Exchange(ctx context.Context, cmd scpi.Command) (scpi.Response, error) {
	if err := c.acquire(cmd); err != nil {
		return scpi.Response{}, err
	}
	defer c.release()

	return c.exchange(ctx, cmd)
}

// Write sends a command that produces no response.
//
// Queries are rejected with scpi.ErrProtocol, their response would be left unread.
func (c *Channel) Write(ctx context.Context, cmd scpi.Command) error {
	if err := c.acquire(cmd); err != nil {
		return err
	}
	defer c.release()

	return c.write(ctx, cmd)
}

// Reserve holds the channel exclusively while fn runs.
//
// fn receives an Exchanger bound to the reserved channel. Other callers fail with
// scpi.ErrProtocol until fn returns. If fn returns a context error, the channel is
// marked stale.
func (c *Channel) Reserve(fn func(ex Exchanger) error) error {
	if !c.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: channel is busy", scpi.ErrProtocol)
	}
	c.metrics.setInflight(true)
	defer c.release()

	err := fn(reserved{c: c})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.stale.Store(true)
	}

	return err
}

// IsStale reports whether the next command will drain the socket first.
func (c *Channel) IsStale() bool {
	return c.stale.Load()
}

// IsBusy reports whether an exchange or a reservation holds the channel.
func (c *Channel) IsBusy() bool {
	return c.busy.Load()
}

// reserved is the Exchanger handed to Reserve callbacks.
type reserved struct {
	c *Channel
}

func (r reserved) Exchange(ctx context.Context, cmd scpi.Command) (scpi.Response, error) {
	return r.c.exchange(ctx, cmd)
}

func (r reserved) Write(ctx context.Context, cmd scpi.Command) error {
	return r.c.write(ctx, cmd)
}

func (c *Channel) acquire(cmd scpi.Command) error {
	if !c.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %q issued while another command is in flight", scpi.ErrProtocol, cmd.Header())
	}
	c.metrics.setInflight(true)

	return nil
}

func (c *Channel) release() {
	c.metrics.setInflight(false)
	c.busy.Store(false)
}

func (c *Channel) write(ctx context.Context, cmd scpi.Command) error {
	if cmd.IsQuery() {
		return fmt.Errorf("%w: %q is a query, use Exchange", scpi.ErrProtocol, cmd.Header())
	}

	wire, err := scpi.Encode(cmd, c.cfg.Terminator())
	if err != nil {
		return err
	}

	if err := c.prepare(ctx); err != nil {
		return err
	}

	c.metrics.incWriteCount()
	if c.logger.Level() <= logger.DebugLevel {
		c.logger.Debug("write command", "cmd", cmd.String())
	}

	return c.send(wire)
}

func (c *Channel) exchange(ctx context.Context, cmd scpi.Command) (scpi.Response, error) {
	if !cmd.IsQuery() {
		return scpi.Response{}, fmt.Errorf("%w: %q is not a query, use Write", scpi.ErrProtocol, cmd.Header())
	}

	wire, err := scpi.Encode(cmd, c.cfg.Terminator())
	if err != nil {
		return scpi.Response{}, err
	}

	c.metrics.incExchangeCount()

	rsp, err := c.roundTrip(ctx, cmd, wire)
	if err != nil {
		c.metrics.incExchangeErrCount()
		if errors.Is(err, scpi.ErrTimeout) {
			c.metrics.incTimeoutCount()
		}
	}

	return rsp, err
}

func (c *Channel) roundTrip(ctx context.Context, cmd scpi.Command, wire []byte) (scpi.Response, error) {
	if err := c.prepare(ctx); err != nil {
		return scpi.Response{}, err
	}

	deadline := time.Now().Add(c.cfg.Timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	if err := c.send(wire); err != nil {
		return scpi.Response{}, err
	}

	buf := pool.GetBuffer(c.cfg.BufferSize())
	defer pool.PutBuffer(buf)

	for {
		if unit, ok := c.dec.Decode(); ok {
			if c.logger.Level() <= logger.DebugLevel {
				c.logger.Debug("exchange completed", "cmd", cmd.Header(), "bytes", len(unit),
					"elapsed", time.Since(start))
			}

			return scpi.ParseResponse(unit, cmd)
		}

		if err := ctx.Err(); err != nil {
			c.stale.Store(true)
			return scpi.Response{}, fmt.Errorf("%w: %q abandoned: %w", scpi.ErrTimeout, cmd.Header(), err)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.stale.Store(true)
			return scpi.Response{}, fmt.Errorf("%w: no complete response to %q within %v (%d bytes buffered)",
				scpi.ErrTimeout, cmd.Header(), time.Since(start).Round(time.Millisecond), c.dec.Buffered())
		}

		n, err := c.tr.Receive(buf, min(c.cfg.PollInterval(), remaining))
		if err != nil {
			c.connLost(err)
			return scpi.Response{}, err
		}

		if n == 0 {
			continue
		}

		if _, err := c.dec.Write(buf[:n]); err != nil {
			c.stale.Store(true)
			return scpi.Response{}, fmt.Errorf("response to %q: %w", cmd.Header(), err)
		}
	}
}

// prepare resets the decoder and, when the channel is stale, drains late bytes.
func (c *Channel) prepare(ctx context.Context) error {
	if !c.tr.IsOpen() {
		return ErrConnClosed
	}

	c.dec.Reset()

	if !c.stale.Load() {
		return nil
	}

	discarded, err := c.drain(ctx)
	if err != nil {
		return err
	}
	c.stale.Store(false)
	c.metrics.incStaleDrain(discarded)

	if discarded > 0 {
		c.logger.Warn("discarded stale response bytes", "bytes", discarded)
	}

	return nil
}

// drain reads and discards bytes until the line is silent for one poll interval.
//
// A line that keeps talking for longer than the session timeout is reported as
// scpi.ErrTimeout and the channel stays stale.
func (c *Channel) drain(ctx context.Context) (int, error) {
	buf := pool.GetBuffer(c.cfg.BufferSize())
	defer pool.PutBuffer(buf)

	deadline := time.Now().Add(c.cfg.Timeout())
	discarded := 0

	for {
		if err := ctx.Err(); err != nil {
			return discarded, fmt.Errorf("%w: drain abandoned: %w", scpi.ErrTimeout, err)
		}

		n, err := c.tr.Receive(buf, c.cfg.PollInterval())
		if err != nil {
			c.connLost(err)
			return discarded, err
		}

		if n == 0 {
			return discarded, nil
		}
		discarded += n

		if time.Now().After(deadline) {
			return discarded, fmt.Errorf("%w: line did not go silent within %v", scpi.ErrTimeout, c.cfg.Timeout())
		}
	}
}

func (c *Channel) send(wire []byte) error {
	if err := c.tr.Send(wire); err != nil {
		// a partial line cannot be recovered from
		c.connLost(err)
		return err
	}

	return nil
}

func (c *Channel) connLost(err error) {
	_ = c.tr.Close()

	if c.onConnLost != nil {
		c.onConnLost(err)
	}
}
