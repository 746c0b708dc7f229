package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-ova/internal/pool"
	"github.com/arloliu/go-ova/logger"
	"github.com/arloliu/go-ova/scpi"
	"github.com/arloliu/go-ova/session"
)

// Instrument commands used by the coordinator.
const (
	ClearStatusCommand = "*CLS"
	ScanCommand        = "SCAN"
	ErrorCodeQuery     = "SYST:ERR?"
	ErrorDetailQuery   = "SYST:ERRD?"
)

// Channel is the command channel a scan runs on. *session.Session and
// *session.Channel implement it.
type Channel interface {
	Reserve(fn func(ex session.Exchanger) error) error
}

// ScanState describes one scan. It is created by Coordinator.Scan and is not reused.
type ScanState struct { //nolint:revive
	averages  int
	requested time.Time
	deadline  time.Time
	state     AtomicState

	mu  sync.Mutex
	err error
}

func newScanState(averages int) *ScanState {
	return &ScanState{averages: averages}
}

// Averages returns the requested number of averages.
func (s *ScanState) Averages() int { return s.averages }

// RequestedAt returns when the scan command was sent.
func (s *ScanState) RequestedAt() time.Time { return s.requested }

// Deadline returns the estimated completion time. It is zero until the scan command
// was sent.
func (s *ScanState) Deadline() time.Time { return s.deadline }

// State returns the current state of the scan.
func (s *ScanState) State() State { return s.state.Get() }

// Err returns the terminal error of a failed scan.
func (s *ScanState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

func (s *ScanState) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.state.ToFailed()

	return err
}

// ScanResult is the outcome of an asynchronous scan.
type ScanResult struct { //nolint:revive
	State *ScanState
	Err   error
}

// Coordinator runs scans on a command channel.
//
// A scan clears the instrument error queue, sends the scan command, waits for the
// estimated scan time, then reads the instrument error status. Errors queued by
// earlier commands are therefore never reported as scan failures. The channel is reserved for the whole sequence, so no
// other command can be sent, and no data can be fetched, while a scan is outstanding.
// Failed scans are never retried.
type Coordinator struct {
	ch        Channel
	estimator Estimator
	logger    logger.Logger
}

// NewCoordinator creates a coordinator for the given channel.
func NewCoordinator(ch Channel, opts ...Option) (*Coordinator, error) {
	if ch == nil {
		return nil, errors.New("scan: channel must not be nil")
	}

	c := &Coordinator{
		ch:        ch,
		estimator: DefaultEstimator(),
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Estimator returns the scan time estimator.
func (c *Coordinator) Estimator() Estimator {
	return c.estimator
}

// Scan runs one scan with the given number of averages and blocks until it is
// confirmed or has failed.
//
// averages below one are rejected with scpi.ErrProtocol before anything is sent. A
// channel that cannot be reserved fails with the channel's error. Every failure after
// the scan command was attempted is a *ScanError, whose Cause is set unless the
// instrument reported an error code. Cancelling ctx abandons the wait; the scan may
// still run to its end on the instrument, and the next command drains whatever it
// leaves behind.
//
// The returned ScanState is never nil, except for rejected averages.
func (c *Coordinator) Scan(ctx context.Context, averages int) (*ScanState, error) {
	if averages < 1 {
		return nil, fmt.Errorf("%w: averages must be at least 1, got %d", scpi.ErrProtocol, averages)
	}

	st := newScanState(averages)

	err := c.ch.Reserve(func(ex session.Exchanger) error {
		return c.run(ctx, ex, st)
	})
	if err != nil {
		if !st.State().IsTerminal() {
			_ = st.fail(err)
		}

		return st, err
	}

	return st, nil
}

// ScanAsync runs Scan on a new goroutine. The returned channel receives exactly one
// result and is then closed.
func (c *Coordinator) ScanAsync(ctx context.Context, averages int) <-chan ScanResult {
	result := make(chan ScanResult, 1)

	go func() {
		defer close(result)

		st, err := c.Scan(ctx, averages)
		result <- ScanResult{State: st, Err: err}
	}()

	return result
}

func (c *Coordinator) run(ctx context.Context, ex session.Exchanger, st *ScanState) error {
	st.state.ToRequested()
	st.requested = time.Now()

	if err := ex.Write(ctx, scpi.NewCommand(ClearStatusCommand)); err != nil {
		return st.fail(&ScanError{Averages: st.averages, Cause: err})
	}

	if err := ex.Write(ctx, scpi.NewCommand(ScanCommand)); err != nil {
		return st.fail(&ScanError{Averages: st.averages, Cause: err})
	}

	wait := c.estimator.Estimate(st.averages)
	st.deadline = st.requested.Add(wait)
	st.state.ToAwaitingCompletion()

	if c.logger.Level() <= logger.DebugLevel {
		c.logger.Debug("scan requested", "averages", st.averages, "wait", wait)
	}

	if err := pool.Sleep(ctx, time.Until(st.deadline)); err != nil {
		c.logger.Warn("scan wait abandoned", "averages", st.averages, "error", err)
		return st.fail(&ScanError{Averages: st.averages, Cause: err})
	}

	rsp, err := ex.Exchange(ctx, scpi.NewQuery(ErrorCodeQuery, scpi.ShapeInt))
	if err != nil {
		return st.fail(&ScanError{Averages: st.averages, Cause: err})
	}

	code, _ := rsp.Int()
	if code == 0 {
		st.state.ToCompleted()
		c.logger.Info("scan completed", "averages", st.averages, "elapsed", time.Since(st.requested))

		return nil
	}

	scanErr := &ScanError{Averages: st.averages, Code: int(code)}

	// the description is best effort, the code alone decides the outcome
	detail, err := ex.Exchange(ctx, scpi.NewQuery(ErrorDetailQuery, scpi.ShapeText))
	if err == nil {
		scanErr.Description, _ = detail.Text()
	}

	c.logger.Error("scan failed", "averages", st.averages, "code", code, "description", scanErr.Description)

	return st.fail(scanErr)
}
