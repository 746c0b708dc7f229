package ova

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-ova/internal/pool"
	"github.com/arloliu/go-ova/logger"
	"github.com/arloliu/go-ova/scan"
	"github.com/arloliu/go-ova/scpi"
	"github.com/arloliu/go-ova/session"
)

// Configuration headers.
const (
	CenterWavelengthCommand = "CONF:CWL"
	WavelengthRangeCommand  = "CONF:RANG"
	SampleResolutionQuery   = "CONF:SRES?"
	DUTLengthQuery          = "CONF:DUTL?"
	AverageEnableCommand    = "CONF:AVGE"
	AverageCountCommand     = "CONF:AVGS"
	PointCountQuery         = "FETC:FSIZ?"
)

// Instrument is an optical vector analyzer.
//
// It wraps a session and a scan coordinator and offers the instrument's command set as
// typed methods. Every method performs at least one round trip; nothing is cached.
// An Instrument carries the single in-flight rule of its session: methods must not be
// called concurrently, and while a scan is outstanding every other method fails with
// scpi.ErrProtocol.
type Instrument struct {
	sess    *session.Session
	scanner *scan.Coordinator
	logger  logger.Logger

	settleDelay time.Duration
	pointCheck  bool
}

// New creates a disconnected instrument for the session described by cfg.
func New(cfg *session.ConnectionConfig, opts ...Option) (*Instrument, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil connection config", scpi.ErrProtocol)
	}

	o := &options{
		settleDelay: DefaultSettleDelay,
		pointCheck:  true,
		logger:      cfg.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(o); err != nil {
			return nil, err
		}
	}

	sess := session.NewSession(cfg)
	l := o.logger.With("instrument", cfg.Addr())

	scanOpts := append([]scan.Option{scan.WithLogger(l)}, o.scanOpts...)
	scanner, err := scan.NewCoordinator(sess, scanOpts...)
	if err != nil {
		return nil, err
	}

	return &Instrument{
		sess:        sess,
		scanner:     scanner,
		logger:      l,
		settleDelay: o.settleDelay,
		pointCheck:  o.pointCheck,
	}, nil
}

// Connect opens the session and returns the instrument identification.
func (i *Instrument) Connect(ctx context.Context) (string, error) {
	return i.sess.Open(ctx)
}

// Close disconnects the instrument. It is safe to call more than once.
func (i *Instrument) Close() error {
	return i.sess.Close()
}

// IsConnected reports whether the session is connected.
func (i *Instrument) IsConnected() bool {
	return i.sess.IsOpen()
}

// Session returns the underlying session.
func (i *Instrument) Session() *session.Session {
	return i.sess
}

// Scanner returns the scan coordinator.
func (i *Instrument) Scanner() *scan.Coordinator {
	return i.scanner
}

// DUTLength returns the length of the device under test in m.
func (i *Instrument) DUTLength(ctx context.Context) (float64, error) {
	return i.queryFloat(ctx, DUTLengthQuery)
}

// SampleResolution returns the sample resolution in nm. It is decided by the
// instrument and cannot be set.
func (i *Instrument) SampleResolution(ctx context.Context) (float64, error) {
	return i.queryFloat(ctx, SampleResolutionQuery)
}

// CenterWavelength returns the center wavelength in nm.
func (i *Instrument) CenterWavelength(ctx context.Context) (float64, error) {
	return i.queryFloat(ctx, CenterWavelengthCommand+"?")
}

// SetCenterWavelength sets the center wavelength and returns the value the instrument
// reports afterwards, in nm.
func (i *Instrument) SetCenterWavelength(ctx context.Context, nm float64) (float64, error) {
	return i.setFloat(ctx, CenterWavelengthCommand, nm)
}

// WavelengthRange returns the scanned wavelength range in nm.
func (i *Instrument) WavelengthRange(ctx context.Context) (float64, error) {
	return i.queryFloat(ctx, WavelengthRangeCommand+"?")
}

// SetWavelengthRange sets the scanned wavelength range and returns the value the
// instrument reports afterwards, in nm.
func (i *Instrument) SetWavelengthRange(ctx context.Context, nm float64) (float64, error) {
	return i.setFloat(ctx, WavelengthRangeCommand, nm)
}

// SetAveraging enables averaging with n averages per scan and returns both status
// replies of the instrument.
func (i *Instrument) SetAveraging(ctx context.Context, n int) (AveragingStatus, error) {
	if n < 1 {
		return AveragingStatus{}, fmt.Errorf("%w: averages must be at least 1, got %d", scpi.ErrProtocol, n)
	}

	enabled, err := i.setText(ctx, scpi.NewCommand(AverageEnableCommand, "1"))
	if err != nil {
		return AveragingStatus{}, err
	}

	count, err := i.setText(ctx, scpi.NewIntCommand(AverageCountCommand, n))
	if err != nil {
		return AveragingStatus{}, err
	}

	return AveragingStatus{Enabled: enabled, Count: count}, nil
}

// NumberOfPoints returns the number of points of every array. The instrument derives
// it from the wavelength range and the sample resolution.
func (i *Instrument) NumberOfPoints(ctx context.Context) (int, error) {
	rsp, err := i.sess.Exchange(ctx, scpi.NewQuery(PointCountQuery, scpi.ShapeInt))
	if err != nil {
		return 0, err
	}

	n, err := rsp.Int()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative point count %d", scpi.ErrParse, n)
	}

	return int(n), nil
}

// Scan runs a scan with the given number of averages and blocks until the instrument
// confirmed it. See scan.Coordinator.Scan.
func (i *Instrument) Scan(ctx context.Context, averages int) (*scan.ScanState, error) {
	return i.scanner.Scan(ctx, averages)
}

// ScanAsync runs Scan on a new goroutine. See scan.Coordinator.ScanAsync.
func (i *Instrument) ScanAsync(ctx context.Context, averages int) <-chan scan.ScanResult {
	return i.scanner.ScanAsync(ctx, averages)
}

// Fetch returns the values of a trace.
func (i *Instrument) Fetch(ctx context.Context, t Trace) ([]float64, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: unknown trace %d", scpi.ErrProtocol, t)
	}

	expected := -1
	if i.pointCheck {
		n, err := i.NumberOfPoints(ctx)
		if err != nil {
			return nil, err
		}
		expected = n
	}

	info := traceInfos[t]
	cmd := scpi.NewQuery(info.query, scpi.ShapeNumericSequence, info.selector).WithExpectedCount(expected)

	rsp, err := i.sess.Exchange(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t, err)
	}

	return rsp.Values()
}

// WavelengthAxis returns the wavelength axis in nm.
func (i *Instrument) WavelengthAxis(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, WavelengthAxis)
}

// FrequencyAxis returns the frequency axis in THz.
func (i *Instrument) FrequencyAxis(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, FrequencyAxis)
}

// TimeAxis returns the time axis in ns.
func (i *Instrument) TimeAxis(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, TimeAxis)
}

// InsertionLoss returns the insertion loss in dB.
func (i *Instrument) InsertionLoss(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, InsertionLoss)
}

// GroupDelay returns the group delay in ps.
func (i *Instrument) GroupDelay(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, GroupDelay)
}

// LinearPhaseDeviation returns the linear phase deviation in rad.
func (i *Instrument) LinearPhaseDeviation(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, LinearPhaseDeviation)
}

// TimeDomainAmplitude returns the time domain amplitude in dB.
func (i *Instrument) TimeDomainAmplitude(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, TimeDomainAmplitude)
}

// TimeDomainWavelength returns the time domain wavelength in nm.
func (i *Instrument) TimeDomainWavelength(ctx context.Context) ([]float64, error) {
	return i.Fetch(ctx, TimeDomainWavelength)
}

// WavelengthResolution returns the mean spacing of the wavelength axis in nm.
func (i *Instrument) WavelengthResolution(ctx context.Context) (float64, error) {
	return i.resolution(ctx, WavelengthAxis)
}

// FrequencyResolution returns the mean spacing of the frequency axis in THz.
func (i *Instrument) FrequencyResolution(ctx context.Context) (float64, error) {
	return i.resolution(ctx, FrequencyAxis)
}

// TimeResolution returns the mean spacing of the time axis in ns.
func (i *Instrument) TimeResolution(ctx context.Context) (float64, error) {
	return i.resolution(ctx, TimeAxis)
}

func (i *Instrument) resolution(ctx context.Context, t Trace) (float64, error) {
	axis, err := i.Fetch(ctx, t)
	if err != nil {
		return 0, err
	}

	return Resolution(axis), nil
}

// ErrorStatus returns the code at the head of the instrument error queue, 0 if the
// queue is empty.
func (i *Instrument) ErrorStatus(ctx context.Context) (int, error) {
	rsp, err := i.sess.Exchange(ctx, scpi.NewQuery(scan.ErrorCodeQuery, scpi.ShapeInt))
	if err != nil {
		return 0, err
	}

	code, err := rsp.Int()

	return int(code), err
}

// ErrorDescription removes the head of the instrument error queue and returns its
// description.
func (i *Instrument) ErrorDescription(ctx context.Context) (string, error) {
	return i.Query(ctx, scan.ErrorDetailQuery)
}

// Query sends a raw query line, e.g. "CONF:CWL?", and returns the response text.
func (i *Instrument) Query(ctx context.Context, line string) (string, error) {
	return i.sess.Query(ctx, line)
}

// QueryArray sends a raw query line and returns the response as numbers.
func (i *Instrument) QueryArray(ctx context.Context, line string) ([]float64, error) {
	return i.sess.QueryArray(ctx, line)
}

// Write sends a raw command line that has no response.
func (i *Instrument) Write(ctx context.Context, line string) error {
	return i.sess.WriteLine(ctx, line)
}

func (i *Instrument) queryFloat(ctx context.Context, header string) (float64, error) {
	rsp, err := i.sess.Exchange(ctx, scpi.NewQuery(header, scpi.ShapeFloat))
	if err != nil {
		return 0, err
	}

	return rsp.Float()
}

func (i *Instrument) setFloat(ctx context.Context, header string, val float64) (float64, error) {
	if err := i.writeAndSettle(ctx, scpi.NewFloatCommand(header, val)); err != nil {
		return 0, err
	}

	actual, err := i.queryFloat(ctx, header+"?")
	if err != nil {
		return 0, err
	}

	if i.logger.Level() <= logger.DebugLevel {
		i.logger.Debug("setting applied", "header", header, "requested", val, "actual", actual)
	}

	return actual, nil
}

func (i *Instrument) setText(ctx context.Context, cmd scpi.Command) (string, error) {
	if err := i.writeAndSettle(ctx, cmd); err != nil {
		return "", err
	}

	rsp, err := i.sess.Exchange(ctx, scpi.NewQuery(cmd.Header()+"?", scpi.ShapeText))
	if err != nil {
		return "", err
	}

	return rsp.Text()
}

// writeAndSettle sends a setting and gives the instrument time to apply it before the
// read back.
func (i *Instrument) writeAndSettle(ctx context.Context, cmd scpi.Command) error {
	if err := i.sess.Write(ctx, cmd); err != nil {
		return err
	}

	if i.settleDelay > 0 {
		if err := pool.Sleep(ctx, i.settleDelay); err != nil {
			return fmt.Errorf("%w: settle after %q abandoned: %w", scpi.ErrTimeout, cmd.Header(), err)
		}
	}

	return nil
}
