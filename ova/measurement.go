package ova

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-ova/scpi"
)

// AveragingStatus holds the instrument replies to the averaging queries, as sent.
type AveragingStatus struct {
	Enabled string
	Count   string
}

// IsEnabled parses the enable reply.
func (s AveragingStatus) IsEnabled() (bool, error) {
	return scpi.ParseBool(s.Enabled)
}

// Averages parses the count reply.
func (s AveragingStatus) Averages() (int, error) {
	n, err := scpi.ParseInt(s.Count)
	return int(n), err
}

// Tuple returns the two replies in query order.
func (s AveragingStatus) Tuple() []string {
	return []string{s.Enabled, s.Count}
}

// MeasureConfig describes one measurement run.
type MeasureConfig struct {
	CenterWavelength float64 // nm
	WavelengthRange  float64 // nm
	Averages         int
}

// Validate checks the measurement parameters.
func (c MeasureConfig) Validate() error {
	if c.CenterWavelength <= 0 {
		return fmt.Errorf("%w: center wavelength must be positive, got %g", scpi.ErrProtocol, c.CenterWavelength)
	}
	if c.WavelengthRange <= 0 {
		return fmt.Errorf("%w: wavelength range must be positive, got %g", scpi.ErrProtocol, c.WavelengthRange)
	}
	if c.Averages < 1 {
		return fmt.Errorf("%w: averages must be at least 1, got %d", scpi.ErrProtocol, c.Averages)
	}

	return nil
}

// MeasurementSet is the result of a full measurement run.
//
// Arrays are fetched independently, so their lengths are not cross-checked.
type MeasurementSet struct {
	DUTLength        float64 // m
	SampleResolution float64 // nm
	CenterWavelength float64 // nm, as reported after setting it
	WavelengthRange  float64 // nm, as reported after setting it
	Averaging        AveragingStatus

	WavelengthAxis       []float64 // nm
	FrequencyAxis        []float64 // THz
	TimeAxis             []float64 // ns
	InsertionLoss        []float64 // dB
	GroupDelay           []float64 // ps
	LinearPhaseDeviation []float64 // rad
	TimeDomainAmplitude  []float64 // dB
	TimeDomainWavelength []float64 // nm

	WavelengthResolution float64 // nm
	FrequencyResolution  float64 // THz
	TimeResolution       float64 // ns
}

// Trace returns the values of t.
func (m *MeasurementSet) Trace(t Trace) []float64 {
	switch t {
	case WavelengthAxis:
		return m.WavelengthAxis
	case FrequencyAxis:
		return m.FrequencyAxis
	case TimeAxis:
		return m.TimeAxis
	case InsertionLoss:
		return m.InsertionLoss
	case GroupDelay:
		return m.GroupDelay
	case LinearPhaseDeviation:
		return m.LinearPhaseDeviation
	case TimeDomainAmplitude:
		return m.TimeDomainAmplitude
	case TimeDomainWavelength:
		return m.TimeDomainWavelength
	default:
		return nil
	}
}

func (m *MeasurementSet) setTrace(t Trace, values []float64) {
	switch t {
	case WavelengthAxis:
		m.WavelengthAxis = values
	case FrequencyAxis:
		m.FrequencyAxis = values
	case TimeAxis:
		m.TimeAxis = values
	case InsertionLoss:
		m.InsertionLoss = values
	case GroupDelay:
		m.GroupDelay = values
	case LinearPhaseDeviation:
		m.LinearPhaseDeviation = values
	case TimeDomainAmplitude:
		m.TimeDomainAmplitude = values
	case TimeDomainWavelength:
		m.TimeDomainWavelength = values
	}
}

// FetchAll fetches every trace of the last scan and computes the axis resolutions.
// The configuration fields of the returned set are left zero.
func (i *Instrument) FetchAll(ctx context.Context) (*MeasurementSet, error) {
	m := &MeasurementSet{}
	if err := i.fetchTraces(ctx, m, Traces...); err != nil {
		return nil, err
	}

	m.WavelengthResolution = Resolution(m.WavelengthAxis)
	m.FrequencyResolution = Resolution(m.FrequencyAxis)
	m.TimeResolution = Resolution(m.TimeAxis)

	return m, nil
}

// MeasureFull configures the instrument, runs a scan and fetches every trace.
//
// A failed step aborts the run; no partially fetched set is returned.
func (i *Instrument) MeasureFull(ctx context.Context, cfg MeasureConfig) (*MeasurementSet, error) {
	start := time.Now()

	m := &MeasurementSet{}
	if err := i.configureAndScan(ctx, cfg, m); err != nil {
		return nil, err
	}

	data, err := i.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	data.DUTLength = m.DUTLength
	data.SampleResolution = m.SampleResolution
	data.CenterWavelength = m.CenterWavelength
	data.WavelengthRange = m.WavelengthRange
	data.Averaging = m.Averaging

	i.logger.Info("measurement completed",
		"points", len(data.WavelengthAxis),
		"wavelengthResolution", data.WavelengthResolution,
		"frequencyResolution", data.FrequencyResolution,
		"timeResolution", data.TimeResolution,
		"elapsed", time.Since(start),
	)

	return data, nil
}

// MeasureInsertionLoss configures the instrument, runs a scan and fetches only the
// insertion loss.
func (i *Instrument) MeasureInsertionLoss(ctx context.Context, cfg MeasureConfig) ([]float64, error) {
	if err := i.configureAndScan(ctx, cfg, &MeasurementSet{}); err != nil {
		return nil, err
	}

	return i.Fetch(ctx, InsertionLoss)
}

func (i *Instrument) configureAndScan(ctx context.Context, cfg MeasureConfig, m *MeasurementSet) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var err error
	if m.DUTLength, err = i.DUTLength(ctx); err != nil {
		return err
	}
	if m.SampleResolution, err = i.SampleResolution(ctx); err != nil {
		return err
	}
	if m.CenterWavelength, err = i.SetCenterWavelength(ctx, cfg.CenterWavelength); err != nil {
		return err
	}
	if m.WavelengthRange, err = i.SetWavelengthRange(ctx, cfg.WavelengthRange); err != nil {
		return err
	}
	if m.Averaging, err = i.SetAveraging(ctx, cfg.Averages); err != nil {
		return err
	}

	i.logger.Info("instrument configured",
		"dutLength", m.DUTLength,
		"sampleResolution", m.SampleResolution,
		"centerWavelength", m.CenterWavelength,
		"wavelengthRange", m.WavelengthRange,
		"averages", m.Averaging.Count,
	)

	_, err = i.Scan(ctx, cfg.Averages)

	return err
}

func (i *Instrument) fetchTraces(ctx context.Context, m *MeasurementSet, traces ...Trace) error {
	for _, t := range traces {
		values, err := i.Fetch(ctx, t)
		if err != nil {
			return err
		}
		m.setTrace(t, values)
	}

	return nil
}
