package ova

import "math"

// Trace identifies one of the arrays an instrument produces per scan.
type Trace uint8

const (
	// WavelengthAxis in nm.
	WavelengthAxis Trace = iota
	// FrequencyAxis in THz.
	FrequencyAxis
	// TimeAxis in ns.
	TimeAxis
	// InsertionLoss in dB.
	InsertionLoss
	// GroupDelay in ps.
	GroupDelay
	// LinearPhaseDeviation in rad.
	LinearPhaseDeviation
	// TimeDomainAmplitude in dB.
	TimeDomainAmplitude
	// TimeDomainWavelength in nm.
	TimeDomainWavelength
)

// Traces lists every trace in fetch order.
var Traces = []Trace{
	WavelengthAxis,
	FrequencyAxis,
	TimeAxis,
	InsertionLoss,
	GroupDelay,
	LinearPhaseDeviation,
	TimeDomainAmplitude,
	TimeDomainWavelength,
}

const (
	axisQuery = "FETC:XAXI?"
	measQuery = "FETC:MEAS?"
)

type traceInfo struct {
	name     string
	query    string
	selector string
	unit     string
}

var traceInfos = [...]traceInfo{
	WavelengthAxis:       {"wavelength-axis", axisQuery, "0", "nm"},
	FrequencyAxis:        {"frequency-axis", axisQuery, "2", "THz"},
	TimeAxis:             {"time-axis", axisQuery, "3", "ns"},
	InsertionLoss:        {"insertion-loss", measQuery, "0", "dB"},
	GroupDelay:           {"group-delay", measQuery, "1", "ps"},
	LinearPhaseDeviation: {"linear-phase-deviation", measQuery, "5", "rad"},
	TimeDomainAmplitude:  {"time-domain-amplitude", measQuery, "9", "dB"},
	TimeDomainWavelength: {"time-domain-wavelength", measQuery, "10", "nm"},
}

// IsValid reports whether t is a known trace.
func (t Trace) IsValid() bool {
	return int(t) < len(traceInfos)
}

// IsAxis reports whether t is an axis rather than a measurement.
func (t Trace) IsAxis() bool {
	return t.IsValid() && traceInfos[t].query == axisQuery
}

// Unit returns the unit of the trace values.
func (t Trace) Unit() string {
	if !t.IsValid() {
		return ""
	}

	return traceInfos[t].unit
}

// String returns string representation of the trace.
func (t Trace) String() string {
	if !t.IsValid() {
		return "unknown"
	}

	return traceInfos[t].name
}

// Resolution returns the mean absolute spacing of adjacent axis values. It is zero for
// fewer than two values.
func Resolution(axis []float64) float64 {
	if len(axis) < 2 {
		return 0
	}

	var sum float64
	for i := 1; i < len(axis); i++ {
		sum += math.Abs(axis[i] - axis[i-1])
	}

	return sum / float64(len(axis)-1)
}
