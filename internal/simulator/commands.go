package simulator

import (
	"math"
	"strconv"
	"strings"
)

// speedOfLight in nm·THz.
const speedOfLight = 299792.458

// Configuration headers.
const (
	keyCenterWavelength = "CONF:CWL"
	keyWavelengthRange  = "CONF:RANG"
	keySampleResolution = "CONF:SRES"
	keyDUTLength        = "CONF:DUTL"
	keyAverageEnabled   = "CONF:AVGE"
	keyAverageCount     = "CONF:AVGS"
)

var readOnlySettings = map[string]bool{
	keySampleResolution: true,
	keyDUTLength:        true,
}

// Axis and measurement selectors of FETC:XAXI? and FETC:MEAS?.
const (
	AxisWavelength = 0
	AxisFrequency  = 2
	AxisTime       = 3

	MeasInsertionLoss        = 0
	MeasGroupDelay           = 1
	MeasLinearPhaseDeviation = 5
	MeasTimeDomainAmplitude  = 9
	MeasTimeDomainWavelength = 10
)

func (s *Server) resetSettings() {
	s.settings.Store(keyCenterWavelength, formatFloat(s.profile.CenterWavelength))
	s.settings.Store(keyWavelengthRange, formatFloat(s.profile.WavelengthRange))
	s.settings.Store(keySampleResolution, formatFloat(s.profile.SampleResolution))
	s.settings.Store(keyDUTLength, formatFloat(s.profile.DUTLength))
	s.settings.Store(keyAverageEnabled, "0")
	s.settings.Store(keyAverageCount, "1")
}

// execute runs one command. The second result is false when the command has no reply.
func (s *Server) execute(header string, arg string) (string, bool) {
	switch header {
	case "*IDN?":
		return s.profile.Identification, true
	case "*RST":
		s.resetSettings()
		return "", false
	case "*CLS":
		s.errors.Reset()
		return "", false
	case "*OPC?":
		return "1", true
	case "SCAN":
		s.scan()
		return "", false
	case "SYST:ERR?":
		if e, ok := s.errors.Peek(); ok {
			return strconv.Itoa(e.Code), true
		}

		return "0", true
	case "SYST:ERRD?":
		if e, ok := s.errors.Dequeue(); ok {
			return e.Description, true
		}

		return "No error", true
	case "FETC:FSIZ?":
		return strconv.Itoa(s.pointCount()), true
	case "FETC:XAXI?":
		return s.fetch(arg, s.axis)
	case "FETC:MEAS?":
		return s.fetch(arg, s.measurement)
	}

	if strings.HasPrefix(header, "CONF:") {
		return s.configure(header, arg)
	}

	s.pushError(ErrCodeUndefinedHeader, "Undefined header; "+header)

	return "", false
}

func (s *Server) configure(header string, arg string) (string, bool) {
	if key, isQuery := strings.CutSuffix(header, "?"); isQuery {
		if v, ok := s.settings.Load(key); ok {
			return v, true
		}
		s.pushError(ErrCodeUndefinedHeader, "Undefined header; "+header)

		return "", false
	}

	if _, ok := s.settings.Load(header); !ok {
		s.pushError(ErrCodeUndefinedHeader, "Undefined header; "+header)
		return "", false
	}
	if readOnlySettings[header] {
		s.pushError(ErrCodeSettingsConflict, "Settings conflict; "+header+" is read-only")
		return "", false
	}
	if arg == "" {
		s.pushError(ErrCodeMissingParameter, "Missing parameter; "+header)
		return "", false
	}

	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		s.pushError(ErrCodeDataType, "Data type error; "+arg)
		return "", false
	}
	if (header == keyWavelengthRange || header == keyAverageCount) && v <= 0 {
		s.pushError(ErrCodeDataOutOfRange, "Data out of range; "+arg)
		return "", false
	}

	s.settings.Store(header, formatFloat(v))

	return "", false
}

func (s *Server) scan() {
	s.scanCount.Add(1)

	if e, ok := s.scanErrors.Dequeue(); ok {
		s.pushError(e.Code, e.Description)
		return
	}

	if s.profile.ScanErrorCode != 0 {
		s.pushError(s.profile.ScanErrorCode, s.profile.ScanErrorDescription)
	}
}

func (s *Server) fetch(arg string, gen func(sel int, n int) ([]float64, bool)) (string, bool) {
	sel, err := strconv.Atoi(arg)
	if err != nil {
		s.pushError(ErrCodeDataType, "Data type error; "+arg)
		return "", false
	}

	values, ok := gen(sel, s.pointCount())
	if !ok {
		s.pushError(ErrCodeDataOutOfRange, "Data out of range; "+arg)
		return "", false
	}

	return formatArray(values), true
}

func (s *Server) pointCount() int {
	if n := s.points.Load(); n > 0 {
		return int(n)
	}

	rang := s.floatSetting(keyWavelengthRange)
	sres := s.floatSetting(keySampleResolution)
	if sres <= 0 {
		return 1
	}

	return max(1, int(math.Round(rang/sres)))
}

func (s *Server) floatSetting(key string) float64 {
	v, _ := s.settings.Load(key)
	f, _ := strconv.ParseFloat(v, 64)

	return f
}

func (s *Server) wavelengths(n int) []float64 {
	cwl := s.floatSetting(keyCenterWavelength)
	rang := s.floatSetting(keyWavelengthRange)

	values := make([]float64, n)
	if n == 1 {
		values[0] = cwl
		return values
	}

	start := cwl - rang/2
	step := rang / float64(n-1)
	for i := range values {
		values[i] = start + float64(i)*step
	}

	return values
}

func (s *Server) axis(sel int, n int) ([]float64, bool) {
	switch sel {
	case AxisWavelength:
		return s.wavelengths(n), true
	case AxisFrequency:
		values := s.wavelengths(n)
		for i, wl := range values {
			values[i] = speedOfLight / wl
		}

		return values, true
	case AxisTime:
		wl := s.wavelengths(n)
		span := math.Abs(speedOfLight/wl[0] - speedOfLight/wl[n-1])
		dt := 0.0
		if span > 0 {
			dt = 1e-3 / span
		}

		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i-n/2) * dt
		}

		return values, true
	}

	return nil, false
}

func (s *Server) measurement(sel int, n int) ([]float64, bool) {
	values := make([]float64, n)
	phase := func(i int, cycles float64) float64 {
		return 2 * math.Pi * cycles * float64(i) / float64(n)
	}

	switch sel {
	case MeasInsertionLoss:
		for i := range values {
			values[i] = -3 - 0.5*math.Sin(phase(i, 4))
		}
	case MeasGroupDelay:
		for i := range values {
			values[i] = 10 + 2*math.Cos(phase(i, 3))
		}
	case MeasLinearPhaseDeviation:
		for i := range values {
			values[i] = 0.1 * math.Sin(phase(i, 5))
		}
	case MeasTimeDomainAmplitude:
		width := math.Max(float64(n)/50, 1)
		for i := range values {
			x := (float64(i) - float64(n)/2) / width
			values[i] = -60 + 50*math.Exp(-x*x)
		}
	case MeasTimeDomainWavelength:
		cwl := s.floatSetting(keyCenterWavelength)
		for i := range values {
			values[i] = cwl + 0.01*math.Sin(phase(i, 1))
		}
	default:
		return nil, false
	}

	return values, true
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatArray renders values the way the instrument does: CR separated.
func formatArray(values []float64) string {
	var sb strings.Builder
	sb.Grow(len(values) * 14)

	for i, v := range values {
		if i > 0 {
			sb.WriteByte('\r')
		}
		sb.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
	}

	return sb.String()
}
