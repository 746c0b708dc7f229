package ova

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrace(t *testing.T) {
	require := require.New(t)

	require.Len(Traces, 8)
	for _, tr := range Traces {
		require.True(tr.IsValid())
		require.NotEqual("unknown", tr.String())
		require.NotEmpty(tr.Unit())
	}

	require.True(WavelengthAxis.IsAxis())
	require.True(TimeAxis.IsAxis())
	require.False(InsertionLoss.IsAxis())
	require.Equal("THz", FrequencyAxis.Unit())
	require.Equal("ps", GroupDelay.Unit())
	require.Equal("time-domain-wavelength", TimeDomainWavelength.String())

	invalid := Trace(len(Traces))
	require.False(invalid.IsValid())
	require.False(invalid.IsAxis())
	require.Equal("unknown", invalid.String())
	require.Empty(invalid.Unit())
}

func TestResolution(t *testing.T) {
	tests := []struct {
		desc string
		axis []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{1550}, 0},
		{"uniform", []float64{1548, 1549, 1550, 1551}, 1},
		{"descending", []float64{193.5, 193.4, 193.3}, 0.1},
		{"non-uniform", []float64{0, 1, 3}, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			require.InDelta(t, tt.want, Resolution(tt.axis), 1e-9)
		})
	}
}
