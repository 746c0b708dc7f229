package scpi

import (
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// feedInChunks writes data to the decoder in random chunk sizes and returns the
// first complete unit.
func feedInChunks(t *testing.T, dec *Decoder, data []byte, rnd *rand.Rand) []byte {
	t.Helper()

	for len(data) > 0 {
		n := rnd.Intn(64) + 1
		if n > len(data) {
			n = len(data)
		}
		_, err := dec.Write(data[:n])
		require.NoError(t, err)
		data = data[n:]

		if unit, ok := dec.Decode(); ok {
			require.Empty(t, data, "unit completed before all bytes were fed")
			return unit
		}
	}

	t.Fatal("no complete unit decoded")

	return nil
}

func makeSequence(n int) ([]float64, string) {
	values := make([]float64, n)
	parts := make([]string, n)
	for i := range values {
		values[i] = 1530 + float64(i)*0.00125
		parts[i] = strconv.FormatFloat(values[i], 'E', -1, 64)
	}

	return values, strings.Join(parts, "\r")
}

func TestEncode(t *testing.T) {
	require := require.New(t)

	buf, err := Encode(NewQuery("CONF:CWL?", ShapeFloat), DefaultTerminator)
	require.NoError(err)
	require.Equal("CONF:CWL?\n", string(buf))

	buf, err = Encode(NewFloatCommand("CONF:CWL", 1550), DefaultTerminator)
	require.NoError(err)
	require.Equal("CONF:CWL 1550\n", string(buf))

	buf, err = Encode(NewQuery("FETC:MEAS?", ShapeNumericSequence, "9"), '\r')
	require.NoError(err)
	require.Equal("FETC:MEAS? 9\r", string(buf))

	_, err = Encode(NewCommand(""), DefaultTerminator)
	require.ErrorIs(err, ErrProtocol)

	_, err = Encode(NewCommand("CONF:ID", "A;B"), ';')
	require.ErrorIs(err, ErrProtocol)
}

func TestDecoder_RoundTrip_Scalar(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	cmd := NewQuery("CONF:CWL?", ShapeFloat)

	for i := range 50 {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			require := require.New(t)

			dec := NewDecoder(DefaultTerminator, 0)
			unit := feedInChunks(t, dec, []byte("1.550000000E+03\r\n"), rnd)

			rsp, err := ParseResponse(unit, cmd)
			require.NoError(err)
			f, err := rsp.Float()
			require.NoError(err)
			require.InDelta(1550.0, f, 1e-9)
			require.Zero(dec.Buffered())
		})
	}
}

func TestDecoder_RoundTrip_LargeSequence(t *testing.T) {
	values, payload := makeSequence(10000)
	wire := []byte(payload + "\n")
	cmd := NewQuery("FETC:MEAS?", ShapeNumericSequence, "0").WithExpectedCount(len(values))

	for seed := int64(1); seed <= 5; seed++ {
		t.Run("seed"+strconv.FormatInt(seed, 10), func(t *testing.T) {
			require := require.New(t)

			rnd := rand.New(rand.NewSource(seed))
			dec := NewDecoder(DefaultTerminator, 0)
			unit := feedInChunks(t, dec, wire, rnd)

			rsp, err := ParseResponse(unit, cmd)
			require.NoError(err)
			got, err := rsp.Values()
			require.NoError(err)
			require.Equal(values, got)
		})
	}
}

func TestDecoder_ArrayEndsAtTerminator(t *testing.T) {
	require := require.New(t)

	dec := NewDecoder(DefaultTerminator, 0)

	// two elements are already complete, but the unit is still open
	_, err := dec.Write([]byte("1,2,"))
	require.NoError(err)
	_, ok := dec.Decode()
	require.False(ok)

	_, err = dec.Write([]byte("3\n"))
	require.NoError(err)
	unit, ok := dec.Decode()
	require.True(ok)
	require.Equal("1,2,3", string(unit))
	require.Zero(dec.Buffered())

	_, err = ParseNumericSequence(string(unit), 2)
	require.ErrorIs(err, ErrParse)
}

func TestDecoder_UnitIndependentOfSplit(t *testing.T) {
	wire := []byte("1,2,3\n")

	for split := 1; split < len(wire); split++ {
		t.Run(strconv.Itoa(split), func(t *testing.T) {
			require := require.New(t)

			dec := NewDecoder(DefaultTerminator, 0)
			_, err := dec.Write(wire[:split])
			require.NoError(err)
			_, ok := dec.Decode()
			require.False(ok)

			_, err = dec.Write(wire[split:])
			require.NoError(err)
			unit, ok := dec.Decode()
			require.True(ok)
			require.Equal("1,2,3", string(unit))
			require.Zero(dec.Buffered())

			_, err = ParseNumericSequence(string(unit), 2)
			require.ErrorIs(err, ErrParse)
			values, err := ParseNumericSequence(string(unit), 3)
			require.NoError(err)
			require.Equal([]float64{1, 2, 3}, values)
		})
	}
}

func TestDecoder_ShortArray(t *testing.T) {
	require := require.New(t)

	dec := NewDecoder(DefaultTerminator, 0)
	_, err := dec.Write([]byte("1,2,3,4\n"))
	require.NoError(err)

	unit, ok := dec.Decode()
	require.True(ok)

	_, err = ParseNumericSequence(string(unit), 5)
	require.ErrorIs(err, ErrParse)
}

func TestDecoder_CarriageReturnSeparators(t *testing.T) {
	require := require.New(t)

	dec := NewDecoder(DefaultTerminator, 0)
	_, err := dec.Write([]byte("1.5\r2.5\r3.5\r"))
	require.NoError(err)
	_, ok := dec.Decode()
	require.False(ok)

	_, err = dec.Write([]byte("\nOK\n"))
	require.NoError(err)
	unit, ok := dec.Decode()
	require.True(ok)

	values, err := ParseNumericSequence(string(unit), 3)
	require.NoError(err)
	require.Equal([]float64{1.5, 2.5, 3.5}, values)

	unit, ok = dec.Decode()
	require.True(ok)
	require.Equal("OK", string(unit))
	require.Zero(dec.Buffered())
}

func TestDecoder_Concatenated(t *testing.T) {
	require := require.New(t)

	dec := NewDecoder(DefaultTerminator, 0)
	_, err := dec.Write([]byte("Luna,OVA5000,1234,5.0\n1550.0\n15"))
	require.NoError(err)

	unit, ok := dec.Decode()
	require.True(ok)
	require.Equal("Luna,OVA5000,1234,5.0", string(unit))

	unit, ok = dec.Decode()
	require.True(ok)
	require.Equal("1550.0", string(unit))

	_, ok = dec.Decode()
	require.False(ok)
	require.Equal(2, dec.Buffered())

	_, err = dec.Write([]byte("\n"))
	require.NoError(err)
	unit, ok = dec.Decode()
	require.True(ok)
	require.Equal("15", string(unit))
}

func TestDecoder_UnitIsCopied(t *testing.T) {
	require := require.New(t)

	dec := NewDecoder(DefaultTerminator, 0)
	_, _ = dec.Write([]byte("first\n"))
	unit, ok := dec.Decode()
	require.True(ok)

	_, _ = dec.Write([]byte("XXXXX\n"))
	require.Equal("first", string(unit))
}

func TestDecoder_Reset(t *testing.T) {
	require := require.New(t)

	dec := NewDecoder(DefaultTerminator, 0)
	_, _ = dec.Write([]byte("stale,bytes"))
	require.Equal(11, dec.Buffered())

	dec.Reset()
	require.Zero(dec.Buffered())

	_, _ = dec.Write([]byte("fresh\n"))
	unit, ok := dec.Decode()
	require.True(ok)
	require.Equal("fresh", string(unit))
}

func TestDecoder_MaxSize(t *testing.T) {
	require := require.New(t)

	dec := NewDecoder(DefaultTerminator, 8)
	_, err := dec.Write([]byte("12345"))
	require.NoError(err)

	n, err := dec.Write([]byte("6789"))
	require.ErrorIs(err, ErrParse)
	require.Zero(n)
	require.Equal(5, dec.Buffered())
}

func FuzzDecoder(f *testing.F) {
	f.Add([]byte("1.0\n"), 0)
	f.Add([]byte("1,2,3\r\n"), 3)
	f.Add([]byte("\n\n\n"), 1)
	f.Add([]byte("1\r2\r3\r4"), 2)
	f.Add([]byte{}, 5)

	f.Fuzz(func(t *testing.T, data []byte, expected int) {
		dec := NewDecoder(DefaultTerminator, 1<<16)
		if _, err := dec.Write(data); err != nil {
			return
		}

		total := 0
		for {
			unit, ok := dec.Decode()
			if !ok {
				break
			}
			total += len(unit)
			_, _ = ParseNumericSequence(string(unit), expected%1000)
			if total > len(data) {
				t.Fatalf("decoded %d bytes from %d input bytes", total, len(data))
			}
		}
		if dec.Buffered() > len(data) {
			t.Fatalf("buffered %d bytes from %d input bytes", dec.Buffered(), len(data))
		}
	})
}
