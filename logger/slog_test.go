package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSlogLogger_JSONRecord(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false, false)
	l.Info("connected", "host", "127.0.0.1", "port", 5000)

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("connected", rec["msg"])
	require.Equal("127.0.0.1", rec["host"])
	require.InDelta(5000, rec["port"], 0)
	require.Contains(rec, "ts")
	require.NotContains(rec, "time")
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, WarnLevel, false, false)

	l.Debug("debug")
	l.Info("info")
	assert.Zero(t, buf.Len())

	l.Warn("warn")
	assert.Contains(t, buf.String(), `"msg":"warn"`)
	assert.Equal(t, WarnLevel, l.Level())

	l.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, l.Level())
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSlogLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewSlogWithWriter(&buf, InfoLevel, false, false)
	child := parent.With("session", "ova-1")

	child.Info("child record")
	assert.Contains(t, buf.String(), `"session":"ova-1"`)

	buf.Reset()
	parent.Info("parent record")
	assert.NotContains(t, buf.String(), "ova-1")

	parent.SetLevel(ErrorLevel)
	assert.Equal(t, ErrorLevel, child.Level())
}

func TestSlogLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogWithWriter(&buf, InfoLevel, false, true)
	l.Info("console record", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "console record")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetLogger(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	m := NewMockLogger()
	m.On("Info", "hello", mock.Anything).Once()

	SetLogger(m)
	Info("hello", "k", 1)
	m.AssertExpectations(t)

	SetLogger(nil)
	assert.Same(t, m, GetLogger())
}
