package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-ova/logger"
)

func TestNewConnectionConfig_Defaults(t *testing.T) {
	cfg, err := NewConnectionConfig("127.0.0.1", 5025)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host())
	assert.Equal(t, 5025, cfg.Port())
	assert.Equal(t, "127.0.0.1:5025", cfg.Addr())

	assert.Equal(t, DefaultTimeout, cfg.Timeout())
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval())
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout())
	assert.Equal(t, DefaultKeepAlive, cfg.KeepAlive())
	assert.Equal(t, DefaultBufferSize, cfg.BufferSize())
	assert.Equal(t, DefaultMaxResponseSize, cfg.MaxResponseSize())
	assert.Equal(t, byte('\n'), cfg.Terminator())
	assert.Equal(t, "*IDN?", cfg.IdentifyCommand())

	assert.NotNil(t, cfg.GetLogger())
}

func TestNewConnectionConfig_WithOptions(t *testing.T) {
	l := logger.NewMockLogger()

	cfg, err := NewConnectionConfig("::1", 1,
		WithTimeout(100*time.Millisecond),
		WithPollInterval(10*time.Millisecond),
		WithConnectTimeout(time.Second),
		WithKeepAlive(-1),
		WithBufferSize(1024),
		WithMaxResponseSize(4096),
		WithTerminator('\r'),
		WithIdentifyCommand("*IDN?"),
		WithLogger(l),
	)
	require.NoError(t, err)

	assert.Equal(t, "[::1]:1", cfg.Addr())
	assert.Equal(t, 100*time.Millisecond, cfg.Timeout())
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, time.Second, cfg.ConnectTimeout())
	assert.Equal(t, time.Duration(-1), cfg.KeepAlive())
	assert.Equal(t, 1024, cfg.BufferSize())
	assert.Equal(t, 4096, cfg.MaxResponseSize())
	assert.Equal(t, byte('\r'), cfg.Terminator())
	assert.Same(t, l, cfg.GetLogger())
}

func TestNewConnectionConfig_PollIntervalClamped(t *testing.T) {
	cfg, err := NewConnectionConfig("127.0.0.1", 5025,
		WithPollInterval(time.Second),
		WithTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval())
}

func TestNewConnectionConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int
		opts []ConnOption
	}{
		{name: "empty host", host: "", port: 5025},
		{name: "port zero", host: "127.0.0.1", port: 0},
		{name: "port too large", host: "127.0.0.1", port: 70000},
		{name: "zero timeout", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithTimeout(0)}},
		{name: "negative timeout", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithTimeout(-time.Second)}},
		{name: "timeout too large", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithTimeout(time.Hour)}},
		{name: "zero poll interval", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithPollInterval(0)}},
		{name: "zero connect timeout", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithConnectTimeout(0)}},
		{name: "zero buffer", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithBufferSize(0)}},
		{name: "buffer too large", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithBufferSize(MaxBufferSize + 1)}},
		{name: "zero max response", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithMaxResponseSize(0)}},
		{
			name: "max response below buffer", host: "127.0.0.1", port: 5025,
			opts: []ConnOption{WithBufferSize(4096), WithMaxResponseSize(1024)},
		},
		{name: "printable terminator", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithTerminator('a')}},
		{name: "empty identify command", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithIdentifyCommand("")}},
		{name: "nil logger", host: "127.0.0.1", port: 5025, opts: []ConnOption{WithLogger(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewConnectionConfig(tt.host, tt.port, tt.opts...)
			require.Error(t, err)
			require.Nil(t, cfg)
		})
	}
}
