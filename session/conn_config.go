package session

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/arloliu/go-ova/logger"
	"github.com/arloliu/go-ova/scpi"
)

// Default values for a session.
const (
	DefaultTimeout         = 5 * time.Second        // Exchange budget
	DefaultConnectTimeout  = 3 * time.Second        // TCP dial timeout
	DefaultPollInterval    = 50 * time.Millisecond  // Upper bound of a single receive wait
	DefaultKeepAlive       = 30 * time.Second       // TCP keep-alive period
	DefaultBufferSize      = 1 << 19                // Receive chunk and socket buffer size
	DefaultMaxResponseSize = 64 << 20               // Largest single response accepted
	DefaultIdentifyCommand = "*IDN?"                // Handshake query
	DefaultTerminator      = scpi.DefaultTerminator // Line terminator
)

// Range limits for session options.
const (
	MinTimeout = 1 * time.Millisecond
	MaxTimeout = 10 * time.Minute

	MinPollInterval = 1 * time.Millisecond

	MinBufferSize = 64
	MaxBufferSize = 64 << 20
)

// ConnectionConfig holds the configuration of an instrument session.
//
// All fields are fixed for the life of the session that is created from it.
type ConnectionConfig struct {
	host string
	port int

	// timeout is the total budget of one command/response exchange.
	timeout time.Duration
	// pollInterval bounds each receive wait inside an exchange, never larger than timeout.
	pollInterval time.Duration

	connectTimeout time.Duration
	keepAlive      time.Duration

	bufferSize      int
	maxResponseSize int

	terminator      byte
	identifyCommand string

	logger logger.Logger
}

// NewConnectionConfig creates a new session configuration.
//
// host is the instrument address, port is its TCP port.
// opts are functional options applied in order; see With* functions.
func NewConnectionConfig(host string, port int, opts ...ConnOption) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{
		timeout:         DefaultTimeout,
		pollInterval:    DefaultPollInterval,
		connectTimeout:  DefaultConnectTimeout,
		keepAlive:       DefaultKeepAlive,
		bufferSize:      DefaultBufferSize,
		maxResponseSize: DefaultMaxResponseSize,
		terminator:      DefaultTerminator,
		identifyCommand: DefaultIdentifyCommand,
		logger:          logger.GetLogger(),
	}

	if err := cfg.setHost(host); err != nil {
		return nil, err
	}
	if err := cfg.setPort(port); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.pollInterval > cfg.timeout {
		cfg.pollInterval = cfg.timeout
	}
	if cfg.maxResponseSize < cfg.bufferSize {
		return nil, fmt.Errorf("session: max response size %d is smaller than buffer size %d",
			cfg.maxResponseSize, cfg.bufferSize)
	}

	return cfg, nil
}

func (cfg *ConnectionConfig) setHost(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		cfg.host = host
		return nil
	}

	host = strings.TrimPrefix(host, ".")
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return errors.New("session: host must not be empty")
	}
	if _, err := net.LookupHost(host); err == nil {
		cfg.host = host
		return nil
	}

	return fmt.Errorf("session: invalid host %q", host)
}

func (cfg *ConnectionConfig) setPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("session: port %d out of range [1, 65535]", port)
	}
	cfg.port = port

	return nil
}

// --- Getters ---

// Host returns the configured host address.
func (cfg *ConnectionConfig) Host() string { return cfg.host }

// Port returns the configured TCP port.
func (cfg *ConnectionConfig) Port() int { return cfg.port }

// Addr returns "host:port".
func (cfg *ConnectionConfig) Addr() string {
	return net.JoinHostPort(cfg.host, fmt.Sprintf("%d", cfg.port))
}

// Timeout returns the budget of one command/response exchange.
func (cfg *ConnectionConfig) Timeout() time.Duration { return cfg.timeout }

// PollInterval returns the upper bound of a single receive wait.
func (cfg *ConnectionConfig) PollInterval() time.Duration { return cfg.pollInterval }

// ConnectTimeout returns the TCP dial timeout.
func (cfg *ConnectionConfig) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// KeepAlive returns the TCP keep-alive period.
func (cfg *ConnectionConfig) KeepAlive() time.Duration { return cfg.keepAlive }

// BufferSize returns the receive chunk size, also used for the socket buffers.
func (cfg *ConnectionConfig) BufferSize() int { return cfg.bufferSize }

// MaxResponseSize returns the largest single response the session accepts.
func (cfg *ConnectionConfig) MaxResponseSize() int { return cfg.maxResponseSize }

// Terminator returns the line terminator byte.
func (cfg *ConnectionConfig) Terminator() byte { return cfg.terminator }

// IdentifyCommand returns the query sent during the open handshake.
func (cfg *ConnectionConfig) IdentifyCommand() string { return cfg.identifyCommand }

// GetLogger returns the configured logger.
func (cfg *ConnectionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- ConnOption ---

// ConnOption is a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc func(*ConnectionConfig) error

func (f connOptFunc) apply(cfg *ConnectionConfig) error { return f(cfg) }

// WithTimeout sets the budget of one command/response exchange.
// Range: 1ms–10m.
func WithTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("session: timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.timeout = d

		return nil
	})
}

// WithPollInterval sets the upper bound of a single receive wait.
// Values larger than the timeout are clamped to it.
func WithPollInterval(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d < MinPollInterval {
			return fmt.Errorf("session: poll interval %v is below %v", d, MinPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if d <= 0 {
			return errors.New("session: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithKeepAlive sets the TCP keep-alive period. A negative value disables keep-alive.
func WithKeepAlive(d time.Duration) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cfg.keepAlive = d
		return nil
	})
}

// WithBufferSize sets the receive chunk size, which is also applied to the socket
// read and write buffers.
func WithBufferSize(size int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if size < MinBufferSize || size > MaxBufferSize {
			return fmt.Errorf("session: buffer size %d out of range [%d, %d]", size, MinBufferSize, MaxBufferSize)
		}
		cfg.bufferSize = size

		return nil
	})
}

// WithMaxResponseSize sets the largest single response the session accepts.
// It must not be smaller than the buffer size.
func WithMaxResponseSize(size int) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if size <= 0 {
			return errors.New("session: max response size must be positive")
		}
		cfg.maxResponseSize = size

		return nil
	})
}

// WithTerminator sets the line terminator. It must be a control character.
func WithTerminator(term byte) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if term >= ' ' && term != 0x7f {
			return fmt.Errorf("session: terminator 0x%02x is a printable character", term)
		}
		cfg.terminator = term

		return nil
	})
}

// WithIdentifyCommand sets the query sent during the open handshake.
func WithIdentifyCommand(header string) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		cmd := scpi.NewQuery(header, scpi.ShapeText)
		if err := cmd.Err(); err != nil {
			return fmt.Errorf("session: identify command: %w", err)
		}
		cfg.identifyCommand = header

		return nil
	})
}

// WithLogger sets the logger for the session.
func WithLogger(l logger.Logger) ConnOption {
	return connOptFunc(func(cfg *ConnectionConfig) error {
		if l == nil {
			return errors.New("session: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
