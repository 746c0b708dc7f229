package session

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-ova/logger"
	"github.com/arloliu/go-ova/scpi"
)

// Session is a connection to one instrument.
//
// A session is created disconnected. Open dials the instrument and performs the
// identification handshake; only then are commands accepted. Close, or an
// unrecoverable I/O error during an exchange, returns the session to the
// disconnected state. The session never reconnects by itself.
//
// Exchange, Write and Reserve delegate to the session's command channel and share
// its single in-flight rule. Open and Close may be called from any goroutine.
type Session struct {
	cfg     *ConnectionConfig
	logger  logger.Logger
	metrics ChannelMetrics

	state AtomicConnState

	// mu serializes Open and Close.
	mu  sync.Mutex
	ch  atomic.Pointer[Channel]
	idn atomic.Pointer[string]
}

var _ Exchanger = (*Session)(nil)

// NewSession creates a disconnected session for the instrument described by cfg.
func NewSession(cfg *ConnectionConfig) *Session {
	return &Session{
		cfg:    cfg,
		logger: cfg.GetLogger().With("host", cfg.Host(), "port", cfg.Port()),
	}
}

// Open connects to the instrument and returns its identification string.
//
// An already connected session is closed first. If the dial fails, or the
// identification query does not return a non-empty line within the session timeout,
// Open returns an error wrapping scpi.ErrConnection and the session stays
// disconnected.
func (s *Session) Open(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.Get().IsDisconnected() {
		s.closeLocked()
	}

	if !s.state.ToConnecting() {
		return "", fmt.Errorf("%w: session is in state %s", scpi.ErrConnection, s.state.String())
	}

	conn, err := s.dial(ctx)
	if err != nil {
		s.state.Set(DisconnectedState)
		return "", fmt.Errorf("%w: dial %s: %w", scpi.ErrConnection, s.cfg.Addr(), err)
	}

	ch := NewChannel(NewTransport(conn, s.cfg.Timeout(), &s.metrics), s.cfg, &s.metrics)
	ch.logger = s.logger
	ch.onConnLost = s.connLost
	s.ch.Store(ch)

	idn, err := s.identify(ctx, ch)
	if err != nil {
		s.closeLocked()
		return "", err
	}

	if !s.state.ToConnected() {
		s.closeLocked()
		return "", fmt.Errorf("%w: connection lost during handshake", scpi.ErrConnection)
	}

	s.idn.Store(&idn)
	s.metrics.incConnectCount()
	s.logger.Info("instrument connected", "idn", idn)

	return idn, nil
}

// identify runs the handshake. Its failures are all connection errors, including a
// handshake that timed out.
func (s *Session) identify(ctx context.Context, ch *Channel) (string, error) {
	rsp, err := ch.Exchange(ctx, scpi.NewQuery(s.cfg.IdentifyCommand(), scpi.ShapeText))
	if err != nil {
		return "", fmt.Errorf("%w: identification failed: %v", scpi.ErrConnection, err) //nolint:errorlint
	}

	idn, _ := rsp.Text()
	if idn == "" {
		return "", fmt.Errorf("%w: empty identification from %s", scpi.ErrConnection, s.cfg.Addr())
	}

	return idn, nil
}

func (s *Session) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   s.cfg.ConnectTimeout(),
		KeepAlive: s.cfg.KeepAlive(),
	}

	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Addr())
	if err != nil {
		return nil, err
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
		_ = tcpConn.SetReadBuffer(s.cfg.BufferSize())
		_ = tcpConn.SetWriteBuffer(s.cfg.BufferSize())
	}

	return conn, nil
}

// Close disconnects the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	return nil
}

func (s *Session) closeLocked() {
	if ch := s.ch.Load(); ch != nil {
		_ = ch.tr.Close()
	}

	if prev := s.state.Swap(DisconnectedState); prev.IsConnected() {
		s.logger.Info("instrument disconnected")
	}
}

// connLost is the channel's fatal error path. It must not take mu, since the
// handshake runs under it.
func (s *Session) connLost(err error) {
	if s.state.ToDisconnected() {
		s.metrics.incConnLostCount()
		s.logger.Error("instrument connection lost", "error", err)
	}
}

// IsOpen reports whether the session is connected.
func (s *Session) IsOpen() bool {
	return s.state.Get().IsConnected()
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	return s.state.Get()
}

// Identification returns the identification string of the last successful Open.
func (s *Session) Identification() string {
	if idn := s.idn.Load(); idn != nil {
		return *idn
	}

	return ""
}

// Config returns the session configuration.
func (s *Session) Config() *ConnectionConfig {
	return s.cfg
}

// Metrics returns the session metrics.
func (s *Session) Metrics() *ChannelMetrics {
	return &s.metrics
}

// Exchange sends a query and returns its parsed response. See Channel.Exchange.
func (s *Session) Exchange(ctx context.Context, cmd scpi.Command) (scpi.Response, error) {
	ch, err := s.channel()
	if err != nil {
		return scpi.Response{}, err
	}

	return ch.Exchange(ctx, cmd)
}

// Write sends a command that has no response. See Channel.Write.
func (s *Session) Write(ctx context.Context, cmd scpi.Command) error {
	ch, err := s.channel()
	if err != nil {
		return err
	}

	return ch.Write(ctx, cmd)
}

// Reserve holds the command channel exclusively while fn runs. See Channel.Reserve.
func (s *Session) Reserve(fn func(ex Exchanger) error) error {
	ch, err := s.channel()
	if err != nil {
		return err
	}

	return ch.Reserve(fn)
}

// Query sends a raw query line, e.g. "CONF:CWL?", and returns the response text.
//
// The line is split at the first space into header and argument.
func (s *Session) Query(ctx context.Context, line string) (string, error) {
	header, arg := splitLine(line)

	rsp, err := s.Exchange(ctx, scpi.NewQuery(header, scpi.ShapeText, arg...))
	if err != nil {
		return "", err
	}

	return rsp.Text()
}

// WriteLine sends a raw command line that has no response, e.g. "CONF:CWL 1550".
func (s *Session) WriteLine(ctx context.Context, line string) error {
	header, arg := splitLine(line)

	return s.Write(ctx, scpi.NewCommand(header, arg...))
}

// QueryArray sends a raw query line and parses the response as a numeric sequence
// of any length.
func (s *Session) QueryArray(ctx context.Context, line string) ([]float64, error) {
	header, arg := splitLine(line)

	rsp, err := s.Exchange(ctx, scpi.NewQuery(header, scpi.ShapeNumericSequence, arg...))
	if err != nil {
		return nil, err
	}

	return rsp.Values()
}

func (s *Session) channel() (*Channel, error) {
	ch := s.ch.Load()
	if ch == nil || !s.state.Get().IsConnected() {
		return nil, fmt.Errorf("%w: session is %s", scpi.ErrConnection, s.state.String())
	}

	return ch, nil
}

func splitLine(line string) (string, []string) {
	line = strings.TrimSpace(line)

	header, arg, found := strings.Cut(line, " ")
	if !found {
		return header, nil
	}

	return header, []string{strings.TrimSpace(arg)}
}
