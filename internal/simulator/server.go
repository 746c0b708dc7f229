// Package simulator implements a simulated optical vector analyzer that speaks the
// instrument's SCPI dialect over TCP.
//
// It is used by the driver tests and by cmd/ovasim. Besides the command set, the
// server exposes hooks that reproduce failure modes of a real instrument: replies that
// never come, replies that come late, replies split into small delayed writes, scans
// that end with an error and connections that drop.
package simulator

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-ova/internal/queue"
	"github.com/arloliu/go-ova/logger"
)

// InstrumentError is an entry of the instrument error queue.
type InstrumentError struct {
	Code        int
	Description string
}

// Standard SCPI error codes raised by the simulator.
const (
	ErrCodeDataType         = -104
	ErrCodeMissingParameter = -109
	ErrCodeUndefinedHeader  = -113
	ErrCodeSettingsConflict = -221
	ErrCodeDataOutOfRange   = -222
	ErrCodeQueueOverflow    = -350
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server is a simulated instrument.
type Server struct {
	profile Profile
	logger  logger.Logger

	listener net.Listener
	closed   atomic.Bool
	wg       sync.WaitGroup

	settings *xsync.MapOf[string, string]
	conns    *xsync.MapOf[uint64, net.Conn]
	silenced *xsync.MapOf[string, struct{}]
	delays   *xsync.MapOf[string, time.Duration]

	errors     *queue.Queue[InstrumentError]
	scanErrors *queue.Queue[InstrumentError]

	connID     atomic.Uint64
	scanCount  atomic.Uint64
	points     atomic.Int64
	chunkSize  atomic.Int64
	chunkDelay atomic.Int64

	mu       sync.Mutex
	commands []string
}

// New creates a server for the given profile. The server does not listen until Start.
func New(profile Profile, opts ...Option) (*Server, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		profile:    profile,
		logger:     logger.GetLogger(),
		settings:   xsync.NewMapOf[string, string](),
		conns:      xsync.NewMapOf[uint64, net.Conn](),
		silenced:   xsync.NewMapOf[string, struct{}](),
		delays:     xsync.NewMapOf[string, time.Duration](),
		errors:     queue.New[InstrumentError](profile.ErrorQueueSize),
		scanErrors: queue.New[InstrumentError](0),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "simulator")

	s.resetSettings()
	s.points.Store(int64(profile.Points))
	s.chunkSize.Store(int64(profile.ChunkSize))
	s.chunkDelay.Store(int64(profile.ChunkDelay))

	return s, nil
}

// Start listens on addr, e.g. "127.0.0.1:0", and serves connections in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("simulator listening", "addr", ln.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() *net.TCPAddr {
	addr, _ := s.listener.Addr().(*net.TCPAddr)
	return addr
}

// Host returns the listen IP address.
func (s *Server) Host() string {
	return s.Addr().IP.String()
}

// Port returns the listen port.
func (s *Server) Port() int {
	return s.Addr().Port
}

// Close stops listening, drops all connections and waits for their handlers.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.DropConnections()
	s.wg.Wait()

	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("accept failed", "error", err)

			continue
		}

		id := s.connID.Add(1)
		s.conns.Store(id, conn)

		s.wg.Add(1)
		go s.handleConn(id, conn)
	}
}

func (s *Server) handleConn(id uint64, conn net.Conn) {
	defer func() {
		s.conns.Delete(id)
		_ = conn.Close()
		s.wg.Done()
	}()

	s.logger.Debug("client connected", "id", id, "remote", conn.RemoteAddr().String())

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("client read failed", "id", id, "error", err)
			}

			return
		}

		if err := s.handleLine(conn, line); err != nil {
			s.logger.Debug("client write failed", "id", id, "error", err)
			return
		}
	}
}

func (s *Server) handleLine(conn net.Conn, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	s.record(line)

	header, arg, _ := strings.Cut(line, " ")
	header = strings.ToUpper(header)
	arg = strings.TrimSpace(arg)

	if _, ok := s.silenced.Load(header); ok {
		return nil
	}

	reply, ok := s.execute(header, arg)
	if !ok {
		return nil
	}

	if d, ok := s.delays.Load(header); ok && d > 0 {
		time.Sleep(d)
	}
	if d := s.profile.ResponseDelay; d > 0 {
		time.Sleep(d)
	}

	return s.writeReply(conn, []byte(reply+"\n"))
}

func (s *Server) writeReply(conn net.Conn, data []byte) error {
	size := int(s.chunkSize.Load())
	if size <= 0 {
		_, err := conn.Write(data)
		return err
	}

	delay := time.Duration(s.chunkDelay.Load())
	for len(data) > 0 {
		n := min(size, len(data))
		if _, err := conn.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]

		if len(data) > 0 && delay > 0 {
			time.Sleep(delay)
		}
	}

	return nil
}

func (s *Server) record(line string) {
	s.mu.Lock()
	s.commands = append(s.commands, line)
	s.mu.Unlock()
}

func (s *Server) pushError(code int, desc string) {
	if !s.errors.Enqueue(InstrumentError{Code: code, Description: desc}) {
		s.logger.Warn("error queue overflow", "code", code)
	}
}

// --- Test hooks ---

// Silence makes the server swallow header without replying, until Unsilence.
func (s *Server) Silence(header string) {
	s.silenced.Store(strings.ToUpper(header), struct{}{})
}

// Unsilence restores replies to header.
func (s *Server) Unsilence(header string) {
	s.silenced.Delete(strings.ToUpper(header))
}

// DelayReply delays every reply to header by d. A zero d removes the delay.
func (s *Server) DelayReply(header string, d time.Duration) {
	if d <= 0 {
		s.delays.Delete(strings.ToUpper(header))
		return
	}
	s.delays.Store(strings.ToUpper(header), d)
}

// SetChunking splits replies into writes of at most size bytes separated by delay.
// A zero size writes replies at once.
func (s *Server) SetChunking(size int, delay time.Duration) {
	s.chunkSize.Store(int64(size))
	s.chunkDelay.Store(int64(delay))
}

// SetPoints fixes the number of points of every array. Zero derives it from the
// wavelength range and the sample resolution.
func (s *Server) SetPoints(n int) {
	s.points.Store(int64(n))
}

// InjectScanError makes the next scan report the given error.
func (s *Server) InjectScanError(code int, desc string) {
	s.scanErrors.Enqueue(InstrumentError{Code: code, Description: desc})
}

// PushError appends an error to the instrument error queue.
func (s *Server) PushError(code int, desc string) {
	s.pushError(code, desc)
}

// PendingErrors returns the number of entries in the instrument error queue.
func (s *Server) PendingErrors() int {
	return s.errors.Length()
}

// DropConnections closes every client connection.
func (s *Server) DropConnections() {
	s.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
}

// ConnectionCount returns the number of connected clients.
func (s *Server) ConnectionCount() int {
	return s.conns.Size()
}

// Setting returns the current value of a configuration header such as "CONF:CWL".
func (s *Server) Setting(key string) (string, bool) {
	return s.settings.Load(strings.ToUpper(key))
}

// ScanCount returns the number of scans performed.
func (s *Server) ScanCount() uint64 {
	return s.scanCount.Load()
}

// Commands returns every received line in arrival order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

// ResetCommands clears the received line log.
func (s *Server) ResetCommands() {
	s.mu.Lock()
	s.commands = nil
	s.mu.Unlock()
}
