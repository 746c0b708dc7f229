package session

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-ova/internal/simulator"
	"github.com/arloliu/go-ova/logger"
	"github.com/arloliu/go-ova/scpi"
)

func TestMain(m *testing.M) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	logger.SetLevel(logger.ParseLevel(logLevel))

	os.Exit(m.Run())
}

func newSimulator(t *testing.T) *simulator.Server {
	t.Helper()

	srv, err := simulator.New(simulator.DefaultProfile())
	require.NoError(t, err)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

func newTestSession(t *testing.T, srv *simulator.Server, opts ...ConnOption) *Session {
	t.Helper()

	opts = append([]ConnOption{WithTimeout(time.Second), WithPollInterval(10 * time.Millisecond)}, opts...)
	cfg, err := NewConnectionConfig(srv.Host(), srv.Port(), opts...)
	require.NoError(t, err)

	s := NewSession(cfg)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSession_Open(t *testing.T) {
	require := require.New(t)

	srv := newSimulator(t)
	s := newTestSession(t, srv)
	require.Equal(DisconnectedState, s.State())
	require.False(s.IsOpen())

	idn, err := s.Open(context.Background())
	require.NoError(err)
	require.Equal(simulator.DefaultProfile().Identification, idn)
	require.Equal(idn, s.Identification())
	require.Equal(ConnectedState, s.State())
	require.True(s.IsOpen())
	require.Equal(uint64(1), s.Metrics().ConnectCount.Load())
}

func TestSession_NotConnected(t *testing.T) {
	require := require.New(t)

	srv := newSimulator(t)
	s := newTestSession(t, srv)

	_, err := s.Exchange(context.Background(), scpi.NewQuery("CONF:CWL?", scpi.ShapeFloat))
	require.ErrorIs(err, scpi.ErrConnection)

	err = s.Write(context.Background(), scpi.NewCommand("SCAN"))
	require.ErrorIs(err, scpi.ErrConnection)

	err = s.Reserve(func(Exchanger) error { return nil })
	require.ErrorIs(err, scpi.ErrConnection)

	require.Empty(srv.Commands())
}

func TestSession_CenterWavelengthEcho(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srv := newSimulator(t)
	s := newTestSession(t, srv)
	_, err := s.Open(ctx)
	require.NoError(err)

	require.NoError(s.Write(ctx, scpi.NewFloatCommand("CONF:CWL", 1550)))

	rsp, err := s.Exchange(ctx, scpi.NewQuery("CONF:CWL?", scpi.ShapeFloat))
	require.NoError(err)
	wl, err := rsp.Float()
	require.NoError(err)
	require.InDelta(1550.0, wl, 0)

	text, err := s.Query(ctx, "CONF:CWL?")
	require.NoError(err)
	require.Equal("1550", text)

	require.NoError(s.WriteLine(ctx, "CONF:CWL  1310.5 "))
	text, err = s.Query(ctx, "CONF:CWL?")
	require.NoError(err)
	require.Equal("1310.5", text)
}

func TestSession_QueryArray(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srv := newSimulator(t)
	srv.SetPoints(10000)
	srv.SetChunking(4096, time.Millisecond)

	s := newTestSession(t, srv)
	_, err := s.Open(ctx)
	require.NoError(err)

	values, err := s.QueryArray(ctx, "FETC:MEAS? 0")
	require.NoError(err)
	require.Len(values, 10000)

	wl, err := s.QueryArray(ctx, " FETC:XAXI?  0 ")
	require.NoError(err)
	require.Len(wl, 10000)
	require.InDelta(1548.0, wl[0], 1e-6)
	require.InDelta(1552.0, wl[len(wl)-1], 1e-6)
}

func TestSession_CloseMultipleTimes(t *testing.T) {
	require := require.New(t)

	srv := newSimulator(t)
	s := newTestSession(t, srv)
	_, err := s.Open(context.Background())
	require.NoError(err)

	require.NoError(s.Close())
	require.NoError(s.Close())
	require.Equal(DisconnectedState, s.State())
	require.False(s.IsOpen())

	_, err = s.Query(context.Background(), "*IDN?")
	require.ErrorIs(err, scpi.ErrConnection)

	require.Eventually(func() bool { return srv.ConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSession_Reopen(t *testing.T) {
	require := require.New(t)

	srv := newSimulator(t)
	s := newTestSession(t, srv)

	_, err := s.Open(context.Background())
	require.NoError(err)
	_, err = s.Open(context.Background())
	require.NoError(err)
	require.True(s.IsOpen())

	require.Eventually(func() bool { return srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(uint64(2), s.Metrics().ConnectCount.Load())
}

func TestSession_OpenHandshakeTimeout(t *testing.T) {
	require := require.New(t)

	srv := newSimulator(t)
	srv.Silence("*IDN?")

	s := newTestSession(t, srv, WithTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := s.Open(context.Background())
	require.ErrorIs(err, scpi.ErrConnection)
	require.NotErrorIs(err, scpi.ErrTimeout)
	require.Less(time.Since(start), time.Second)
	require.Equal(DisconnectedState, s.State())
	require.Empty(s.Identification())
}

func TestSession_OpenRefused(t *testing.T) {
	require := require.New(t)

	// grab a free port, then release it
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	port := ln.Addr().(*net.TCPAddr).Port //nolint:forcetypeassert
	require.NoError(ln.Close())

	cfg, err := NewConnectionConfig("127.0.0.1", port, WithConnectTimeout(200*time.Millisecond))
	require.NoError(err)

	s := NewSession(cfg)
	_, err = s.Open(context.Background())
	require.ErrorIs(err, scpi.ErrConnection)
	require.Equal(DisconnectedState, s.State())
}

func TestSession_ConnectionLost(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srv := newSimulator(t)
	s := newTestSession(t, srv)
	_, err := s.Open(ctx)
	require.NoError(err)

	srv.DropConnections()

	_, err = s.Exchange(ctx, scpi.NewQuery("CONF:CWL?", scpi.ShapeFloat))
	require.ErrorIs(err, scpi.ErrConnection)
	require.NotErrorIs(err, scpi.ErrTimeout)
	require.Equal(DisconnectedState, s.State())
	require.Equal(uint64(1), s.Metrics().ConnLostCount.Load())

	// no implicit reconnection
	_, err = s.Exchange(ctx, scpi.NewQuery("CONF:CWL?", scpi.ShapeFloat))
	require.ErrorIs(err, scpi.ErrConnection)

	_, err = s.Open(ctx)
	require.NoError(err)
	require.True(s.IsOpen())
}

func TestSession_LateReplyIsDrained(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srv := newSimulator(t)
	s := newTestSession(t, srv, WithTimeout(100*time.Millisecond))
	_, err := s.Open(ctx)
	require.NoError(err)

	srv.DelayReply("CONF:DUTL?", 200*time.Millisecond)
	_, err = s.Exchange(ctx, scpi.NewQuery("CONF:DUTL?", scpi.ShapeFloat))
	require.ErrorIs(err, scpi.ErrTimeout)
	require.Equal(uint64(1), s.Metrics().TimeoutCount.Load())

	// the late reply arrives in the meantime
	time.Sleep(300 * time.Millisecond)
	srv.DelayReply("CONF:DUTL?", 0)

	rsp, err := s.Exchange(ctx, scpi.NewQuery("CONF:CWL?", scpi.ShapeFloat))
	require.NoError(err)
	wl, err := rsp.Float()
	require.NoError(err)
	require.InDelta(1550.0, wl, 0)

	require.Equal(uint64(1), s.Metrics().StaleDrainCount.Load())
	require.Equal(uint64(len("1.5\n")), s.Metrics().DiscardedBytes.Load())
}

func TestSession_ReplyAfterDrainWindowAnswersNextQuery(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srv := newSimulator(t)
	s := newTestSession(t, srv, WithTimeout(200*time.Millisecond), WithPollInterval(10*time.Millisecond))
	_, err := s.Open(ctx)
	require.NoError(err)

	srv.DelayReply("CONF:DUTL?", 300*time.Millisecond)
	_, err = s.Exchange(ctx, scpi.NewQuery("CONF:DUTL?", scpi.ShapeFloat))
	require.ErrorIs(err, scpi.ErrTimeout)

	// the drain ends after one quiet poll interval, before the late reply is sent
	text, err := s.Query(ctx, "CONF:CWL?")
	require.NoError(err)
	require.Equal("1.5", text)
	require.Equal(uint64(1), s.Metrics().StaleDrainCount.Load())
	require.Zero(s.Metrics().DiscardedBytes.Load())
}

func TestSession_ConcurrentExchange(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srv := newSimulator(t)
	s := newTestSession(t, srv)
	_, err := s.Open(ctx)
	require.NoError(err)

	srv.DelayReply("FETC:FSIZ?", 200*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := s.Exchange(ctx, scpi.NewQuery("FETC:FSIZ?", scpi.ShapeInt))
		done <- err
	}()

	require.Eventually(func() bool { return s.Metrics().InflightGauge.Load() == 1 }, time.Second, time.Millisecond)

	_, err = s.Exchange(ctx, scpi.NewQuery("CONF:CWL?", scpi.ShapeFloat))
	require.ErrorIs(err, scpi.ErrProtocol)

	require.NoError(<-done)
}

func TestRegisterMetrics(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	srv := newSimulator(t)
	s := newTestSession(t, srv)
	_, err := s.Open(ctx)
	require.NoError(err)
	_, err = s.Query(ctx, "CONF:CWL?")
	require.NoError(err)

	reg := prometheus.NewRegistry()
	require.NoError(RegisterMetrics(reg, s.Metrics(), prometheus.Labels{"instrument": "sim"}))

	families, err := reg.Gather()
	require.NoError(err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			require.Equal("sim", metric.GetLabel()[0].GetValue())
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}

	// handshake plus one query
	require.InDelta(2.0, values["ova_session_exchanges_total"], 0)
	require.InDelta(1.0, values["ova_session_connects_total"], 0)
	require.InDelta(0.0, values["ova_session_inflight"], 0)
	require.Positive(values["ova_session_received_bytes_total"])

	// registering the same collectors twice fails
	require.Error(RegisterMetrics(reg, s.Metrics(), prometheus.Labels{"instrument": "sim"}))
}
