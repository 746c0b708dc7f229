package session

import (
	"sync/atomic"
)

// ChannelMetrics contains atomic metrics for a session and its command channel.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc, see RegisterMetrics.
type ChannelMetrics struct {
	// ExchangeCount indicates the number of command/response exchanges started.
	ExchangeCount atomic.Uint64
	// ExchangeErrCount indicates the number of exchanges that failed for any reason.
	ExchangeErrCount atomic.Uint64
	// TimeoutCount indicates the number of exchanges that ran out of budget.
	TimeoutCount atomic.Uint64
	// WriteCount indicates the number of commands sent without reading a response.
	WriteCount atomic.Uint64

	// BytesSent indicates the number of bytes written to the socket.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes read from the socket.
	BytesRecv atomic.Uint64

	// StaleDrainCount indicates the number of drains performed before a command.
	StaleDrainCount atomic.Uint64
	// DiscardedBytes indicates the number of stale bytes thrown away by drains.
	DiscardedBytes atomic.Uint64

	// InflightGauge is 1 while an exchange or reservation holds the channel.
	InflightGauge atomic.Int32

	// ConnectCount indicates the number of successful session opens.
	ConnectCount atomic.Uint64
	// ConnLostCount indicates the number of sessions closed by an I/O failure.
	ConnLostCount atomic.Uint64
}

func (m *ChannelMetrics) incExchangeCount() {
	m.ExchangeCount.Add(1)
}

func (m *ChannelMetrics) incExchangeErrCount() {
	m.ExchangeErrCount.Add(1)
}

func (m *ChannelMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ChannelMetrics) incWriteCount() {
	m.WriteCount.Add(1)
}

func (m *ChannelMetrics) addBytesSent(n int) {
	m.BytesSent.Add(uint64(n)) //nolint:gosec
}

func (m *ChannelMetrics) addBytesRecv(n int) {
	m.BytesRecv.Add(uint64(n)) //nolint:gosec
}

func (m *ChannelMetrics) incStaleDrain(discarded int) {
	m.StaleDrainCount.Add(1)
	m.DiscardedBytes.Add(uint64(discarded)) //nolint:gosec
}

func (m *ChannelMetrics) setInflight(busy bool) {
	if busy {
		m.InflightGauge.Store(1)
	} else {
		m.InflightGauge.Store(0)
	}
}

func (m *ChannelMetrics) incConnectCount() {
	m.ConnectCount.Add(1)
}

func (m *ChannelMetrics) incConnLostCount() {
	m.ConnLostCount.Add(1)
}
