// Package session implements the connection to a SCPI instrument over TCP and the
// command channel that runs request/response exchanges on it.
//
// A Session owns one TCP connection. Open dials the instrument and runs the
// identification handshake; Close tears the connection down. All commands go through
// the session's Channel, which enforces that at most one exchange is in flight:
//
//	cfg, _ := session.NewConnectionConfig("192.168.1.10", 1, session.WithTimeout(2*time.Second))
//	s := session.NewSession(cfg)
//	idn, err := s.Open(ctx)
//	...
//	rsp, err := s.Exchange(ctx, scpi.NewQuery("CONF:CWL?", scpi.ShapeFloat))
//	wl, err := rsp.Float()
//
// # Exchange budget
//
// Each exchange has a single budget, the session timeout, covering the send and every
// read until the response is complete. Reads wait at most one poll interval at a time,
// so a caller's context is honoured promptly. A response that does not complete in
// time fails with scpi.ErrTimeout; a broken connection fails with scpi.ErrConnection
// and closes the session.
//
// # Stale responses
//
// An exchange that was abandoned may still receive its response later. The channel
// remembers this and drains the socket before its next command, until the line has
// been silent for one poll interval. The drain cannot tell a late response from one
// that is merely slow: a response that arrives after the drain ended is taken as the
// answer to the next command. For instruments that may pause longer than the default
// poll interval mid-response, raise it with WithPollInterval.
package session
