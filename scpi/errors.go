package scpi

import "errors"

var (
	// ErrConnection indicates a socket level failure: the connection was refused,
	// reset or closed unexpectedly, or the identification handshake failed.
	ErrConnection = errors.New("scpi: connection error")

	// ErrTimeout indicates that no complete response arrived within the exchange budget.
	// It is never reported together with ErrConnection.
	ErrTimeout = errors.New("scpi: timeout")

	// ErrParse indicates a malformed response body, a miscounted numeric payload, or a
	// response read as a shape other than the one it was decoded with.
	ErrParse = errors.New("scpi: parse error")

	// ErrProtocol indicates misuse by the caller, e.g. a second exchange while one is
	// still in flight, or a command that cannot be framed.
	ErrProtocol = errors.New("scpi: protocol error")

	// ErrScan indicates that the instrument reported an error status after a scan.
	ErrScan = errors.New("scpi: scan error")
)
