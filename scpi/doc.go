// Package scpi implements the protocol layer shared by go-ova sessions: the error
// taxonomy, immutable command values, the line oriented wire codec and the typed
// response parser.
//
// The package performs no I/O. Bytes received from an instrument are fed into a
// Decoder, which yields complete response units; ParseResponse then converts a unit
// into a Response according to the shape declared by the issuing Command. The
// response shape is never guessed from the content.
//
// Wire Format:
//
// Commands are ASCII lines: a header (e.g. "CONF:CWL?"), an optional argument
// separated by a single space, and the terminator (DefaultTerminator, '\n').
// Responses are terminator delimited lines. Numeric bulk payloads carry their
// elements separated by commas, semicolons, carriage returns or blanks.
//
// Errors:
//
// All failures are reported by wrapping one of the sentinels ErrConnection,
// ErrTimeout, ErrParse, ErrProtocol or ErrScan, so callers classify them with
// errors.Is.
package scpi
