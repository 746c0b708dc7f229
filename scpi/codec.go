package scpi

import (
	"fmt"
)

// Encode returns the wire form of cmd: header, optional space separated argument and
// the terminator.
func Encode(cmd Command, term byte) ([]byte, error) {
	if err := cmd.Err(); err != nil {
		return nil, err
	}

	wire := cmd.String()
	for i := 0; i < len(wire); i++ {
		if wire[i] == term {
			return nil, fmt.Errorf("%w: command %q contains the terminator 0x%02x", ErrProtocol, wire, term)
		}
	}

	buf := make([]byte, 0, len(wire)+1)
	buf = append(buf, wire...)
	buf = append(buf, term)

	return buf, nil
}

// Decoder reassembles response units from a byte stream that may arrive fragmented
// or concatenated.
//
// Bytes are appended with Write and complete units are taken with Decode. A unit ends
// at the terminator and never earlier, whatever the declared element count of the
// command, so a unit is the same however the stream was split. Bytes following a
// returned unit stay buffered for the next Decode, so nothing is lost or duplicated
// across reads. Scanning resumes where the previous Decode stopped, so a large payload
// delivered in many chunks is scanned once.
//
// Decoder is NOT goroutine-safe; a session's channel owns exactly one.
type Decoder struct {
	term    byte
	maxSize int
	buf     []byte
	scanPos int
}

// NewDecoder creates a decoder for the given terminator. maxSize bounds the number of
// buffered bytes without a complete unit; zero or negative means unbounded.
func NewDecoder(term byte, maxSize int) *Decoder {
	return &Decoder{term: term, maxSize: maxSize}
}

// Write appends received bytes. It implements io.Writer.
//
// An error wrapping ErrParse is returned if the buffered data would exceed the
// decoder's size limit; the data is not appended in that case.
func (d *Decoder) Write(p []byte) (int, error) {
	if d.maxSize > 0 && len(d.buf)+len(p) > d.maxSize {
		return 0, fmt.Errorf("%w: response exceeds %d bytes without terminator", ErrParse, d.maxSize)
	}
	d.buf = append(d.buf, p...)

	return len(p), nil
}

// Decode returns the next complete unit, excluding its terminator, and true. It
// returns nil and false when more bytes are required.
func (d *Decoder) Decode() ([]byte, bool) {
	for i := d.scanPos; i < len(d.buf); i++ {
		if d.buf[i] == d.term {
			return d.take(i), true
		}
	}
	d.scanPos = len(d.buf)

	return nil, false
}

// take copies buf[:end] out as a unit and consumes it with its terminator.
func (d *Decoder) take(end int) []byte {
	unit := make([]byte, end)
	copy(unit, d.buf[:end])

	n := copy(d.buf, d.buf[end+1:])
	d.buf = d.buf[:n]
	d.scanPos = 0

	return unit
}

// Buffered returns the number of carried-over bytes.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
	d.scanPos = 0
}

func isFieldSeparator(b byte) bool {
	switch b {
	case ',', ';', '\r', '\n', ' ', '\t', 0:
		return true
	default:
		return false
	}
}
