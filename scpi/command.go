package scpi

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTerminator terminates every command and response line.
const DefaultTerminator byte = '\n'

// Command is an outbound protocol unit.
//
// A Command is immutable once constructed; the With* methods return modified copies.
// Its declared Shape decides how the response is parsed and whether one is read at all.
type Command struct {
	header   string
	arg      string
	hasArg   bool
	shape    Shape
	expected int
	err      error
}

// NewQuery creates a command that expects a response of the given shape.
//
// The optional argument is appended after a single space, e.g.
// NewQuery("FETC:MEAS?", ShapeNumericSequence, "0") encodes as "FETC:MEAS? 0".
// shape must not be ShapeNone.
func NewQuery(header string, shape Shape, arg ...string) Command {
	cmd := newCommand(header, shape, arg)
	if cmd.err == nil && shape == ShapeNone {
		cmd.err = fmt.Errorf("%w: query %q declares no response shape", ErrProtocol, header)
	}

	return cmd
}

// NewCommand creates a command that does not produce a response, e.g. "CONF:CWL 1550" or "SCAN".
func NewCommand(header string, arg ...string) Command {
	return newCommand(header, ShapeNone, arg)
}

// NewFloatCommand creates a response-less command whose argument is a float, formatted
// with the shortest representation that round-trips.
func NewFloatCommand(header string, val float64) Command {
	return NewCommand(header, strconv.FormatFloat(val, 'g', -1, 64))
}

// NewIntCommand creates a response-less command whose argument is an integer.
func NewIntCommand(header string, val int) Command {
	return NewCommand(header, strconv.Itoa(val))
}

func newCommand(header string, shape Shape, arg []string) Command {
	cmd := Command{header: header, shape: shape, expected: -1}

	if len(arg) > 1 {
		cmd.err = fmt.Errorf("%w: command %q takes at most one argument, got %d", ErrProtocol, header, len(arg))
		return cmd
	}

	if len(arg) == 1 {
		cmd.arg = strings.TrimSpace(arg[0])
		cmd.hasArg = cmd.arg != ""
	}

	cmd.err = cmd.validate()

	return cmd
}

func (c Command) validate() error {
	if c.header == "" {
		return fmt.Errorf("%w: empty command header", ErrProtocol)
	}

	for i := 0; i < len(c.header); i++ {
		if b := c.header[i]; b <= ' ' || b > '~' {
			return fmt.Errorf("%w: invalid byte 0x%02x in command header %q", ErrProtocol, b, c.header)
		}
	}

	for i := 0; i < len(c.arg); i++ {
		if b := c.arg[i]; b < ' ' || b > '~' {
			return fmt.Errorf("%w: invalid byte 0x%02x in argument of %q", ErrProtocol, b, c.header)
		}
	}

	return nil
}

// WithExpectedCount returns a copy of the command that expects a numeric payload of
// exactly n elements. A negative n clears the expectation.
//
// It only applies to ShapeNumericSequence queries; on other shapes the returned
// command reports an error from Err.
func (c Command) WithExpectedCount(n int) Command {
	if c.err != nil {
		return c
	}

	if c.shape != ShapeNumericSequence {
		c.err = fmt.Errorf("%w: expected count on %s command %q", ErrProtocol, c.shape, c.header)
		return c
	}

	if n < 0 {
		n = -1
	}
	c.expected = n

	return c
}

// Header returns the command header, e.g. "CONF:CWL?".
func (c Command) Header() string { return c.header }

// Arg returns the argument and whether one is present.
func (c Command) Arg() (string, bool) { return c.arg, c.hasArg }

// Shape returns the declared response shape.
func (c Command) Shape() Shape { return c.shape }

// IsQuery returns true if a response is expected.
func (c Command) IsQuery() bool { return c.shape != ShapeNone }

// ExpectedCount returns the declared numeric element count, or -1 if unknown.
func (c Command) ExpectedCount() int { return c.expected }

// Err returns the framing error of an invalid command, or nil.
func (c Command) Err() error { return c.err }

// String returns the command as it appears on the wire, without the terminator.
func (c Command) String() string {
	if !c.hasArg {
		return c.header
	}

	return c.header + " " + c.arg
}
