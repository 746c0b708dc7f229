package scpi

import (
	"fmt"
	"strings"
)

// Shape declares the expected variant of a command's response.
type Shape uint8

const (
	// ShapeNone marks a command that produces no response.
	ShapeNone Shape = iota
	// ShapeText is a single line of text, e.g. the identification string.
	ShapeText
	// ShapeFloat is a floating point scalar.
	ShapeFloat
	// ShapeInt is an integer scalar.
	ShapeInt
	// ShapeBool is a boolean scalar from a fixed vocabulary (see ParseBool).
	ShapeBool
	// ShapeTuple is an ordered list of comma separated text fields.
	ShapeTuple
	// ShapeNumericSequence is an ordered list of floats.
	ShapeNumericSequence
)

// String returns string representation of the shape.
func (s Shape) String() string {
	switch s {
	case ShapeNone:
		return "none"
	case ShapeText:
		return "text"
	case ShapeFloat:
		return "float"
	case ShapeInt:
		return "int"
	case ShapeBool:
		return "bool"
	case ShapeTuple:
		return "tuple"
	case ShapeNumericSequence:
		return "numeric-sequence"
	default:
		return "unknown"
	}
}

// Response is the decoded result of a query. Exactly one variant is populated,
// selected by Shape; the typed accessors fail with ErrParse on any other variant.
type Response struct {
	shape  Shape
	raw    string
	text   string
	f      float64
	i      int64
	b      bool
	tuple  []string
	values []float64
}

// TextResponse creates a ShapeText response.
func TextResponse(s string) Response {
	return Response{shape: ShapeText, raw: s, text: s}
}

// FloatResponse creates a ShapeFloat response.
func FloatResponse(f float64) Response {
	return Response{shape: ShapeFloat, f: f}
}

// IntResponse creates a ShapeInt response.
func IntResponse(i int64) Response {
	return Response{shape: ShapeInt, i: i}
}

// BoolResponse creates a ShapeBool response.
func BoolResponse(b bool) Response {
	return Response{shape: ShapeBool, b: b}
}

// TupleResponse creates a ShapeTuple response.
func TupleResponse(fields ...string) Response {
	return Response{shape: ShapeTuple, tuple: fields}
}

// SequenceResponse creates a ShapeNumericSequence response.
func SequenceResponse(values []float64) Response {
	return Response{shape: ShapeNumericSequence, values: values}
}

// ParseResponse converts a complete response unit into the variant declared by cmd.
func ParseResponse(unit []byte, cmd Command) (Response, error) {
	text := string(unit)
	rsp := Response{shape: cmd.Shape(), raw: strings.Trim(text, cutset)}

	var err error
	switch cmd.Shape() {
	case ShapeText:
		rsp.text = rsp.raw
	case ShapeFloat:
		rsp.f, err = ParseFloat(text)
	case ShapeInt:
		rsp.i, err = ParseInt(text)
	case ShapeBool:
		rsp.b, err = ParseBool(text)
	case ShapeTuple:
		rsp.tuple = ParseTuple(text)
	case ShapeNumericSequence:
		rsp.values, err = ParseNumericSequence(text, cmd.ExpectedCount())
	default:
		return Response{}, fmt.Errorf("%w: command %q does not expect a response", ErrProtocol, cmd.Header())
	}

	if err != nil {
		return Response{}, fmt.Errorf("response to %q: %w", cmd.Header(), err)
	}

	return rsp, nil
}

// Shape returns the response variant.
func (r Response) Shape() Shape { return r.shape }

// Raw returns the response text as received, trimmed of whitespace and NUL padding.
// It is empty for responses built with the typed constructors.
func (r Response) Raw() string { return r.raw }

func (r Response) mismatch(want Shape) error {
	return fmt.Errorf("%w: response is %s, not %s", ErrParse, r.shape, want)
}

// Text returns the ShapeText content.
func (r Response) Text() (string, error) {
	if r.shape != ShapeText {
		return "", r.mismatch(ShapeText)
	}

	return r.text, nil
}

// Float returns the ShapeFloat content.
func (r Response) Float() (float64, error) {
	if r.shape != ShapeFloat {
		return 0, r.mismatch(ShapeFloat)
	}

	return r.f, nil
}

// Int returns the ShapeInt content.
func (r Response) Int() (int64, error) {
	if r.shape != ShapeInt {
		return 0, r.mismatch(ShapeInt)
	}

	return r.i, nil
}

// Bool returns the ShapeBool content.
func (r Response) Bool() (bool, error) {
	if r.shape != ShapeBool {
		return false, r.mismatch(ShapeBool)
	}

	return r.b, nil
}

// Tuple returns the ShapeTuple fields.
func (r Response) Tuple() ([]string, error) {
	if r.shape != ShapeTuple {
		return nil, r.mismatch(ShapeTuple)
	}

	return r.tuple, nil
}

// Values returns the ShapeNumericSequence elements.
func (r Response) Values() ([]float64, error) {
	if r.shape != ShapeNumericSequence {
		return nil, r.mismatch(ShapeNumericSequence)
	}

	return r.values, nil
}
