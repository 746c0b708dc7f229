package ova

import (
	"errors"
	"time"

	"github.com/arloliu/go-ova/logger"
	"github.com/arloliu/go-ova/scan"
)

// DefaultSettleDelay is the pause between setting a configuration value and reading
// it back.
const DefaultSettleDelay = 500 * time.Millisecond

// Option is a functional option for configuring an Instrument.
type Option interface {
	apply(*options) error
}

type optFunc func(*options) error

func (f optFunc) apply(o *options) error { return f(o) }

type options struct {
	settleDelay time.Duration
	pointCheck  bool
	scanOpts    []scan.Option
	logger      logger.Logger
}

// WithSettleDelay sets the pause between writing a configuration value and reading it
// back. Zero disables the pause.
func WithSettleDelay(d time.Duration) Option {
	return optFunc(func(o *options) error {
		if d < 0 {
			return errors.New("ova: settle delay must not be negative")
		}
		o.settleDelay = d

		return nil
	})
}

// WithPointCountCheck enables or disables the point count check of array fetches.
//
// When enabled, the default, every array fetch first queries the point count and
// fails with scpi.ErrParse unless the array has exactly that many elements.
func WithPointCountCheck(enabled bool) Option {
	return optFunc(func(o *options) error {
		o.pointCheck = enabled
		return nil
	})
}

// WithScanOptions passes options to the scan coordinator, e.g. scan.WithPerAverage.
func WithScanOptions(opts ...scan.Option) Option {
	return optFunc(func(o *options) error {
		o.scanOpts = append(o.scanOpts, opts...)
		return nil
	})
}

// WithLogger sets the logger of the instrument and its scan coordinator. The session
// keeps the logger of its connection config.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(o *options) error {
		if l == nil {
			return errors.New("ova: logger must not be nil")
		}
		o.logger = l

		return nil
	})
}
