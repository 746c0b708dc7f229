package scan

import (
	"errors"
	"time"

	"github.com/arloliu/go-ova/logger"
)

// Option is a functional option for configuring a Coordinator.
type Option interface {
	apply(*Coordinator) error
}

type optFunc func(*Coordinator) error

func (f optFunc) apply(c *Coordinator) error { return f(c) }

// WithPerAverage sets the expected scan time of a single average.
func WithPerAverage(d time.Duration) Option {
	return optFunc(func(c *Coordinator) error {
		if d <= 0 {
			return errors.New("scan: per-average time must be positive")
		}
		c.estimator.PerAverage = d

		return nil
	})
}

// WithSettleMargin sets the fixed time added to every scan estimate.
func WithSettleMargin(d time.Duration) Option {
	return optFunc(func(c *Coordinator) error {
		if d < 0 {
			return errors.New("scan: settle margin must not be negative")
		}
		c.estimator.Settle = d

		return nil
	})
}

// WithLogger sets the logger of the coordinator.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(c *Coordinator) error {
		if l == nil {
			return errors.New("scan: logger must not be nil")
		}
		c.logger = l

		return nil
	})
}
