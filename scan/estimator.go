package scan

import "time"

// Default scan time coefficients.
const (
	DefaultPerAverage   = 200 * time.Millisecond
	DefaultSettleMargin = 500 * time.Millisecond
)

// Estimator predicts how long the instrument needs for a scan.
//
// The estimate is PerAverage for each requested average plus a fixed Settle margin,
// so it never decreases as the number of averages grows.
type Estimator struct {
	PerAverage time.Duration
	Settle     time.Duration
}

// DefaultEstimator returns an estimator with the default coefficients.
func DefaultEstimator() Estimator {
	return Estimator{PerAverage: DefaultPerAverage, Settle: DefaultSettleMargin}
}

// Estimate returns the expected duration of a scan with the given number of averages.
// Values below one count as one average.
func (e Estimator) Estimate(averages int) time.Duration {
	if averages < 1 {
		averages = 1
	}

	return e.PerAverage*time.Duration(averages) + e.Settle
}
