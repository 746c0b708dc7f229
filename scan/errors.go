package scan

import (
	"fmt"

	"github.com/arloliu/go-ova/scpi"
)

// ScanError reports a scan that ended in the failed state.
//
// Code and Description carry the instrument error when the instrument reported one;
// otherwise Cause holds the failure that prevented confirming the scan. A ScanError
// matches scpi.ErrScan with errors.Is and unwraps to Cause.
type ScanError struct { //nolint:revive
	Averages    int
	Code        int
	Description string
	Cause       error
}

func (e *ScanError) Error() string {
	switch {
	case e.Code != 0 && e.Description != "":
		return fmt.Sprintf("%s: instrument error %d after %d average(s): %s", scpi.ErrScan, e.Code, e.Averages, e.Description)
	case e.Code != 0:
		return fmt.Sprintf("%s: instrument error %d after %d average(s)", scpi.ErrScan, e.Code, e.Averages)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", scpi.ErrScan, e.Cause)
	default:
		return scpi.ErrScan.Error()
	}
}

// Is reports whether target is scpi.ErrScan.
func (e *ScanError) Is(target error) bool {
	return target == scpi.ErrScan //nolint:errorlint
}

// Unwrap returns the cause of the failure, if any.
func (e *ScanError) Unwrap() error {
	return e.Cause
}
