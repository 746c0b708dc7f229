// Package ova provides a client for optical vector analyzers controlled over TCP with
// SCPI commands.
//
// An Instrument combines a session.Session, which owns the connection and enforces a
// single command in flight, with a scan.Coordinator, which keeps data fetches from
// racing an outstanding scan.
//
// Usage:
//
//	cfg, err := session.NewConnectionConfig("192.168.1.20", 1, session.WithTimeout(10*time.Second))
//	if err != nil {
//		return err
//	}
//
//	inst, err := ova.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer inst.Close()
//
//	if _, err := inst.Connect(ctx); err != nil {
//		return err
//	}
//
//	data, err := inst.MeasureFull(ctx, ova.MeasureConfig{
//		CenterWavelength: 1550,
//		WavelengthRange:  4,
//		Averages:         5,
//	})
//
// # Array fetches
//
// Every array fetch queries the point count first and requires the array to have
// exactly that many elements, so that a truncated response fails with scpi.ErrParse
// instead of returning short data. WithPointCountCheck(false) skips the extra query.
//
// # Errors
//
// Methods fail with errors wrapping the scpi sentinels: scpi.ErrConnection,
// scpi.ErrTimeout, scpi.ErrParse, scpi.ErrProtocol and, for scans, scpi.ErrScan.
package ova
