// Package scan coordinates instrument scans with the data fetches that follow them.
//
// The instrument reports no completion event for a scan. The Coordinator therefore
// clears the instrument error queue, sends the scan command, waits for an estimate of the scan time derived from the
// number of averages, and then asks the instrument for its error status. Only a zero
// status confirms the scan. The command channel stays reserved during the whole
// sequence, so data cannot be fetched before the scan is confirmed.
package scan
