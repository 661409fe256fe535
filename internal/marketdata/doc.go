// Package marketdata fetches order books for a set of symbols.
//
// The Fetcher:
//   - Issues one authenticated request per symbol, all concurrently
//   - Isolates failures: a failed symbol never affects its siblings
//   - Returns only after every request has completed
//
// The Poller drives a Fetcher on a fixed interval and hands each batch to a
// BatchHandler.
package marketdata
