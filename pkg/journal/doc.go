// Package journal persists admission decisions for later inspection.
//
// # Overview
//
// The journal captures one record per admission decision: which client
// asked, which policy applied, and whether the request was admitted.
// Records are written asynchronously so the admission path never waits
// on the database. The embedded SQLite store keeps deployments
// single-binary, and a cron-driven pruner bounds growth by age and by
// record count.
//
// # Write Path
//
// The Recorder buffers records in a channel drained by a background
// worker. When the buffer is full the record is dropped and counted
// rather than blocking the request. Close drains the buffer before
// returning, so records accepted before shutdown are not lost.
//
// # Modes
//
// ModeRejected (the default) persists only rejected and failed-open
// decisions, which keeps the journal small under normal traffic.
// ModeAll persists every decision and is intended for debugging.
package journal
