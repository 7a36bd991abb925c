// Package tasks runs the sync pipeline for every configured job and reports progress.
//
// # Scheduling
//
// A base clock ticks once per second. On each tick the [Scheduler] increments a counter
// and, if syncing is globally enabled, starts every enabled, idle job whose poll
// interval divides the counter. [Scheduler.SyncNow] and [Scheduler.SyncAll] start jobs
// on demand under the same busy guard, so a job never has two pipelines in flight.
//
// # Pipeline
//
// Each run moves a job through [Triggering], [CheckingHash], [Downloading] and
// [Reconciling] before returning to [Idle]:
//
//  1. POST /sync/{name} asks the server to rebuild; its outcome is ignored
//  2. GET /hash/{name}; an unchanged hash for an existing playlist ends the run with [StatusNoChange]
//  3. GET /playlist/{name} downloads the manifest
//  4. The manifest is parsed and reconciled into the local playlist, then the hash is saved
//
// Requests run on their own goroutines. Their results come back through a
// [dispatch.Dispatcher], and a single advance function performs every transition on the
// dispatcher goroutine. Failures are recorded as the job's last error; there is no retry
// beyond the job's next due tick.
//
// # Observers
//
// [Observer] implementations receive progress at fixed checkpoints (10, 30, 50 and 80
// percent) and a completion status. [ChannelObserver] forwards both onto a channel using
// non-blocking sends.
//
// # Server Checks
//
// [CheckServers] checks many playlist servers concurrently with a rate-limited worker pool.
package tasks
