// Package repositories implements SQLite persistence for sync jobs, local playlists and global settings.
//
// Key Implementations:
//   - [JobRepository] : ordered sync job registry with last hash/error bookkeeping
//   - [LocalPlaylistRepository] : local playlists and their ordered entries
//   - [SettingsRepository] : the global enabled flag and default poll interval
//
// Sequence numbers give jobs and playlists a stable order independent of UUIDs and creation timestamps.
// The scheduler addresses jobs by their position in that order.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
