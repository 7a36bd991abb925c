// Package models defines domain entities and persistence interfaces for the nsync playlist synchronization engine.
//
// Persistent entities:
//   - [SyncJob] : one configured (server, remote playlist, local playlist) sync relationship
//   - [LocalPlaylist] : a playlist materialized locally by a sync job
//   - [Settings] : the global scheduler switch and default poll interval
//
// All persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
