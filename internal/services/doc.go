// Package services talks to nsync playlist servers.
//
// # Remote API
//
// A server publishes named playlists under a base URL:
//
//	GET  /status           health check, 200 "OK"
//	GET  /list             JSON array of playlist names
//	GET  /hash/{name}      opaque change-detection token
//	GET  /playlist/{name}  line-oriented manifest
//	POST /sync/{name}      ask the server to rebuild the playlist
//	GET  /artwork/{path}   cover image bytes for a streamed track
//
// [Client] implements [Service] with per-call deadlines. [AsyncClient] runs calls on
// their own goroutines and hands results to a dispatcher, which is how the scheduler
// keeps all job state on one goroutine.
//
// # Error Handling
//
// Errors wrap sentinels from the shared package:
//   - [shared.ErrHTTPStatus] : any non-200 response, reported as a [StatusError] ("HTTP 404")
//   - [shared.ErrTransport] : connection, DNS or read failures
//   - [shared.ErrTimeout] : the per-call deadline expired
//   - [shared.ErrEmptyBody] : an artwork response without bytes
package services
