package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig   = fmt.Errorf("configuration not found")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
	ErrInvalidInterval = fmt.Errorf("invalid poll interval")

	// Transport and protocol errors
	ErrTransport  = fmt.Errorf("request failed")
	ErrHTTPStatus = fmt.Errorf("unexpected HTTP status")
	ErrEmptyBody  = fmt.Errorf("empty response body")
	ErrTimeout    = fmt.Errorf("operation timed out")

	// Registry and playlist errors
	ErrJobNotFound      = fmt.Errorf("sync job not found")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrArtworkNotFound  = fmt.Errorf("artwork not found")

	ErrSyncFailed = fmt.Errorf("sync failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
