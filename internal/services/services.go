// package services defines the remote playlist server API and an HTTP client for it
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/nsync/internal/shared"
)

// Service is the remote playlist server API consumed by the scheduler.
//
// Methods that take a server URL address the server root, e.g. "http://192.168.1.10:8090".
type Service interface {
	// Status returns nil when the server answers its health check.
	Status(ctx context.Context, serverURL string) error

	// List enumerates the playlists the server publishes.
	List(ctx context.Context, serverURL string) ([]string, error)

	// Hash fetches the opaque change-detection token for a playlist.
	Hash(ctx context.Context, serverURL, name string) (string, error)

	// Playlist downloads the manifest body for a playlist.
	Playlist(ctx context.Context, serverURL, name string) (string, error)

	// Trigger asks the server to rebuild a playlist.
	Trigger(ctx context.Context, serverURL, name string) error

	// Artwork downloads cover image bytes from an artwork URL.
	Artwork(ctx context.Context, artworkURL string) ([]byte, error)
}

// StatusError reports a non-200 response. Its message is "HTTP <code>".
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("HTTP %d", e.Code) }

func (e *StatusError) Unwrap() error { return shared.ErrHTTPStatus }
