// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
)

// FakeServer is an in-process nsync playlist server.
//
// Every request is counted by path so tests can assert which endpoints were hit.
type FakeServer struct {
	*httptest.Server

	mu        sync.Mutex
	hashes    map[string]string
	manifests map[string]string
	artwork   map[string][]byte
	failures  map[string]int
	requests  map[string]int
	gate      chan struct{}
}

// NewFakeServer starts a [FakeServer] that is closed when the test finishes.
func NewFakeServer(t *testing.T) *FakeServer {
	t.Helper()

	f := &FakeServer{
		hashes:    map[string]string{},
		manifests: map[string]string{},
		artwork:   map[string][]byte{},
		failures:  map[string]int{},
		requests:  map[string]int{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// SetPlaylist publishes a playlist with the given hash and manifest body.
func (f *FakeServer) SetPlaylist(name, hash, manifest string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[name] = hash
	f.manifests[name] = manifest
}

// SetArtwork serves data at /artwork/<path>.
func (f *FakeServer) SetArtwork(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artwork[path] = data
}

// Fail makes requests to path answer with code. A zero code clears the failure.
func (f *FakeServer) Fail(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if code == 0 {
		delete(f.failures, path)
		return
	}
	f.failures[path] = code
}

// Hold blocks every request until the returned release function is called.
func (f *FakeServer) Hold() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.gate = nil
			f.mu.Unlock()
			close(gate)
		})
	}
}

// Requests returns the number of requests received for path.
func (f *FakeServer) Requests(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

// TotalRequests returns the number of requests received for any path.
func (f *FakeServer) TotalRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.requests {
		total += n
	}
	return total
}

func (f *FakeServer) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	f.mu.Lock()
	f.requests[path]++
	gate := f.gate
	code, failing := f.failures[path]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if failing {
		http.Error(w, http.StatusText(code), code)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case path == "/status":
		io.WriteString(w, "OK")
	case path == "/list":
		names := make([]string, 0, len(f.manifests))
		for name := range f.manifests {
			names = append(names, name)
		}
		json.NewEncoder(w).Encode(names)
	case strings.HasPrefix(path, "/hash/"):
		hash, ok := f.hashes[strings.TrimPrefix(path, "/hash/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, hash)
	case strings.HasPrefix(path, "/playlist/"):
		manifest, ok := f.manifests[strings.TrimPrefix(path, "/playlist/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, manifest)
	case strings.HasPrefix(path, "/sync/") && r.Method == http.MethodPost:
		io.WriteString(w, "OK")
	case strings.Contains(path, "/artwork/"):
		data, ok := f.artwork[path[strings.Index(path, "/artwork/")+len("/artwork/"):]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
