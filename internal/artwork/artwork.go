// Package artwork resolves cover images for tracks streamed from an nsync server.
//
// Lookups go through a per-extractor cache, then a process-wide [LRU] of image bytes,
// then a [NegativeCache] of URLs known to fail, and only then the network.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/nsync/internal/metrics"
	"github.com/desertthunder/nsync/internal/shared"
)

const (
	DefaultCacheSize         = 100
	DefaultNegativeCacheSize = 1000
	DefaultRateLimit         = 20
	DefaultBurst             = 20
	DefaultTimeout           = 2 * time.Second

	streamMarker  = "/stream/"
	artworkMarker = "/artwork/"
)

// ErrNotFound is returned for any lookup that yields no image.
var ErrNotFound = shared.ErrArtworkNotFound

// Kind identifies which image of a track is requested.
type Kind int

const (
	FrontCover Kind = iota
	BackCover
	Disc
	ArtistImage
)

func (k Kind) String() string {
	switch k {
	case FrontCover:
		return "front"
	case BackCover:
		return "back"
	case Disc:
		return "disc"
	case ArtistImage:
		return "artist"
	default:
		return "unknown"
	}
}

// ParseKind maps the names returned by [Kind.String] back to a Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{FrontCover, BackCover, Disc, ArtistImage} {
		if strings.EqualFold(name, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown artwork kind %q", shared.ErrInvalidArgument, name)
}

// IsStreamURL reports whether location is an http(s) URL served from a /stream/ path.
func IsStreamURL(location string) bool {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return false
	}
	return strings.Contains(location, streamMarker)
}

// ArtworkURL rewrites the first /stream/ segment of a stream URL to /artwork/.
// Strings without the marker are returned unchanged.
func ArtworkURL(streamURL string) string {
	prefix, rest, ok := strings.Cut(streamURL, streamMarker)
	if !ok {
		return streamURL
	}
	return prefix + artworkMarker + rest
}

// Fetcher downloads artwork bytes. [services.Client] satisfies it.
type Fetcher interface {
	Artwork(ctx context.Context, artworkURL string) ([]byte, error)
}

// Resolver owns the process-wide artwork caches and hands out [Extractor] values.
type Resolver struct {
	fetcher  Fetcher
	cache    *LRU
	negative *NegativeCache
	limiter  *rate.Limiter
	group    singleflight.Group
	timeout  time.Duration
	logger   *log.Logger
}

// ResolverOpts configures a [Resolver]. Zero values use the package defaults.
type ResolverOpts struct {
	Fetcher           Fetcher
	CacheSize         int
	NegativeCacheSize int
	RateLimit         float64
	Burst             int
	Timeout           time.Duration
	Logger            *log.Logger
}

func NewResolver(opts ResolverOpts) *Resolver {
	limit := rate.Limit(opts.RateLimit)
	if opts.RateLimit <= 0 {
		limit = DefaultRateLimit
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Resolver{
		fetcher:  opts.Fetcher,
		cache:    NewLRU(opts.CacheSize),
		negative: NewNegativeCache(opts.NegativeCacheSize),
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		logger:   logger,
	}
}

// NewResolverFromConfig builds a [Resolver] from the [artwork] and [http] config sections.
func NewResolverFromConfig(cfg *shared.Config, fetcher Fetcher, logger *log.Logger) *Resolver {
	return NewResolver(ResolverOpts{
		Fetcher:           fetcher,
		CacheSize:         cfg.Artwork.CacheSize,
		NegativeCacheSize: cfg.Artwork.NegativeCacheSize,
		RateLimit:         cfg.Artwork.RateLimit,
		Burst:             cfg.Artwork.Burst,
		Timeout:           shared.Seconds(cfg.HTTP.ArtworkTimeout),
		Logger:            logger,
	})
}

// Open returns an extractor for a known stream URL.
func (r *Resolver) Open(location string) (*Extractor, error) {
	if !IsStreamURL(location) {
		return nil, fmt.Errorf("%w: not a stream URL: %q", shared.ErrInvalidInput, location)
	}
	return &Extractor{resolver: r, streamURL: location, artworkURL: ArtworkURL(location)}, nil
}

// Fallback returns an extractor for the first location that is a stream URL.
func (r *Resolver) Fallback(ctx context.Context, locations []string) (*Extractor, error) {
	for _, location := range locations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsStreamURL(location) {
			return r.Open(location)
		}
	}
	return nil, ErrNotFound
}

// Shutdown empties both caches.
func (r *Resolver) Shutdown() {
	r.cache.Clear()
	r.negative.Clear()
	r.updateGauges()
	r.logger.Debug("artwork caches cleared")
}

// CacheLen returns the number of entries held by the positive and negative caches.
func (r *Resolver) CacheLen() (positive, negative int) {
	return r.cache.Len(), r.negative.Len()
}

func (r *Resolver) lookup(ctx context.Context, artworkURL string) ([]byte, error) {
	if data, ok := r.cache.Get(artworkURL); ok {
		metrics.ArtworkLookupsTotal.WithLabelValues("cache").Inc()
		return data, nil
	}

	if r.negative.Contains(artworkURL) {
		metrics.ArtworkLookupsTotal.WithLabelValues("negative").Inc()
		return nil, ErrNotFound
	}

	// The shared fetch outlives any one caller; each caller only stops waiting.
	detached := context.WithoutCancel(ctx)
	results := r.group.DoChan(artworkURL, func() (any, error) {
		return r.fetch(detached, artworkURL)
	})

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		metrics.ArtworkLookupsTotal.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	}
}

func (r *Resolver) fetch(ctx context.Context, artworkURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Debug("artwork fetch throttled", "url", artworkURL, "err", err)
		return nil, ErrNotFound
	}

	data, err := r.fetcher.Artwork(ctx, artworkURL)
	if err == nil && len(data) == 0 {
		err = shared.ErrEmptyBody
	}
	if errors.Is(err, context.Canceled) {
		r.logger.Debug("artwork fetch cancelled", "url", artworkURL)
		return nil, ErrNotFound
	}
	if err != nil {
		r.negative.Add(artworkURL)
		r.updateGauges()
		metrics.ArtworkLookupsTotal.WithLabelValues("failed").Inc()
		r.logger.Debug("artwork fetch failed", "url", artworkURL, "err", err)
		return nil, ErrNotFound
	}

	r.cache.Put(artworkURL, data)
	r.updateGauges()
	metrics.ArtworkLookupsTotal.WithLabelValues("fetch").Inc()
	r.logger.Debug("artwork fetched", "url", artworkURL, "bytes", len(data))
	return data, nil
}

func (r *Resolver) updateGauges() {
	positive, negative := r.CacheLen()
	metrics.ArtworkCacheEntries.WithLabelValues("positive").Set(float64(positive))
	metrics.ArtworkCacheEntries.WithLabelValues("negative").Set(float64(negative))
}

// Extractor answers artwork queries for a single stream URL.
//
// The first query's outcome is remembered for the extractor's lifetime.
type Extractor struct {
	resolver   *Resolver
	streamURL  string
	artworkURL string

	mu      sync.Mutex
	checked bool
	data    []byte
}

func (e *Extractor) StreamURL() string  { return e.streamURL }
func (e *Extractor) ArtworkURL() string { return e.artworkURL }

// Query returns the image bytes for kind. Only [FrontCover] is ever available;
// other kinds fail without touching the network.
//
// When ctx ends first Query returns ctx.Err() and the outcome is not remembered.
func (e *Extractor) Query(ctx context.Context, kind Kind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind != FrontCover {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.checked {
		if e.data == nil {
			return nil, ErrNotFound
		}
		metrics.ArtworkLookupsTotal.WithLabelValues("instance").Inc()
		return e.data, nil
	}

	data, err := e.resolver.lookup(ctx, e.artworkURL)
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, err
	}
	e.checked = true
	if err != nil {
		return nil, err
	}
	e.data = data
	return data, nil
}

// Paths reports filesystem paths for kind. Server artwork has none, so a front cover
// yields an empty list and every other kind is not found.
func (e *Extractor) Paths(kind Kind) ([]string, error) {
	if kind != FrontCover {
		return nil, ErrNotFound
	}
	return []string{}, nil
}
