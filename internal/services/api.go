// HTTP client for the nsync playlist server
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/nsync/internal/metrics"
	"github.com/desertthunder/nsync/internal/shared"
)

// Client implements [Service] over HTTP.
//
// Each call gets its own deadline: Timeout for GETs, TriggerTimeout for the
// refresh POST and ArtworkTimeout for image downloads.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	timeout        time.Duration
	triggerTimeout time.Duration
	artworkTimeout time.Duration
	logger         *log.Logger
}

// ClientOpts configures a [Client]. Zero values fall back to the defaults in the example config.
type ClientOpts struct {
	HTTPClient     *http.Client
	UserAgent      string
	Timeout        time.Duration
	TriggerTimeout time.Duration
	ArtworkTimeout time.Duration
	Logger         *log.Logger
}

// NewClient creates a new [Client]. When opts.HTTPClient is nil a client whose transport
// records request durations in [metrics.HTTPRequestDuration] is used.
func NewClient(opts ClientOpts) *Client {
	c := &Client{
		httpClient:     opts.HTTPClient,
		userAgent:      opts.UserAgent,
		timeout:        opts.Timeout,
		triggerTimeout: opts.TriggerTimeout,
		artworkTimeout: opts.ArtworkTimeout,
		logger:         opts.Logger,
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: promhttp.InstrumentRoundTripperDuration(metrics.HTTPRequestDuration, http.DefaultTransport),
		}
	}
	if c.userAgent == "" {
		c.userAgent = "nsync/1.0"
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.triggerTimeout <= 0 {
		c.triggerTimeout = 10 * time.Second
	}
	if c.artworkTimeout <= 0 {
		c.artworkTimeout = 2 * time.Second
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}

	return c
}

// NewClientFromConfig builds a [Client] from the [http] section of the config file.
func NewClientFromConfig(cfg shared.HTTPConfig, logger *log.Logger) *Client {
	return NewClient(ClientOpts{
		UserAgent:      cfg.UserAgent,
		Timeout:        shared.Seconds(cfg.Timeout),
		TriggerTimeout: shared.Seconds(cfg.TriggerTimeout),
		ArtworkTimeout: shared.Seconds(cfg.ArtworkTimeout),
		Logger:         logger,
	})
}

func (c *Client) Status(ctx context.Context, serverURL string) error {
	_, err := c.do(ctx, http.MethodGet, serverURL+"/status", c.timeout)
	return err
}

func (c *Client) List(ctx context.Context, serverURL string) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, serverURL+"/list", c.timeout)
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		return nil, fmt.Errorf("failed to decode playlist list: %w", err)
	}
	return names, nil
}

func (c *Client) Hash(ctx context.Context, serverURL, name string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, serverURL+"/hash/"+name, c.timeout)
	return string(body), err
}

func (c *Client) Playlist(ctx context.Context, serverURL, name string) (string, error) {
	body, err := c.do(ctx, http.MethodGet, serverURL+"/playlist/"+name, c.timeout)
	return string(body), err
}

func (c *Client) Trigger(ctx context.Context, serverURL, name string) error {
	_, err := c.do(ctx, http.MethodPost, serverURL+"/sync/"+name, c.triggerTimeout)
	return err
}

// Artwork fetches image bytes. An empty body is reported as [shared.ErrEmptyBody].
func (c *Client) Artwork(ctx context.Context, artworkURL string) ([]byte, error) {
	body, err := c.do(ctx, http.MethodGet, artworkURL, c.artworkTimeout)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrEmptyBody, artworkURL)
	}
	return body, nil
}

// do performs a request and returns the body of a 200 response.
// Any other status yields a [StatusError] and the body is discarded.
func (c *Client) do(ctx context.Context, method, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrTransport, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s after %s", shared.ErrTimeout, method, url, timeout)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		c.logger.Debug("request rejected", "method", method, "url", url, "status", resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrTransport, err)
	}

	c.logger.Debug("request complete", "method", method, "url", url, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}
