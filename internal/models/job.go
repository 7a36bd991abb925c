package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/nsync/internal/shared"
)

// SyncJob is one configured (server, remote playlist, local playlist) sync relationship.
//
// Jobs are ordered by sequence; the scheduler identifies a job by its position in that order.
type SyncJob struct {
	record

	ServerURL           string // Base URL, e.g. "http://192.168.1.10:8090"
	PlaylistEndpoint    string // Logical playlist name on the server, e.g. "music"
	TargetPlaylist      string // Local playlist materialized by this job
	Enabled             bool
	PollIntervalSeconds int
	LastHash            string // Last server hash accepted after a successful reconciliation
	LastError           string // Last failure message, empty on success
}

// NewSyncJob creates an enabled [SyncJob] with the given sequence number.
func NewSyncJob(sequence int, serverURL, endpoint, target string, interval int) *SyncJob {
	return &SyncJob{
		record:              newRecord(sequence),
		ServerURL:           strings.TrimRight(strings.TrimSpace(serverURL), "/"),
		PlaylistEndpoint:    strings.TrimSpace(endpoint),
		TargetPlaylist:      strings.TrimSpace(target),
		Enabled:             true,
		PollIntervalSeconds: interval,
	}
}

// Validate checks the fields an editor is allowed to set.
func (j *SyncJob) Validate() error {
	if j.ServerURL == "" {
		return fmt.Errorf("%w: server URL is required", shared.ErrInvalidInput)
	}
	u, err := url.Parse(j.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: server URL must be an absolute http(s) URL: %q", shared.ErrInvalidInput, j.ServerURL)
	}
	if j.PlaylistEndpoint == "" {
		return fmt.Errorf("%w: playlist endpoint is required", shared.ErrInvalidInput)
	}
	if j.TargetPlaylist == "" {
		return fmt.Errorf("%w: target playlist is required", shared.ErrInvalidInput)
	}
	if j.PollIntervalSeconds < shared.MinPollInterval {
		return fmt.Errorf("%w: %d seconds (minimum %d)", shared.ErrInvalidInterval, j.PollIntervalSeconds, shared.MinPollInterval)
	}
	return nil
}

// HashURL returns the change-detection endpoint for this job.
func (j *SyncJob) HashURL() string { return j.endpointURL("hash") }

// PlaylistURL returns the manifest endpoint for this job.
func (j *SyncJob) PlaylistURL() string { return j.endpointURL("playlist") }

// TriggerURL returns the server-side refresh endpoint for this job.
func (j *SyncJob) TriggerURL() string { return j.endpointURL("sync") }

func (j *SyncJob) endpointURL(kind string) string {
	return j.ServerURL + "/" + kind + "/" + j.PlaylistEndpoint
}

// Clone returns a copy that can be handed to another goroutine.
func (j *SyncJob) Clone() *SyncJob {
	c := *j
	return &c
}

// Status summarizes the last outcome for display.
func (j *SyncJob) Status() string {
	switch {
	case j.LastError != "":
		return "Error: " + j.LastError
	case j.LastHash != "":
		return "OK"
	default:
		return "Never synced"
	}
}
