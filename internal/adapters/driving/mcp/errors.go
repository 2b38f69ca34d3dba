// Package mcp provides an MCP (Model Context Protocol) server adapter for swm.
// It lets AI assistants check, download and remove offline study content and
// trigger replay of queued progress.
package mcp

import "errors"

// ErrMissingDownloadService is returned when the download coordinator is not provided.
var ErrMissingDownloadService = errors.New("mcp: download service is required")

// errSyncUnavailable is returned by sync_now when no sync agent is wired.
var errSyncUnavailable = errors.New("sync is not available")

// errProgressUnavailable is returned by record_progress when no recorder is wired.
var errProgressUnavailable = errors.New("progress recording is not available")

// errTrackerUnavailable is returned by study_session when no tracker is wired.
var errTrackerUnavailable = errors.New("study time tracking is not available")
