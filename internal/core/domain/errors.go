package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// Delete and query operations on an absent scope treat it as success.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a mutation replay is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// Offline Errors.

	// ErrNetwork indicates the backend is unreachable (no connectivity).
	ErrNetwork = errors.New("network unavailable")

	// ErrStorage indicates local persistence failed.
	ErrStorage = errors.New("storage failure")

	// ErrQuotaExceeded indicates the offline storage quota would be exceeded.
	// It is always reported together with ErrStorage.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrDownloadAborted indicates every subscriber left before the download finished.
	ErrDownloadAborted = errors.New("download aborted")

	// Backend Errors.

	// ErrServer indicates the backend answered with a server-side failure (5xx).
	ErrServer = errors.New("server error")

	// ErrRejected indicates the backend refused the request (4xx other than 404).
	ErrRejected = errors.New("request rejected")
)

// IsRetryable reports whether err is a transient failure worth replaying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}
