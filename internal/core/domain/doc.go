// Package domain defines the core business entities for offline study.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Scope: A learning path or a single chapter, the unit of offline download
//   - DownloadRecord: Content persisted for offline use
//   - PendingMutation: A write queued while the backend was unreachable
//   - NetworkState: Online or Offline
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
