// Package backend provides the HTTP adapters for the study platform API.
//
// A single Client implements three driven ports:
//
//   - driven.ContentFetcher: GET /api/paths/{id}/content and
//     GET /api/chapters/{id}/content, streamed with progress
//   - driven.MutationReplayer: POST of queued writes with an
//     Idempotency-Key header, retried on transport and 5xx failures
//   - driven.ConnectivityProbe: GET /api/health
//
// Status codes map onto domain errors: transport failures wrap
// domain.ErrNetwork, 404 wraps domain.ErrNotFound, 5xx wraps
// domain.ErrServer and any other non-2xx wraps domain.ErrRejected.
package backend
