package backend

import (
	"context"
	"fmt"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
)

// HeaderIdempotencyKey lets the backend de-duplicate replays of one mutation.
const HeaderIdempotencyKey = "Idempotency-Key"

var mutationEndpoints = map[domain.MutationKind]string{
	domain.MutationProgressUpdate:  "/api/progress",
	domain.MutationLearningTime:    "/api/learning-time",
	domain.MutationChapterComplete: "/api/chapters/complete",
}

// Replay posts a queued mutation. The mutation ID is sent as the
// idempotency key so retries and repeated flushes are applied once.
func (c *Client) Replay(ctx context.Context, m domain.PendingMutation) error {
	endpoint, ok := mutationEndpoints[m.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown mutation kind %q", domain.ErrInvalidInput, m.Kind)
	}
	op := fmt.Sprintf("replay %s %s", m.Kind, m.ID)

	resp, err := c.writes.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderIdempotencyKey, m.ID).
		SetBody([]byte(m.Payload)).
		Post(endpoint)
	if err != nil {
		return transportError(ctx, op, err)
	}
	return statusError(op, resp)
}
