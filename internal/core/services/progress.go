package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Ensure ProgressService implements the interface.
var _ driving.ProgressRecorder = (*ProgressService)(nil)

// ProgressService sends learner writes to the backend, queueing them when
// the backend cannot be reached.
//
// A write is queued instead of sent while mutations are already pending, so
// the backend always sees writes in the order they were made.
type ProgressService struct {
	queue    driven.MutationQueue
	replayer driven.MutationReplayer
	network  driving.NetworkMonitor
	metrics  driven.Metrics
	now      func() time.Time
}

// NewProgressService creates a progress recorder. Metrics may be nil.
func NewProgressService(
	queue driven.MutationQueue,
	replayer driven.MutationReplayer,
	network driving.NetworkMonitor,
	metrics driven.Metrics,
) *ProgressService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &ProgressService{
		queue:    queue,
		replayer: replayer,
		network:  network,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Record sends the write now or queues it. A queued write is not an error.
func (s *ProgressService) Record(ctx context.Context, kind domain.MutationKind, payload any) (bool, error) {
	if !kind.IsValid() {
		return false, fmt.Errorf("%w: unknown mutation kind %q", domain.ErrInvalidInput, kind)
	}
	body, err := marshalPayload(payload)
	if err != nil {
		return false, err
	}

	m := domain.PendingMutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   body,
		CreatedAt: s.now().UTC(),
	}

	pending, err := s.queue.Len(ctx)
	if err != nil {
		return false, fmt.Errorf("queue length: %w", err)
	}
	if pending > 0 || !s.network.IsOnline() {
		return true, s.enqueue(ctx, m)
	}

	err = s.replayer.Replay(ctx, m)
	if err == nil {
		s.metrics.MutationReplayed(kind, resultSuccess)
		return false, nil
	}
	if !domain.IsRetryable(err) {
		return false, fmt.Errorf("record %s: %w", kind, err)
	}

	if errors.Is(err, domain.ErrNetwork) {
		s.network.SetState(domain.Offline)
	}
	logger.Debug("Backend unavailable for %s (%v), queueing", kind, err)
	return true, s.enqueue(ctx, m)
}

func (s *ProgressService) enqueue(ctx context.Context, m domain.PendingMutation) error {
	if err := s.queue.Enqueue(ctx, m); err != nil {
		return fmt.Errorf("enqueue %s: %w", m.Kind, err)
	}
	if n, err := s.queue.Len(ctx); err == nil {
		s.metrics.PendingMutations(n)
	}
	return nil
}

// marshalPayload accepts raw JSON or any value encodable as JSON.
func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: payload is not valid JSON", domain.ErrInvalidInput)
		}
		return p, nil
	case nil:
		return nil, fmt.Errorf("%w: empty payload", domain.ErrInvalidInput)
	default:
		body, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return body, nil
	}
}
