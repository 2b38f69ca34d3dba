package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Ensure SyncAgent implements the interface.
var _ driving.SyncAgent = (*SyncAgent)(nil)

// SyncAgent replays mutations queued while offline.
//
// Replay is strictly FIFO. The first failure stops the flush and leaves that
// mutation and everything behind it in place; the failure is recorded on the
// mutation. Nothing is ever dropped.
type SyncAgent struct {
	queue    driven.MutationQueue
	replayer driven.MutationReplayer
	network  driving.NetworkMonitor
	metrics  driven.Metrics
	limiter  *rate.Limiter
	now      func() time.Time

	// flushMu serialises flushes; TryLock reports a flush in progress.
	flushMu sync.Mutex

	mu          sync.RWMutex
	running     bool
	lastFlush   time.Time
	lastError   string
	unsubscribe func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewSyncAgent creates a sync agent replaying at most replayRate mutations
// per second. Metrics may be nil.
func NewSyncAgent(
	queue driven.MutationQueue,
	replayer driven.MutationReplayer,
	network driving.NetworkMonitor,
	replayRate float64,
	metrics driven.Metrics,
) *SyncAgent {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	limit := rate.Inf
	if replayRate > 0 {
		limit = rate.Limit(replayRate)
	}
	return &SyncAgent{
		queue:    queue,
		replayer: replayer,
		network:  network,
		metrics:  metrics,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
	}
}

// SetReplayRate changes the replay pacing. A rate of zero or less removes it.
func (a *SyncAgent) SetReplayRate(replayRate float64) {
	limit := rate.Inf
	if replayRate > 0 {
		limit = rate.Limit(replayRate)
	}
	a.limiter.SetLimit(limit)
}

// Start subscribes to the network monitor. Every Offline to Online
// transition triggers an asynchronous flush bound to ctx.
func (a *SyncAgent) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.unsubscribe = a.network.AddListener(func(from, to domain.NetworkState) {
		if from != domain.Offline || to != domain.Online {
			return
		}
		a.mu.RLock()
		stopped := a.unsubscribe == nil
		if !stopped {
			a.wg.Add(1)
		}
		a.mu.RUnlock()
		if stopped {
			return
		}
		go func() {
			defer a.wg.Done()
			if _, err := a.Flush(ctx); err != nil {
				logger.Warn("Replay after reconnect stopped: %v", err)
			}
		}()
	})
}

// Stop unsubscribes and waits for any flush triggered by a transition.
func (a *SyncAgent) Stop() {
	a.mu.Lock()
	unsubscribe, cancel := a.unsubscribe, a.cancel
	a.unsubscribe, a.cancel = nil, nil
	a.mu.Unlock()

	if unsubscribe == nil {
		return
	}
	unsubscribe()
	cancel()
	a.wg.Wait()
}

// Enqueue appends a mutation to the queue.
func (a *SyncAgent) Enqueue(
	ctx context.Context,
	kind domain.MutationKind,
	payload json.RawMessage,
) (*domain.PendingMutation, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown mutation kind %q", domain.ErrInvalidInput, kind)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", domain.ErrInvalidInput)
	}

	m := domain.PendingMutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: a.now().UTC(),
	}
	if err := a.queue.Enqueue(ctx, m); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	logger.Debug("Queued %s mutation %s", kind, m.ID)
	a.reportDepth(ctx)
	return &m, nil
}

// Flush replays queued mutations oldest first.
// Returns domain.ErrSyncInProgress when another flush is running and
// domain.ErrNetwork, without touching the queue, when offline.
func (a *SyncAgent) Flush(ctx context.Context) (domain.ReplayResult, error) {
	if !a.flushMu.TryLock() {
		return domain.ReplayResult{}, domain.ErrSyncInProgress
	}
	defer a.flushMu.Unlock()

	if !a.network.IsOnline() {
		n, _ := a.queue.Len(ctx)
		return domain.ReplayResult{Remaining: n}, fmt.Errorf("flush: %w", domain.ErrNetwork)
	}

	a.setRunning(true)
	result, err := a.flush(ctx)
	a.finishFlush(err)

	if n, lenErr := a.queue.Len(ctx); lenErr == nil {
		result.Remaining = n
		a.metrics.PendingMutations(n)
	}
	return result, err
}

func (a *SyncAgent) flush(ctx context.Context) (domain.ReplayResult, error) {
	var result domain.ReplayResult

	for {
		m, err := a.queue.Peek(ctx)
		if err != nil {
			return result, fmt.Errorf("peek queue: %w", err)
		}
		if m == nil {
			if result.Replayed > 0 {
				logger.Info("Replayed %d mutations", result.Replayed)
			}
			return result, nil
		}

		if err := a.limiter.Wait(ctx); err != nil {
			return result, err
		}

		if err := a.replayer.Replay(ctx, *m); err != nil {
			a.metrics.MutationReplayed(m.Kind, resultFailed)
			result.FailedID = m.ID
			if markErr := a.queue.MarkFailed(ctx, m.ID, err.Error()); markErr != nil {
				logger.Error("Failed to record replay failure for %s: %v", m.ID, markErr)
			}
			return result, fmt.Errorf("replay %s %s: %w", m.Kind, m.ID, err)
		}

		a.metrics.MutationReplayed(m.Kind, resultSuccess)
		if err := a.queue.Remove(ctx, m.ID); err != nil {
			return result, fmt.Errorf("remove %s: %w", m.ID, err)
		}
		result.Replayed++
	}
}

// Drop removes a queued mutation without replaying it. It returns
// domain.ErrSyncInProgress while a flush runs and domain.ErrNotFound for an
// unknown ID.
func (a *SyncAgent) Drop(ctx context.Context, id string) error {
	if !a.flushMu.TryLock() {
		return domain.ErrSyncInProgress
	}
	defer a.flushMu.Unlock()

	if err := a.queue.Remove(ctx, id); err != nil {
		return fmt.Errorf("drop %s: %w", id, err)
	}
	logger.Info("Dropped mutation %s", id)
	a.reportDepth(ctx)
	return nil
}

// Pending lists the queued mutations, oldest first.
func (a *SyncAgent) Pending(ctx context.Context) ([]domain.PendingMutation, error) {
	return a.queue.List(ctx)
}

// Status returns the replay status.
func (a *SyncAgent) Status(ctx context.Context) (*driving.SyncStatus, error) {
	n, err := a.queue.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue length: %w", err)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return &driving.SyncStatus{
		Running:   a.running,
		Pending:   n,
		LastFlush: a.lastFlush,
		LastError: a.lastError,
	}, nil
}

func (a *SyncAgent) setRunning(running bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = running
}

func (a *SyncAgent) finishFlush(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
	a.lastFlush = a.now()
	a.lastError = ""
	if err != nil {
		a.lastError = err.Error()
	}
}

func (a *SyncAgent) reportDepth(ctx context.Context) {
	if n, err := a.queue.Len(ctx); err == nil {
		a.metrics.PendingMutations(n)
	}
}
