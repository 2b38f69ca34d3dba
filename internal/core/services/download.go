package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Ensure DownloadService implements the interface.
var _ driving.DownloadCoordinator = (*DownloadService)(nil)

// Download outcomes reported to metrics.
const (
	resultSuccess = "success"
	resultFailed  = "failed"
	resultAborted = "aborted"
)

// DownloadService coordinates offline downloads.
//
// At most one transfer runs per scope. A second Download call for a scope in
// flight attaches to the running transfer. When every subscriber closes
// before the content is saved, the fetch is cancelled and nothing is written.
// Once the save has started it runs to completion.
type DownloadService struct {
	store   driven.ContentStore
	fetcher driven.ContentFetcher
	network driving.NetworkMonitor
	metrics driven.Metrics

	mu       sync.Mutex
	inflight map[domain.Scope]*transfer
}

// NewDownloadService creates a download coordinator. Metrics may be nil.
func NewDownloadService(
	store driven.ContentStore,
	fetcher driven.ContentFetcher,
	network driving.NetworkMonitor,
	metrics driven.Metrics,
) *DownloadService {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	return &DownloadService{
		store:    store,
		fetcher:  fetcher,
		network:  network,
		metrics:  metrics,
		inflight: make(map[domain.Scope]*transfer),
	}
}

// Download starts the transfer for a scope or attaches to the one in flight.
func (s *DownloadService) Download(ctx context.Context, scope domain.Scope) (driving.Download, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if !s.network.IsOnline() {
		return nil, fmt.Errorf("download %s: %w", scope, domain.ErrNetwork)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.inflight[scope]; ok {
		logger.Debug("Attaching to download of %s", scope)
		return t.subscribe(s), nil
	}

	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &transfer{
		scope:  scope,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[*subscription]struct{}),
	}
	sub := t.subscribe(s)
	s.inflight[scope] = t

	logger.Info("Downloading %s", scope)
	go s.run(tctx, t)

	return sub, nil
}

// run performs the fetch and the store write for one transfer.
func (s *DownloadService) run(ctx context.Context, t *transfer) {
	record, err := s.transfer(ctx, t)

	s.mu.Lock()
	if s.inflight[t.scope] == t {
		delete(s.inflight, t.scope)
	}
	s.mu.Unlock()
	t.cancel()

	switch {
	case err == nil:
		s.metrics.DownloadFinished(t.scope.Type, resultSuccess, record.SizeBytes)
		logger.Info("Downloaded %s (%d bytes)", t.scope, record.SizeBytes)
	case errors.Is(err, domain.ErrDownloadAborted):
		s.metrics.DownloadFinished(t.scope.Type, resultAborted, 0)
		logger.Debug("Download of %s aborted", t.scope)
	default:
		s.metrics.DownloadFinished(t.scope.Type, resultFailed, 0)
		logger.Warn("Download of %s failed: %v", t.scope, err)
	}

	t.finish(record, err)
}

func (s *DownloadService) transfer(ctx context.Context, t *transfer) (*domain.DownloadRecord, error) {
	content, err := s.fetcher.Fetch(ctx, t.scope, func(done, total int64) {
		if total <= 0 {
			return
		}
		// 100 is reserved for a completed save.
		pct := int(done * 100 / total)
		if pct > 99 {
			pct = 99
		}
		t.publish(pct)
	})
	if ctx.Err() != nil {
		return nil, fmt.Errorf("download %s: %w", t.scope, domain.ErrDownloadAborted)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t.scope, err)
	}
	if content == nil {
		return nil, fmt.Errorf("fetch %s: %w: empty response", t.scope, domain.ErrServer)
	}

	if !t.beginSave() {
		return nil, fmt.Errorf("download %s: %w", t.scope, domain.ErrDownloadAborted)
	}

	record, err := s.store.Save(ctx, t.scope, *content)
	if err != nil {
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return nil, fmt.Errorf("save %s: %w", t.scope, err)
	}
	return record, nil
}

// release removes a subscription and aborts the transfer when it was the last
// one and the save has not started.
func (s *DownloadService) release(sub *subscription) {
	t := sub.t

	s.mu.Lock()
	t.mu.Lock()
	delete(t.subs, sub)
	if !t.finished {
		close(sub.updates)
	}
	abort := len(t.subs) == 0 && !t.finished && !t.saving
	if abort && s.inflight[t.scope] == t {
		delete(s.inflight, t.scope)
	}
	t.mu.Unlock()
	s.mu.Unlock()

	if abort {
		t.cancel()
	}
}

// Delete removes downloaded content. Deleting absent content is not an error.
func (s *DownloadService) Delete(ctx context.Context, scope domain.Scope) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, scope); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", scope, err)
	}
	logger.Info("Removed %s", scope)
	return nil
}

// IsDownloaded reports whether the scope is available offline.
func (s *DownloadService) IsDownloaded(ctx context.Context, scope domain.Scope) (bool, error) {
	if err := scope.Validate(); err != nil {
		return false, err
	}
	return s.store.IsDownloaded(ctx, scope)
}

// PathStatus derives the offline status of a path from its chapter list.
// Without a stored path record the chapter list is unknown, so the status
// reports nothing downloaded.
func (s *DownloadService) PathStatus(ctx context.Context, pathID string) (*domain.PathStatus, error) {
	scope := domain.PathScope(pathID)
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	status := &domain.PathStatus{PathID: pathID}

	record, err := s.store.Get(ctx, scope)
	if errors.Is(err, domain.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get path %s: %w", pathID, err)
	}

	status.PathDownloaded = true
	status.ChapterIDs = record.ChapterIDs
	for _, chapterID := range record.ChapterIDs {
		ok, err := s.store.IsDownloaded(ctx, domain.ChapterScope(chapterID))
		if err != nil {
			return nil, fmt.Errorf("check chapter %s: %w", chapterID, err)
		}
		if ok {
			status.DownloadedChapters = append(status.DownloadedChapters, chapterID)
		}
	}
	return status, nil
}

// List returns downloaded records without content.
func (s *DownloadService) List(ctx context.Context, scopeType domain.ScopeType) ([]domain.DownloadRecord, error) {
	return s.store.List(ctx, scopeType)
}

// Clear removes all downloaded content.
func (s *DownloadService) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear offline content: %w", err)
	}
	return nil
}

// Active returns the scopes with a transfer in flight, sorted.
func (s *DownloadService) Active() []domain.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	scopes := make([]domain.Scope, 0, len(s.inflight))
	for scope := range s.inflight {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool {
		return scopes[i].String() < scopes[j].String()
	})
	return scopes
}

// transfer is one in-flight download shared by its subscribers.
type transfer struct {
	scope  domain.Scope
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	percent  int
	subs     map[*subscription]struct{}
	saving   bool
	finished bool
	record   *domain.DownloadRecord
	err      error
}

// subscribe adds a subscriber whose channel starts at the current percent.
func (t *transfer) subscribe(s *DownloadService) *subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &subscription{t: t, svc: s, updates: make(chan int, 1)}
	sub.updates <- t.percent
	if t.finished {
		if t.err == nil && t.percent < 100 {
			<-sub.updates
			sub.updates <- 100
		}
		close(sub.updates)
		return sub
	}
	t.subs[sub] = struct{}{}
	return sub
}

// publish raises the percent and pushes it to every subscriber.
// Each subscriber channel holds only the latest value.
func (t *transfer) publish(pct int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishLocked(pct)
}

func (t *transfer) publishLocked(pct int) {
	if pct <= t.percent || t.finished {
		return
	}
	t.percent = pct
	for sub := range t.subs {
		sub.push(pct)
	}
}

// beginSave marks the point after which the transfer can no longer abort.
// Returns false when no subscriber is left.
func (t *transfer) beginSave() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subs) == 0 {
		return false
	}
	t.saving = true
	return true
}

// finish records the outcome, sends 100 on success and closes all channels.
func (t *transfer) finish(record *domain.DownloadRecord, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		t.publishLocked(100)
	}
	t.record = record
	t.err = err
	t.finished = true
	for sub := range t.subs {
		close(sub.updates)
	}
	t.subs = nil
	close(t.done)
}

// subscription implements driving.Download.
type subscription struct {
	t       *transfer
	svc     *DownloadService
	updates chan int
	once    sync.Once
}

// push replaces any unread value with pct. Only the transfer, under its
// lock, writes to the channel.
func (s *subscription) push(pct int) {
	select {
	case s.updates <- pct:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- pct:
		default:
		}
	}
}

// Scope returns what is being downloaded.
func (s *subscription) Scope() domain.Scope {
	return s.t.scope
}

// Updates yields progress percentages.
func (s *subscription) Updates() <-chan int {
	return s.updates
}

// Wait blocks until the transfer ends.
func (s *subscription) Wait(ctx context.Context) (*domain.DownloadRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.t.done:
		return s.t.record, s.t.err
	}
}

// Close discards the subscription.
func (s *subscription) Close() {
	s.once.Do(func() {
		s.svc.release(s)
	})
}
