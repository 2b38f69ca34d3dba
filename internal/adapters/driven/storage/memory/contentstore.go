package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu         sync.RWMutex
	records    map[domain.Scope]domain.DownloadRecord
	quotaBytes int64
	usage      int64
	now        func() time.Time
}

// NewContentStore creates a new in-memory content store.
// A quotaBytes of zero or less means unlimited.
func NewContentStore(quotaBytes int64) *ContentStore {
	return &ContentStore{
		records:    make(map[domain.Scope]domain.DownloadRecord),
		quotaBytes: quotaBytes,
		now:        time.Now,
	}
}

// SetQuota changes the quota for subsequent saves.
func (s *ContentStore) SetQuota(quotaBytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotaBytes = quotaBytes
}

// IsDownloaded reports whether a record exists for the scope.
func (s *ContentStore) IsDownloaded(_ context.Context, scope domain.Scope) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[scope]
	return ok, nil
}

// Save stores content, replacing any previous record for the scope.
func (s *ContentStore) Save(
	_ context.Context,
	scope domain.Scope,
	content domain.Content,
) (*domain.DownloadRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(content.Data))
	usage := s.usage
	if old, ok := s.records[scope]; ok {
		usage -= old.SizeBytes
	}
	if s.quotaBytes > 0 && usage+size > s.quotaBytes {
		return nil, fmt.Errorf("%w: %w: %d of %d bytes used, %d needed",
			domain.ErrStorage, domain.ErrQuotaExceeded, usage, s.quotaBytes, size)
	}

	record := domain.DownloadRecord{
		Scope:        scope,
		DownloadedAt: s.now().UTC(),
		SizeBytes:    size,
		Content:      append([]byte(nil), content.Data...),
		ChapterIDs:   append([]string(nil), content.ChapterIDs...),
	}
	s.records[scope] = record
	s.usage = usage + size

	return copyRecord(record, true), nil
}

// Get returns the record including its content.
func (s *ContentStore) Get(_ context.Context, scope domain.Scope) (*domain.DownloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[scope]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRecord(record, true), nil
}

// List returns records without content, newest first.
func (s *ContentStore) List(_ context.Context, scopeType domain.ScopeType) ([]domain.DownloadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.DownloadRecord, 0, len(s.records))
	for scope, record := range s.records {
		if scopeType != "" && scope.Type != scopeType {
			continue
		}
		records = append(records, *copyRecord(record, false))
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].DownloadedAt.Equal(records[j].DownloadedAt) {
			return records[i].DownloadedAt.After(records[j].DownloadedAt)
		}
		return records[i].Scope.String() < records[j].Scope.String()
	})
	return records, nil
}

// Delete removes the record for a scope.
func (s *ContentStore) Delete(_ context.Context, scope domain.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[scope]; ok {
		s.usage -= record.SizeBytes
		delete(s.records, scope)
	}
	return nil
}

// Clear removes every record.
func (s *ContentStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[domain.Scope]domain.DownloadRecord)
	s.usage = 0
	return nil
}

// Usage returns the total stored content size.
func (s *ContentStore) Usage(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage, nil
}

func copyRecord(r domain.DownloadRecord, withContent bool) *domain.DownloadRecord {
	out := r
	out.ChapterIDs = append([]string(nil), r.ChapterIDs...)
	out.Content = nil
	if withContent {
		out.Content = append([]byte(nil), r.Content...)
	}
	return &out
}
