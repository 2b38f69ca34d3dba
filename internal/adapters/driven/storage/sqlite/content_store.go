package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
)

// contentStore implements driven.ContentStore.
type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

// IsDownloaded reports whether a record exists for the scope.
func (s *contentStore) IsDownloaded(ctx context.Context, scope domain.Scope) (bool, error) {
	var exists int
	err := s.store.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM download_records WHERE scope_type = ? AND scope_id = ?)
	`, string(scope.Type), scope.ID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: checking %s: %w", domain.ErrStorage, scope, err)
	}
	return exists == 1, nil
}

// Save stores content, replacing any previous record for the scope.
// The quota check and the write are one statement, so concurrent saves
// cannot overrun the quota together.
func (s *contentStore) Save(
	ctx context.Context,
	scope domain.Scope,
	content domain.Content,
) (*domain.DownloadRecord, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	chapterIDs, err := marshalChapterIDs(content.ChapterIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding chapter ids: %w", domain.ErrStorage, err)
	}

	data := content.Data
	if data == nil {
		data = []byte{}
	}
	now := time.Now().UTC()
	size := int64(len(data))
	quota := s.store.quotaBytes.Load()

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO download_records (scope_type, scope_id, downloaded_at, size_bytes, content, chapter_ids)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE ? <= 0 OR (
			SELECT COALESCE(SUM(size_bytes), 0) FROM download_records
			WHERE NOT (scope_type = ? AND scope_id = ?)
		) + ? <= ?
		ON CONFLICT(scope_type, scope_id) DO UPDATE SET
			downloaded_at = excluded.downloaded_at,
			size_bytes = excluded.size_bytes,
			content = excluded.content,
			chapter_ids = excluded.chapter_ids
	`, string(scope.Type), scope.ID, now.UnixNano(), size, data, chapterIDs,
		quota, string(scope.Type), scope.ID, size, quota)
	if err != nil {
		return nil, fmt.Errorf("%w: saving %s: %w", domain.ErrStorage, scope, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: saving %s: %w", domain.ErrStorage, scope, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %w: %s needs %d bytes, limit is %d",
			domain.ErrStorage, domain.ErrQuotaExceeded, scope, size, quota)
	}

	return &domain.DownloadRecord{
		Scope:        scope,
		DownloadedAt: time.Unix(0, now.UnixNano()).UTC(),
		SizeBytes:    size,
		Content:      data,
		ChapterIDs:   content.ChapterIDs,
	}, nil
}

// Get returns the record including its content.
func (s *contentStore) Get(ctx context.Context, scope domain.Scope) (*domain.DownloadRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT scope_type, scope_id, downloaded_at, size_bytes, content, chapter_ids
		FROM download_records WHERE scope_type = ? AND scope_id = ?
	`, string(scope.Type), scope.ID)

	var record domain.DownloadRecord
	var scopeType string
	var downloadedAt int64
	var chapterIDs sql.NullString
	err := row.Scan(&scopeType, &record.Scope.ID, &downloadedAt, &record.SizeBytes, &record.Content, &chapterIDs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrStorage, scope, err)
	}

	record.Scope.Type = domain.ScopeType(scopeType)
	record.DownloadedAt = time.Unix(0, downloadedAt).UTC()
	record.ChapterIDs = unmarshalChapterIDs(chapterIDs)
	return &record, nil
}

// List returns records without content, newest first.
func (s *contentStore) List(ctx context.Context, scopeType domain.ScopeType) ([]domain.DownloadRecord, error) {
	query := `
		SELECT scope_type, scope_id, downloaded_at, size_bytes, chapter_ids
		FROM download_records`
	var args []any
	if scopeType != "" {
		query += ` WHERE scope_type = ?`
		args = append(args, string(scopeType))
	}
	query += ` ORDER BY downloaded_at DESC, scope_type, scope_id`

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying downloads: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var records []domain.DownloadRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		var record domain.DownloadRecord
		var st string
		var downloadedAt int64
		var chapterIDs sql.NullString
		if err := rows.Scan(&st, &record.Scope.ID, &downloadedAt, &record.SizeBytes, &chapterIDs); err != nil {
			return nil, fmt.Errorf("%w: scanning download: %w", domain.ErrStorage, err)
		}
		record.Scope.Type = domain.ScopeType(st)
		record.DownloadedAt = time.Unix(0, downloadedAt).UTC()
		record.ChapterIDs = unmarshalChapterIDs(chapterIDs)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating downloads: %w", domain.ErrStorage, err)
	}
	return records, nil
}

// Delete removes the record for a scope.
func (s *contentStore) Delete(ctx context.Context, scope domain.Scope) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM download_records WHERE scope_type = ? AND scope_id = ?",
		string(scope.Type), scope.ID)
	if err != nil {
		return fmt.Errorf("%w: deleting %s: %w", domain.ErrStorage, scope, err)
	}
	return nil
}

// Clear removes every record.
func (s *contentStore) Clear(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM download_records"); err != nil {
		return fmt.Errorf("%w: clearing downloads: %w", domain.ErrStorage, err)
	}
	return nil
}

// Usage returns the total stored content size.
func (s *contentStore) Usage(ctx context.Context) (int64, error) {
	var used int64
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(size_bytes), 0) FROM download_records").Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("%w: computing usage: %w", domain.ErrStorage, err)
	}
	return used, nil
}

func marshalChapterIDs(ids []string) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalChapterIDs(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(s.String), &ids); err != nil {
		return nil
	}
	return ids
}
