package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
)

// mutationQueue implements driven.MutationQueue.
// Rows are ordered by an autoincrement sequence, never by timestamp.
type mutationQueue struct {
	store *Store
}

var _ driven.MutationQueue = (*mutationQueue)(nil)

const mutationColumns = `id, kind, payload, created_at, attempts, last_error`

// Enqueue appends a mutation to the tail of the queue.
func (q *mutationQueue) Enqueue(ctx context.Context, m domain.PendingMutation) error {
	if m.ID == "" {
		return fmt.Errorf("%w: mutation id is required", domain.ErrInvalidInput)
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := q.store.db.ExecContext(ctx, `
		INSERT INTO pending_mutations (id, kind, payload, created_at, attempts, last_error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, m.ID, string(m.Kind), string(m.Payload), createdAt.UnixNano(), m.Attempts, nullString(m.LastError))
	if err != nil {
		return fmt.Errorf("%w: enqueueing %s: %w", domain.ErrStorage, m.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: duplicate mutation %s", domain.ErrInvalidInput, m.ID)
	}
	return nil
}

// Peek returns the oldest mutation, or nil when the queue is empty.
func (q *mutationQueue) Peek(ctx context.Context) (*domain.PendingMutation, error) {
	row := q.store.db.QueryRowContext(ctx,
		"SELECT "+mutationColumns+" FROM pending_mutations ORDER BY seq LIMIT 1")

	m, err := scanMutation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// List returns every queued mutation, oldest first.
func (q *mutationQueue) List(ctx context.Context) ([]domain.PendingMutation, error) {
	rows, err := q.store.db.QueryContext(ctx,
		"SELECT "+mutationColumns+" FROM pending_mutations ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("%w: querying mutations: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.PendingMutation //nolint:prealloc // size unknown from query
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating mutations: %w", domain.ErrStorage, err)
	}
	return out, nil
}

// Remove deletes a mutation after a successful replay.
func (q *mutationQueue) Remove(ctx context.Context, id string) error {
	res, err := q.store.db.ExecContext(ctx, "DELETE FROM pending_mutations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: removing %s: %w", domain.ErrStorage, id, err)
	}
	return requireAffected(res, id)
}

// MarkFailed records a failed replay attempt in place.
func (q *mutationQueue) MarkFailed(ctx context.Context, id string, reason string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE pending_mutations SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, nullString(reason), id)
	if err != nil {
		return fmt.Errorf("%w: marking %s failed: %w", domain.ErrStorage, id, err)
	}
	return requireAffected(res, id)
}

// Len returns the number of queued mutations.
func (q *mutationQueue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_mutations").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting mutations: %w", domain.ErrStorage, err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMutation(row rowScanner) (*domain.PendingMutation, error) {
	var m domain.PendingMutation
	var kind, payload string
	var createdAt int64
	var lastError sql.NullString

	if err := row.Scan(&m.ID, &kind, &payload, &createdAt, &m.Attempts, &lastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scanning mutation: %w", domain.ErrStorage, err)
	}

	m.Kind = domain.MutationKind(kind)
	m.Payload = []byte(payload)
	m.CreatedAt = time.Unix(0, createdAt).UTC()
	if lastError.Valid {
		m.LastError = lastError.String
	}
	return &m, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("mutation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
