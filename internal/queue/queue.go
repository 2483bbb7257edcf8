package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a QueueItem.
type Status int

const (
	StatusPending Status = iota
	StatusLeased
	StatusSent
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusLeased:
		return "leased"
	case StatusSent:
		return "sent"
	case StatusDead:
		return "dead"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Item is a persisted queue record.
type Item struct {
	ID           int64
	CreatedUTC   string
	Type         string
	PayloadJSON  []byte
	Status       Status
	LeaseUntilUTC *string
	RetryCount   int
	LastError    *string
}

// Stats summarizes item counts by status.
type Stats struct {
	Pending int64
	Leased  int64
	Sent    int64
	Dead    int64
	Total   int64
}

// timeLayout is a fixed-width RFC3339 variant (constant-width fractional
// seconds) so that lexicographic TEXT comparison in SQL WHERE clauses
// agrees with chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatUTC(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Queue is a crash-safe, single-writer-per-process FIFO queue backed by a
// SQLite file, with leased-batch delivery semantics. All operations
// serialize behind a process-wide mutex, since the underlying connection
// pool is capped at one connection.
type Queue struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating and migrating if necessary) the queue backed by
// dbPath. dbPath may be ":memory:" for an ephemeral, test-only queue.
func Open(ctx context.Context, dbPath string) (*Queue, error) {
	db, err := openDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return &Queue{db: db}, nil
}

// Close releases the underlying database handle.
func (q *Queue) Close() error {
	if err := q.db.Close(); err != nil {
		return &StorageError{Op: "close", Err: err}
	}
	return nil
}

// Enqueue serializes payload to JSON and inserts a new Pending item,
// returning its assigned id.
func (q *Queue) Enqueue(ctx context.Context, typ string, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("queue: marshal payload: %w", err)
	}
	return q.EnqueueRaw(ctx, typ, raw)
}

// EnqueueRaw is like Enqueue but accepts an already-serialized JSON
// document, avoiding a double-serialization round trip.
func (q *Queue) EnqueueRaw(ctx context.Context, typ string, payloadJSON []byte) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := formatUTC(time.Now())
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO queue_items (created_utc, type, payload_json, status, retry_count)
		VALUES (?, ?, ?, ?, 0)
	`, now, typ, string(payloadJSON), StatusPending)
	if err != nil {
		return 0, &StorageError{Op: "enqueue", Err: err}
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "enqueue:last-insert-id", Err: err}
	}
	return id, nil
}

// LeaseBatch reclaims any expired leases, then atomically claims up to
// batchSize Pending items (FIFO by id) for leaseFor, returning them in
// ascending id order. An empty result is not an error: reclamation still
// commits even when no candidates are found.
func (q *Queue) LeaseBatch(ctx context.Context, batchSize int, leaseFor time.Duration) ([]Item, error) {
	if batchSize <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &StorageError{Op: "lease:begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	nowStr := formatUTC(now)

	if _, err := tx.ExecContext(ctx, `
		UPDATE queue_items
		SET status = ?, lease_until_utc = NULL, retry_count = retry_count + 1
		WHERE status = ? AND lease_until_utc <= ?
	`, StatusPending, StatusLeased, nowStr); err != nil {
		return nil, &StorageError{Op: "lease:reclaim", Err: err}
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM queue_items
		WHERE status = ?
		ORDER BY id ASC
		LIMIT ?
	`, StatusPending, batchSize)
	if err != nil {
		return nil, &StorageError{Op: "lease:select", Err: err}
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, &StorageError{Op: "lease:scan-candidate", Err: err}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, &StorageError{Op: "lease:rows", Err: err}
	}
	rows.Close()

	if len(ids) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, &StorageError{Op: "lease:commit-empty", Err: err}
		}
		return nil, nil
	}

	leaseUntil := formatUTC(now.Add(leaseFor))
	query, args := inClauseQuery(`
		UPDATE queue_items SET status = ?, lease_until_utc = ? WHERE id IN (`, ids)
	args = append([]any{StatusLeased, leaseUntil}, args...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, &StorageError{Op: "lease:claim", Err: err}
	}

	selectQuery, selectArgs := inClauseQuery(`
		SELECT id, created_utc, type, payload_json, status, lease_until_utc, retry_count, last_error
		FROM queue_items WHERE id IN (`, ids)
	selectQuery += " ORDER BY id ASC"
	items, err := q.scanItems(ctx, tx, selectQuery, selectArgs)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &StorageError{Op: "lease:commit", Err: err}
	}

	return items, nil
}

// MarkSent transitions the given ids to Sent, clearing any lease. It is
// unconditional by id: items not currently Leased are still updated, so
// re-calling with the same ids is harmless.
func (q *Queue) MarkSent(ctx context.Context, ids []int64) error {
	return q.setTerminal(ctx, ids, StatusSent)
}

// MarkDead transitions the given ids to Dead, clearing any lease.
func (q *Queue) MarkDead(ctx context.Context, ids []int64) error {
	return q.setTerminal(ctx, ids, StatusDead)
}

func (q *Queue) setTerminal(ctx context.Context, ids []int64, status Status) error {
	if len(ids) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	query, args := inClauseQuery(`
		UPDATE queue_items SET status = ?, lease_until_utc = NULL WHERE id IN (`, ids)
	args = append([]any{status}, args...)
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return &StorageError{Op: "mark-terminal", Err: err}
	}
	return nil
}

// ReleaseLease returns Leased items among ids to Pending, incrementing
// retry_count. Items not currently Leased are left untouched. Callers
// must not also rely on lease expiry to reclaim the same items: pick one
// reclamation path per item, or retry_count double-counts.
func (q *Queue) ReleaseLease(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	query, idArgs := inClauseQuery(`
		UPDATE queue_items
		SET status = ?, lease_until_utc = NULL, retry_count = retry_count + 1
		WHERE status = ? AND id IN (`, ids)
	args := append([]any{StatusPending, StatusLeased}, idArgs...)
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return &StorageError{Op: "release-lease", Err: err}
	}
	return nil
}

// DeleteSent permanently removes Sent rows, returning the count removed.
func (q *Queue) DeleteSent(ctx context.Context) (int64, error) {
	return q.deleteByStatus(ctx, StatusSent)
}

// DeleteDead permanently removes Dead rows, returning the count removed.
func (q *Queue) DeleteDead(ctx context.Context) (int64, error) {
	return q.deleteByStatus(ctx, StatusDead)
}

func (q *Queue) deleteByStatus(ctx context.Context, status Status) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	res, err := q.db.ExecContext(ctx, `DELETE FROM queue_items WHERE status = ?`, status)
	if err != nil {
		return 0, &StorageError{Op: "delete-terminal", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "delete-terminal:rows-affected", Err: err}
	}
	return n, nil
}

// TrimOldestByCount deletes the lowest-id rows, regardless of status,
// until the total row count is at most maxRows. It returns the number of
// rows removed. This is the bounded-growth safety valve against an
// unreachable remote filling the queue indefinitely.
func (q *Queue) TrimOldestByCount(ctx context.Context, maxRows int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "trim:begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&total); err != nil {
		return 0, &StorageError{Op: "trim:count", Err: err}
	}

	excess := total - maxRows
	if excess <= 0 {
		if err := tx.Commit(); err != nil {
			return 0, &StorageError{Op: "trim:commit-noop", Err: err}
		}
		return 0, nil
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM queue_items WHERE id IN (
			SELECT id FROM queue_items ORDER BY id ASC LIMIT ?
		)
	`, excess)
	if err != nil {
		return 0, &StorageError{Op: "trim:delete", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StorageError{Op: "trim:rows-affected", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "trim:commit", Err: err}
	}
	return n, nil
}

// PendingCount returns the number of Pending items.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items WHERE status = ?`, StatusPending).Scan(&n); err != nil {
		return 0, &StorageError{Op: "pending-count", Err: err}
	}
	return n, nil
}

// TotalCount returns the total number of rows in the queue.
func (q *Queue) TotalCount(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_items`).Scan(&n); err != nil {
		return 0, &StorageError{Op: "total-count", Err: err}
	}
	return n, nil
}

// GetStats returns per-status counts plus the total.
func (q *Queue) GetStats(ctx context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM queue_items GROUP BY status`)
	if err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	var s Stats
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, &StorageError{Op: "stats:scan", Err: err}
		}
		switch status {
		case StatusPending:
			s.Pending = n
		case StatusLeased:
			s.Leased = n
		case StatusSent:
			s.Sent = n
		case StatusDead:
			s.Dead = n
		}
		s.Total += n
	}
	if err := rows.Err(); err != nil {
		return Stats{}, &StorageError{Op: "stats:rows", Err: err}
	}
	return s, nil
}

type rowQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (q *Queue) scanItems(ctx context.Context, querier rowQuerier, query string, args []any) ([]Item, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "scan-items:query", Err: err}
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var payload string
		var status int
		if err := rows.Scan(&it.ID, &it.CreatedUTC, &it.Type, &payload, &status, &it.LeaseUntilUTC, &it.RetryCount, &it.LastError); err != nil {
			return nil, &StorageError{Op: "scan-items:scan", Err: err}
		}
		it.Status = Status(status)
		it.PayloadJSON = []byte(payload)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "scan-items:rows", Err: err}
	}
	return items, nil
}

// inClauseQuery appends a placeholder list for ids to prefix, closing it
// with a trailing ")". It returns the finished query and the id
// arguments in order.
func inClauseQuery(prefix string, ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			prefix += ", "
		}
		prefix += "?"
		args[i] = id
	}
	prefix += ")"
	return prefix, args
}
