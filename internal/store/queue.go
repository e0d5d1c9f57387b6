package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsahai/bizkeeper/internal/models"
)

// execer is satisfied by *sql.Tx and *sql.DB; queue appends run inside the
// same transaction as the row mutation they describe.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// enqueueSyncItem appends one pending mutation to the sync queue. The
// auto-incrementing local_seq breaks ties between items enqueued within the
// same second.
func enqueueSyncItem(ctx context.Context, ex execer, op models.SyncOp, col Collection, entityID string, payload []byte) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO sync_queue (op, collection, entity_id, payload, enqueued_at, retries, status)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		string(op), col.String(), entityID, string(payload), time.Now().Unix(), models.SyncStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s sync item for %s/%s: %w", op, col, entityID, err)
	}
	return nil
}

// PendingItems returns the not-yet-delivered items in replay order:
// (enqueued_at, local_seq) ascending. Items parked in the failed bucket are
// excluded.
func (m *Manager) PendingItems(ctx context.Context) ([]models.SyncItem, error) {
	return m.listSyncItems(ctx, models.SyncStatusPending)
}

// FailedSyncItems returns items evicted after exhausting their retry budget.
// They are kept for inspection rather than silently dropped.
func (m *Manager) FailedSyncItems(ctx context.Context) ([]models.SyncItem, error) {
	return m.listSyncItems(ctx, models.SyncStatusFailed)
}

func (m *Manager) listSyncItems(ctx context.Context, status string) ([]models.SyncItem, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT local_seq, op, collection, entity_id, payload, enqueued_at, retries, status, last_error
		 FROM sync_queue
		 WHERE status = ?
		 ORDER BY enqueued_at, local_seq`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var items []models.SyncItem
	for rows.Next() {
		var (
			item    models.SyncItem
			op      string
			payload string
		)
		err := rows.Scan(&item.LocalSeq, &op, &item.Collection, &item.EntityID,
			&payload, &item.EnqueuedAt, &item.Retries, &item.Status, &item.LastError)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync item: %w", err)
		}
		item.Op = models.SyncOp(op)
		item.Payload = []byte(payload)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync queue: %w", err)
	}
	return items, nil
}

// PendingSyncCount returns the number of items awaiting delivery. Failed
// items are terminal and not counted.
func (m *Manager) PendingSyncCount(ctx context.Context) (int, error) {
	return m.countSyncItems(ctx, models.SyncStatusPending)
}

// FailedSyncCount returns the number of items in the failed bucket.
func (m *Manager) FailedSyncCount(ctx context.Context) (int, error) {
	return m.countSyncItems(ctx, models.SyncStatusFailed)
}

func (m *Manager) countSyncItems(ctx context.Context, status string) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE status = ?", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sync queue: %w", err)
	}
	return count, nil
}

func (m *Manager) pendingCountFor(ctx context.Context, col Collection) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE status = ? AND collection = ?",
		models.SyncStatusPending, col.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items for %s: %w", col, err)
	}
	return count, nil
}

// MarkItemDelivered removes a confirmed item from the queue and, when it was
// the last queue entry referencing its entity, flips the entity's synced
// flag. Both happen in one transaction so a crash can't acknowledge the item
// without updating the flag.
func (m *Manager) MarkItemDelivered(ctx context.Context, item models.SyncItem) error {
	col, err := ParseCollection(item.Collection)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM sync_queue WHERE local_seq = ?", item.LocalSeq); err != nil {
		return fmt.Errorf("failed to remove sync item %d: %w", item.LocalSeq, err)
	}

	// Any remaining entry for this entity, pending or failed, means the
	// local row is not known to match the server yet.
	var remaining int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sync_queue WHERE collection = ? AND entity_id = ?",
		item.Collection, item.EntityID).Scan(&remaining)
	if err != nil {
		return fmt.Errorf("failed to count remaining items for %s/%s: %w", item.Collection, item.EntityID, err)
	}

	if remaining == 0 && item.Op != models.OpDelete {
		flip := fmt.Sprintf("UPDATE %s SET synced = 1 WHERE id = ?", col.table())
		if _, err := tx.ExecContext(ctx, flip, item.EntityID); err != nil {
			return fmt.Errorf("failed to mark %s/%s synced: %w", item.Collection, item.EntityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delivery: %w", err)
	}
	return nil
}

// RecordItemFailure increments the item's retry counter after a failed
// delivery attempt. Once the counter reaches maxRetries the item is parked
// in the failed bucket and true is returned; the next drain skips it.
func (m *Manager) RecordItemFailure(ctx context.Context, item models.SyncItem, cause error, maxRetries int) (bool, error) {
	retries := item.Retries + 1
	lastErr := ""
	if cause != nil {
		lastErr = cause.Error()
	}

	if retries >= maxRetries {
		_, err := m.db.ExecContext(ctx,
			"UPDATE sync_queue SET retries = ?, status = ?, last_error = ? WHERE local_seq = ?",
			retries, models.SyncStatusFailed, lastErr, item.LocalSeq)
		if err != nil {
			return false, fmt.Errorf("failed to park sync item %d: %w", item.LocalSeq, err)
		}
		return true, nil
	}

	_, err := m.db.ExecContext(ctx,
		"UPDATE sync_queue SET retries = ?, last_error = ? WHERE local_seq = ?",
		retries, lastErr, item.LocalSeq)
	if err != nil {
		return false, fmt.Errorf("failed to record failure for sync item %d: %w", item.LocalSeq, err)
	}
	return false, nil
}

// RetryFailedItems moves everything in the failed bucket back to pending
// with a fresh retry budget. Returns the number of items revived.
func (m *Manager) RetryFailedItems(ctx context.Context) (int, error) {
	res, err := m.db.ExecContext(ctx,
		"UPDATE sync_queue SET status = ?, retries = 0, last_error = '' WHERE status = ?",
		models.SyncStatusPending, models.SyncStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to revive failed sync items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(affected), nil
}
