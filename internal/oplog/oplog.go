// Package oplog records mutations made while the hub is unreachable and
// replays them when connectivity returns.
package oplog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cairnhealth/cairn/internal/model"
)

// SyncedRetention is how long synced operations are kept before pruning.
const SyncedRetention = 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS pending_operations (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	entity_type TEXT NOT NULL,
	operation TEXT NOT NULL,
	payload TEXT NOT NULL,
	sync_status TEXT NOT NULL DEFAULT 'pending',
	last_error TEXT NOT NULL DEFAULT '',
	enqueued_at TIMESTAMP NOT NULL,
	synced_at TIMESTAMP
)`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init oplog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Enqueue records a mutation for later replay and returns it.
func (s *Store) Enqueue(entityType, operation string, payload any) (*model.PendingOperation, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal operation payload: %w", err)
	}

	op := &model.PendingOperation{
		ID:         uuid.NewString(),
		EntityType: entityType,
		Operation:  operation,
		Payload:    data,
		SyncStatus: model.SyncPending,
		EnqueuedAt: time.Now().UTC(),
	}

	result, err := s.db.Exec(
		`INSERT INTO pending_operations (id, entity_type, operation, payload, sync_status, enqueued_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		op.ID, op.EntityType, op.Operation, string(data), op.SyncStatus, op.EnqueuedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue operation: %w", err)
	}
	op.Seq, _ = result.LastInsertId()
	return op, nil
}

const opColumns = `seq, id, entity_type, operation, payload, sync_status, last_error, enqueued_at, synced_at`

// ListUnsynced returns pending and failed operations in enqueue order.
// Failed operations stay in the queue and are retried on every sync pass.
func (s *Store) ListUnsynced() ([]model.PendingOperation, error) {
	rows, err := s.db.Query(
		`SELECT `+opColumns+` FROM pending_operations
		 WHERE sync_status IN (?, ?) ORDER BY seq`,
		model.SyncPending, model.SyncFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("list unsynced operations: %w", err)
	}
	defer rows.Close()
	return scanOps(rows)
}

// List returns every recorded operation in enqueue order.
func (s *Store) List() ([]model.PendingOperation, error) {
	rows, err := s.db.Query(`SELECT ` + opColumns + ` FROM pending_operations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()
	return scanOps(rows)
}

// MarkSynced records a successful replay.
func (s *Store) MarkSynced(id string) error {
	_, err := s.db.Exec(
		`UPDATE pending_operations SET sync_status = ?, last_error = '', synced_at = ? WHERE id = ?`,
		model.SyncSynced, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark operation synced: %w", err)
	}
	return nil
}

// MarkFailed records a failed replay attempt. The operation remains queued.
func (s *Store) MarkFailed(id, reason string) error {
	_, err := s.db.Exec(
		`UPDATE pending_operations SET sync_status = ?, last_error = ? WHERE id = ?`,
		model.SyncFailed, reason, id,
	)
	if err != nil {
		return fmt.Errorf("mark operation failed: %w", err)
	}
	return nil
}

// PruneSynced deletes synced operations older than the retention window.
func (s *Store) PruneSynced() (int64, error) {
	cutoff := time.Now().UTC().Add(-SyncedRetention)
	result, err := s.db.Exec(
		`DELETE FROM pending_operations WHERE sync_status = ? AND synced_at < ?`,
		model.SyncSynced, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("prune synced operations: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func scanOps(rows *sql.Rows) ([]model.PendingOperation, error) {
	var ops []model.PendingOperation
	for rows.Next() {
		var op model.PendingOperation
		var payload string
		if err := rows.Scan(&op.Seq, &op.ID, &op.EntityType, &op.Operation, &payload,
			&op.SyncStatus, &op.LastError, &op.EnqueuedAt, &op.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Payload = json.RawMessage(payload)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
