package model

import (
	"encoding/json"
	"time"
)

// Pending operation entity types
const (
	EntityPerson   = "person"
	EntitySafeZone = "safeZone"
	EntityAlert    = "alert"
)

// Pending operation types
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Pending operation sync statuses
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncFailed  = "failed"
)

// PendingOperation is a client mutation recorded while the remote was
// unreachable, to be replayed in enqueue order.
type PendingOperation struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"-"`
	EntityType string          `json:"entity_type"`
	Operation  string          `json:"operation"`
	Payload    json.RawMessage `json:"payload"`
	SyncStatus string          `json:"sync_status"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	SyncedAt   *time.Time      `json:"synced_at,omitempty"`
}
