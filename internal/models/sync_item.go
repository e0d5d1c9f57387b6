// Package models provides data model definitions for the bizkeeper core.
package models

import "encoding/json"

// SyncOp is the kind of mutation a queued sync item replays remotely.
type SyncOp string

const (
	OpCreate SyncOp = "create"
	OpUpdate SyncOp = "update"
	OpDelete SyncOp = "delete"
)

// Sync item statuses. Items start pending; an item that exhausts its retry
// budget is parked as failed rather than deleted, so callers can inspect it.
const (
	SyncStatusPending = "pending"
	SyncStatusFailed  = "failed"
)

// SyncItem represents one not-yet-acknowledged local mutation awaiting
// delivery to the remote system of record.
//
// LocalSeq and EnqueuedAt together define the total replay order: items for
// the same entity must reach the server in the order they were enqueued.
type SyncItem struct {
	LocalSeq   int64           `db:"local_seq" json:"local_seq"`
	Op         SyncOp          `db:"op" json:"op"`
	Collection string          `db:"collection" json:"collection"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	EnqueuedAt int64           `db:"enqueued_at" json:"enqueued_at"`
	Retries    int             `db:"retries" json:"retries"`
	Status     string          `db:"status" json:"status"`
	LastError  string          `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the table name for SyncItem.
func (SyncItem) TableName() string {
	return "sync_queue"
}
