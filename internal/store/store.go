package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rsahai/bizkeeper/internal/db"
	"github.com/rsahai/bizkeeper/internal/models"
	"github.com/rsahai/bizkeeper/internal/uuid"
)

// Row is one entity record as seen by callers: the collection-specific
// payload fields plus the two control fields "id" and "synced".
type Row map[string]any

// Manager is the storage façade over the embedded store. Reads are purely
// local; every mutation commits the row change and its pending sync item in
// a single transaction and returns after the local commit, never waiting for
// remote confirmation.
//
// A Manager is explicitly constructed and injected; tests create isolated
// instances over temporary databases.
type Manager struct {
	db *db.DB
}

// NewManager creates a Manager over an opened database.
func NewManager(database *db.DB) *Manager {
	return &Manager{db: database}
}

// Init brings the schema up to the version this build requires. It must be
// called before any other operation on a fresh or older data directory.
func (m *Manager) Init() error {
	migrator := db.NewMigrator(m.db.DB)
	if err := migrator.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Create inserts a new row stamped synced=false and enqueues a Create sync
// item carrying the full record. The assigned id is returned. If data
// already carries a non-empty "id" it is honored, otherwise one is assigned
// locally.
func (m *Manager) Create(ctx context.Context, col Collection, data Row) (string, error) {
	if _, err := ParseCollection(string(col)); err != nil {
		return "", err
	}

	id, _ := data["id"].(string)
	if id == "" {
		id = uuid.New()
	}

	payload, err := marshalPayload(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", col, err)
	}

	// The queued create carries the full record including the id, so a
	// replayed POST names the same entity every time.
	full := clonePayloadFields(data)
	full["id"] = id
	queued, err := json.Marshal(full)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s sync payload: %w", col, err)
	}

	now := time.Now().Unix()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(
		"INSERT INTO %s (id, synced, payload, created_at, updated_at) VALUES (?, 0, ?, ?, ?)",
		col.table(),
	)
	if _, err := tx.ExecContext(ctx, insert, id, string(payload), now, now); err != nil {
		return "", fmt.Errorf("failed to insert into %s: %w", col, err)
	}

	if err := enqueueSyncItem(ctx, tx, models.OpCreate, col, id, queued); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit create: %w", err)
	}

	return id, nil
}

// Read returns all rows of a collection. It never touches the network; an
// empty collection yields an empty slice, not an error.
func (m *Manager) Read(ctx context.Context, col Collection) ([]Row, error) {
	if _, err := ParseCollection(string(col)); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT id, synced, payload FROM %s ORDER BY created_at, id", col.table(),
	)
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", col, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", col, err)
	}
	return result, nil
}

// Get returns a single row by id. A missing id yields ok=false, not an error.
func (m *Manager) Get(ctx context.Context, col Collection, id string) (Row, bool, error) {
	if _, err := ParseCollection(string(col)); err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf("SELECT id, synced, payload FROM %s WHERE id = ?", col.table())

	var (
		rowID   string
		synced  bool
		payload string
	)
	err := m.db.QueryRowContext(ctx, query, id).Scan(&rowID, &synced, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s/%s: %w", col, id, err)
	}

	row, err := decodeRow(rowID, synced, payload)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Update merges partial over the existing row, resets synced=false and
// enqueues an Update item carrying the id plus the changed fields only.
// A missing id is an idempotent no-op returning false.
func (m *Manager) Update(ctx context.Context, col Collection, id string, partial Row) (bool, error) {
	if _, err := ParseCollection(string(col)); err != nil {
		return false, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", col.table())
	var existing string
	err = tx.QueryRowContext(ctx, query, id).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s/%s: %w", col, id, err)
	}

	merged := make(Row)
	if err := json.Unmarshal([]byte(existing), &merged); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s payload: %w", col, id, err)
	}
	for k, v := range partial {
		if k == "id" || k == "synced" {
			continue
		}
		merged[k] = v
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s payload: %w", col, err)
	}

	update := fmt.Sprintf(
		"UPDATE %s SET payload = ?, synced = 0, updated_at = ? WHERE id = ?", col.table(),
	)
	if _, err := tx.ExecContext(ctx, update, string(payload), time.Now().Unix(), id); err != nil {
		return false, fmt.Errorf("failed to update %s/%s: %w", col, id, err)
	}

	// The queued delta carries only the id and the changed fields.
	delta := clonePayloadFields(partial)
	delta["id"] = id
	queued, err := json.Marshal(delta)
	if err != nil {
		return false, fmt.Errorf("failed to encode %s sync payload: %w", col, err)
	}
	if err := enqueueSyncItem(ctx, tx, models.OpUpdate, col, id, queued); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit update: %w", err)
	}
	return true, nil
}

// Delete removes the row and enqueues a Delete item carrying the id alone.
// Deleting a missing id returns false and enqueues nothing.
func (m *Manager) Delete(ctx context.Context, col Collection, id string) (bool, error) {
	if _, err := ParseCollection(string(col)); err != nil {
		return false, err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	del := fmt.Sprintf("DELETE FROM %s WHERE id = ?", col.table())
	res, err := tx.ExecContext(ctx, del, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s/%s: %w", col, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	queued, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return false, fmt.Errorf("failed to encode %s sync payload: %w", col, err)
	}
	if err := enqueueSyncItem(ctx, tx, models.OpDelete, col, id, queued); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return true, nil
}

// CacheServerData replaces the collection's local rows with a server-fetched
// snapshot, all stamped synced=true. It does not reconcile against pending
// items for the collection; if any exist the overwrite is logged so the
// clobbered local edits are at least observable.
func (m *Manager) CacheServerData(ctx context.Context, col Collection, rows []Row) error {
	if _, err := ParseCollection(string(col)); err != nil {
		return err
	}

	pending, err := m.pendingCountFor(ctx, col)
	if err != nil {
		return err
	}
	if pending > 0 {
		log.Warn().
			Str("collection", col.String()).
			Int("pending", pending).
			Msg("caching server snapshot over collection with pending local mutations")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	clear := fmt.Sprintf("DELETE FROM %s", col.table())
	if _, err := tx.ExecContext(ctx, clear); err != nil {
		return fmt.Errorf("failed to clear %s: %w", col, err)
	}

	now := time.Now().Unix()
	insert := fmt.Sprintf(
		"INSERT INTO %s (id, synced, payload, created_at, updated_at) VALUES (?, 1, ?, ?, ?)",
		col.table(),
	)
	for _, row := range rows {
		id, _ := row["id"].(string)
		if id == "" {
			return fmt.Errorf("server row for %s is missing an id", col)
		}
		payload, err := marshalPayload(row)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", col, err)
		}
		if _, err := tx.ExecContext(ctx, insert, id, string(payload), now, now); err != nil {
			return fmt.Errorf("failed to insert cached %s/%s: %w", col, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache load: %w", err)
	}
	return nil
}

// marshalPayload encodes a row's payload fields, dropping the control fields
// which live in their own columns.
func marshalPayload(row Row) ([]byte, error) {
	return json.Marshal(clonePayloadFields(row))
}

func clonePayloadFields(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		if k == "id" || k == "synced" {
			continue
		}
		out[k] = v
	}
	return out
}

func scanRow(rows *sql.Rows) (Row, error) {
	var (
		id      string
		synced  bool
		payload string
	)
	if err := rows.Scan(&id, &synced, &payload); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return decodeRow(id, synced, payload)
}

func decodeRow(id string, synced bool, payload string) (Row, error) {
	row := make(Row)
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		return nil, fmt.Errorf("failed to decode payload for %s: %w", id, err)
	}
	row["id"] = id
	row["synced"] = synced
	return row, nil
}
