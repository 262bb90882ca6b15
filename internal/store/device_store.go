package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DeviceEntry is a host-confirmed device persisted across restarts: the
// durable counterpart of the registry's in-memory state. Only identity is
// stored, never measurements.
type DeviceEntry struct {
	DeviceID    string
	DeviceType  string
	DisplayName string
	ConfirmedAt time.Time
}

// DeviceStore persists confirmed device entries
type DeviceStore interface {
	Save(ctx context.Context, entry DeviceEntry) error
	List(ctx context.Context) ([]DeviceEntry, error)
}

// PostgresDeviceStore DeviceStore backed by PostgreSQL
type PostgresDeviceStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresDeviceStore creates the store
func NewPostgresDeviceStore(db *sql.DB, logger *zap.Logger) *PostgresDeviceStore {
	return &PostgresDeviceStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the device_entries table if missing
func (s *PostgresDeviceStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS device_entries (
			device_id    TEXT PRIMARY KEY,
			device_type  TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			confirmed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create device_entries table: %w", err)
	}
	return nil
}

// Save upserts one confirmed device entry
func (s *PostgresDeviceStore) Save(ctx context.Context, entry DeviceEntry) error {
	query := `
		INSERT INTO device_entries (device_id, device_type, display_name, confirmed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id) DO UPDATE SET
			device_type  = EXCLUDED.device_type,
			display_name = EXCLUDED.display_name,
			confirmed_at = EXCLUDED.confirmed_at
	`

	confirmedAt := entry.ConfirmedAt
	if confirmedAt.IsZero() {
		confirmedAt = time.Now().UTC()
	}

	if _, err := s.db.ExecContext(ctx, query, entry.DeviceID, entry.DeviceType, entry.DisplayName, confirmedAt); err != nil {
		return fmt.Errorf("failed to save device entry %s: %w", entry.DeviceID, err)
	}

	s.logger.Info("Saved device entry",
		zap.String("device_id", entry.DeviceID),
		zap.String("display_name", entry.DisplayName),
	)
	return nil
}

// List returns all confirmed device entries
func (s *PostgresDeviceStore) List(ctx context.Context) ([]DeviceEntry, error) {
	query := `
		SELECT device_id, device_type, display_name, confirmed_at
		FROM device_entries
		ORDER BY device_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query device entries: %w", err)
	}
	defer rows.Close()

	var entries []DeviceEntry
	for rows.Next() {
		var entry DeviceEntry
		if err := rows.Scan(&entry.DeviceID, &entry.DeviceType, &entry.DisplayName, &entry.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan device entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device entries: %w", err)
	}

	return entries, nil
}
