package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresDeviceStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewPostgresDeviceStore(db, zap.NewNop())
	return db, mock, store
}

func TestSave_Upsert(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	confirmedAt := time.Unix(1768503477, 0).UTC()

	mock.ExpectExec(`INSERT INTO device_entries`).
		WithArgs("RT001", "ht", "Living Room", confirmedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), DeviceEntry{
		DeviceID:    "RT001",
		DeviceType:  "ht",
		DisplayName: "Living Room",
		ConfirmedAt: confirmedAt,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_DefaultsConfirmedAt(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO device_entries`).
		WithArgs("RT001", "ht", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), DeviceEntry{
		DeviceID:   "RT001",
		DeviceType: "ht",
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	confirmedAt := time.Unix(1768503477, 0).UTC()
	rows := sqlmock.NewRows([]string{"device_id", "device_type", "display_name", "confirmed_at"}).
		AddRow("RT001", "ht", "Living Room", confirmedAt).
		AddRow("RT002", "ht", "Bedroom", confirmedAt)

	mock.ExpectQuery(`SELECT device_id, device_type, display_name, confirmed_at`).
		WillReturnRows(rows)

	entries, err := store.List(context.Background())

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "RT001", entries[0].DeviceID)
	assert.Equal(t, "Living Room", entries[0].DisplayName)
	assert.Equal(t, "RT002", entries[1].DeviceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_QueryError(t *testing.T) {
	db, mock, store := setupMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT device_id`).WillReturnError(sql.ErrConnDone)

	_, err := store.List(context.Background())
	require.Error(t, err)
}
