// Package kv pkg/kv/sqlite.go provides the SQLite backend of the status table.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// SQL statements for database initialization.
	createTablesSQL = `
	CREATE TABLE IF NOT EXISTS entities (
		partition_key TEXT NOT NULL,
		row_key TEXT NOT NULL,
		data TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (partition_key, row_key)
	);

	CREATE INDEX IF NOT EXISTS idx_entities_partition
		ON entities(partition_key);
	`

	upsertSQL = `
	INSERT INTO entities (partition_key, row_key, data, version, updated_at)
	VALUES (?, ?, ?, 1, ?)
	ON CONFLICT(partition_key, row_key) DO UPDATE SET
		data = excluded.data,
		version = entities.version + 1,
		updated_at = excluded.updated_at
	RETURNING version
	`

	insertSQL = `
	INSERT INTO entities (partition_key, row_key, data, version, updated_at)
	VALUES (?, ?, ?, 1, ?)
	ON CONFLICT(partition_key, row_key) DO NOTHING
	`

	updateSQL = `
	UPDATE entities
	SET data = ?, version = version + 1, updated_at = ?
	WHERE partition_key = ? AND row_key = ? AND version = ?
	`

	selectSQL = `
	SELECT partition_key, row_key, data, version, updated_at
	FROM entities
	WHERE partition_key = ? AND row_key = ?
	`

	listSQL = `
	SELECT partition_key, row_key, data, version, updated_at
	FROM entities
	WHERE partition_key = ?
	`
)

// SQLiteStore implements Store on a single SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath and initializes the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("%w: %w", ErrFailedToEnableWAL, err)
	}

	s := &SQLiteStore{db: sqlDB, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("%w: %w", ErrFailedToInit, err)
	}

	return s, nil
}

// initSchema creates the database tables if they don't exist.
func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(createTablesSQL)

	return err
}

func (s *SQLiteStore) Get(ctx context.Context, partition, row string) (*Entity, error) {
	var e Entity

	var data string

	err := s.db.QueryRowContext(ctx, selectSQL, partition, row).Scan(
		&e.PartitionKey,
		&e.RowKey,
		&data,
		&e.Version,
		&e.Timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w entity %s/%s: %w", ErrFailedToQuery, partition, row, err)
	}

	e.Data = []byte(data)

	return &e, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	now := s.now().UTC()

	var version int64
	if err := s.db.QueryRowContext(ctx, upsertSQL,
		e.PartitionKey, e.RowKey, string(e.Data), now).Scan(&version); err != nil {
		return fmt.Errorf("%w upsert %s/%s: %w", ErrFailedToWrite, e.PartitionKey, e.RowKey, err)
	}

	e.Version = version
	e.Timestamp = now

	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	now := s.now().UTC()

	result, err := s.db.ExecContext(ctx, insertSQL, e.PartitionKey, e.RowKey, string(e.Data), now)
	if err != nil {
		return fmt.Errorf("%w insert %s/%s: %w", ErrFailedToWrite, e.PartitionKey, e.RowKey, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	e.Version = 1
	e.Timestamp = now

	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	now := s.now().UTC()

	result, err := s.db.ExecContext(ctx, updateSQL,
		string(e.Data), now, e.PartitionKey, e.RowKey, e.Version)
	if err != nil {
		return fmt.Errorf("%w update %s/%s: %w", ErrFailedToWrite, e.PartitionKey, e.RowKey, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the row is gone or someone else bumped the version.
		if _, err := s.Get(ctx, e.PartitionKey, e.RowKey); err != nil {
			return err
		}

		return ErrConflict
	}

	e.Version++
	e.Timestamp = now

	return nil
}

func (s *SQLiteStore) List(ctx context.Context, partition string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, listSQL, partition)
	if err != nil {
		return nil, fmt.Errorf("%w partition %s: %w", ErrFailedToQuery, partition, err)
	}
	defer closeRows(rows)

	var entities []Entity

	for rows.Next() {
		var e Entity

		var data string

		if err := rows.Scan(&e.PartitionKey, &e.RowKey, &data, &e.Version, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("%w entity row: %w", ErrFailedToScan, err)
		}

		e.Data = []byte(data)
		entities = append(entities, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w partition %s: %w", ErrFailedToQuery, partition, err)
	}

	return entities, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close rows")
	}
}
