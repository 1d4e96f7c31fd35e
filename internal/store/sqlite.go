package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"erdemo.org/responder-simulator/internal/logging"
	"erdemo.org/responder-simulator/internal/models"
)

// SQLiteStore persists missions in a local SQLite file so a single instance survives restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" in tests.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// a :memory: database lives and dies with its connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS responder_locations (
			mission_id TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating responder_locations table: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger.With(slog.String("component", "store"))}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rl *models.ResponderLocation) (string, error) {
	b, err := encode(rl)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO responder_locations (mission_id, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(mission_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		rl.Key(), b)
	if err != nil {
		return "", fmt.Errorf("storing responder location %s: %w", rl.Key(), err)
	}
	return rl.Key(), nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*models.ResponderLocation, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM responder_locations WHERE mission_id = ?`, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading responder location %s: %w", key, err)
	}
	return decode(key, b)
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM responder_locations WHERE mission_id = ?`, key)
	if err != nil {
		return fmt.Errorf("removing responder location %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) (keys []string, err error) {
	rows, err := s.db.QueryContext(ctx, `SELECT mission_id FROM responder_locations ORDER BY mission_id`)
	if err != nil {
		return nil, fmt.Errorf("listing responder locations: %w", err)
	}
	defer logging.HandleDeferredError(&err, rows.Close, s.logger, "close_rows")

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer logging.SafeRollbackWithLogging(tx, s.logger, "clear_store")

	if _, err := tx.ExecContext(ctx, `DELETE FROM responder_locations`); err != nil {
		return fmt.Errorf("clearing responder locations: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
