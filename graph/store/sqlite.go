package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file durable Store.
//
// Suited to development and single-process deployments: zero setup, WAL
// mode for concurrent readers, transactional writes. For multi-host
// deployments use MySQLStore instead.
//
// State snapshots are stored as JSON text; the UNIQUE(thread_id, step)
// constraint enforces the append-only contract at the database level.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the database at path and
// runs migrations. Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite supports a single writer; keep one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		thread_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		node TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(thread_id, step)
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, step)"); err != nil {
		return fmt.Errorf("create checkpoint index: %w", err)
	}
	return nil
}

// PutStep appends a checkpoint. The unique constraint turns a duplicate
// (thread, step) write into ErrDuplicateStep.
func (s *SQLiteStore) PutStep(ctx context.Context, threadID string, step int, node string, state map[string]any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO checkpoints (thread_id, step, node, state) VALUES (?, ?, ?, ?)",
		threadID, step, node, string(data))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("thread %q step %d: %w", threadID, step, ErrDuplicateStep)
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Latest returns the highest-step checkpoint for the thread.
func (s *SQLiteStore) Latest(ctx context.Context, threadID string) (StepRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT step, node, state FROM checkpoints WHERE thread_id = ? ORDER BY step DESC LIMIT 1",
		threadID)
	return scanRecord(row)
}

// History returns the thread's checkpoints in ascending step order.
func (s *SQLiteStore) History(ctx context.Context, threadID string) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT step, node, state FROM checkpoints WHERE thread_id = ? ORDER BY step ASC",
		threadID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []StepRecord
	for rows.Next() {
		var rec StepRecord
		var data string
		if err := rows.Scan(&rec.Step, &rec.Node, &data); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		records = append(records, rec)
	}
	if records == nil {
		records = []StepRecord{}
	}
	return records, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// isUniqueViolation detects the sqlite unique-constraint error without
// depending on driver-internal error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

type row interface {
	Scan(dest ...any) error
}

func scanRecord(r row) (StepRecord, error) {
	var rec StepRecord
	var data string
	if err := r.Scan(&rec.Step, &rec.Node, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StepRecord{}, ErrNotFound
		}
		return StepRecord{}, fmt.Errorf("scan checkpoint: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &rec.State); err != nil {
		return StepRecord{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return rec, nil
}
