package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL-backed durable Store for multi-host deployments
// where several service instances share one checkpoint database. Distinct
// threads append concurrently without interference; the composite unique
// key on (thread_id, step) enforces append-only history server-side.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore connects using a DSN like
// "user:pass@tcp(host:3306)/agents?parseTime=true" and runs migrations.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &MySQLStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS checkpoints (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		thread_id VARCHAR(255) NOT NULL,
		step INT NOT NULL,
		node VARCHAR(255) NOT NULL,
		state JSON NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uniq_thread_step (thread_id, step),
		KEY idx_thread (thread_id)
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

// PutStep appends a checkpoint; a duplicate (thread, step) surfaces as
// ErrDuplicateStep via the MySQL duplicate-entry error code.
func (s *MySQLStore) PutStep(ctx context.Context, threadID string, step int, node string, state map[string]any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO checkpoints (thread_id, step, node, state) VALUES (?, ?, ?, ?)",
		threadID, step, node, string(data))
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return fmt.Errorf("thread %q step %d: %w", threadID, step, ErrDuplicateStep)
		}
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// Latest returns the highest-step checkpoint for the thread.
func (s *MySQLStore) Latest(ctx context.Context, threadID string) (StepRecord, error) {
	r := s.db.QueryRowContext(ctx,
		"SELECT step, node, state FROM checkpoints WHERE thread_id = ? ORDER BY step DESC LIMIT 1",
		threadID)
	return scanRecord(r)
}

// History returns the thread's checkpoints in ascending step order.
func (s *MySQLStore) History(ctx context.Context, threadID string) ([]StepRecord, error) {
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

// Close releases the connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }
