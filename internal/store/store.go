// Package store is the SQLite-backed durable state: the session key/value
// table and the quiz leaderboard.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/recycle-ai/recycle/internal/quiz"
	"github.com/recycle-ai/recycle/internal/session"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open creates or opens the database at path and initializes the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS quiz_results (
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		name TEXT NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percentage INTEGER NOT NULL,
		taken_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, category)
	);

	CREATE INDEX IF NOT EXISTS idx_quiz_results_rank ON quiz_results(percentage DESC, score DESC);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Get implements session.Storage.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Set implements session.Storage.
func (db *DB) Set(ctx context.Context, key string, value []byte) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := db.conn.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove implements session.Storage.
func (db *DB) Remove(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Record implements quiz.Leaderboard. Only a better result replaces the
// stored one for the same user and category.
func (db *DB) Record(ctx context.Context, r quiz.Result) error {
	query := `
	INSERT INTO quiz_results (user_id, category, name, score, total, percentage, taken_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, category) DO UPDATE SET
		name = excluded.name,
		score = excluded.score,
		total = excluded.total,
		percentage = excluded.percentage,
		taken_at = excluded.taken_at
	WHERE excluded.percentage > quiz_results.percentage
		OR (excluded.percentage = quiz_results.percentage AND excluded.score > quiz_results.score)
	`
	_, err := db.conn.ExecContext(ctx, query, r.UserID, r.Category, r.Name, r.Score, r.Total, r.Percentage, r.Date.UTC())
	if err != nil {
		return fmt.Errorf("record quiz result: %w", err)
	}
	return nil
}

// Top implements quiz.Leaderboard. An empty category ranks every category.
func (db *DB) Top(ctx context.Context, category string, limit int) ([]quiz.Result, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
	SELECT user_id, category, name, score, total, percentage, taken_at
	FROM quiz_results
	WHERE ? = '' OR category = ?
	ORDER BY percentage DESC, score DESC, taken_at ASC
	LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, category, category, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var out []quiz.Result
	for rows.Next() {
		var r quiz.Result
		if err := rows.Scan(&r.UserID, &r.Category, &r.Name, &r.Score, &r.Total, &r.Percentage, &r.Date); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var (
	_ session.Storage  = (*DB)(nil)
	_ quiz.Leaderboard = (*DB)(nil)
)
