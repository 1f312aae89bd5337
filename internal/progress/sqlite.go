package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps cursors in a progress table and fingerprints in their
// own table; a commit updates both inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open progress database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init progress schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

var schema = []string{
	`PRAGMA journal_mode = WAL`,
	`CREATE TABLE IF NOT EXISTS progress (
		account_id  TEXT PRIMARY KEY,
		video       INTEGER NOT NULL DEFAULT 0,
		title       INTEGER NOT NULL DEFAULT 0,
		description INTEGER NOT NULL DEFAULT 0,
		thumbnail   INTEGER NOT NULL DEFAULT 0,
		tags        INTEGER NOT NULL DEFAULT 0,
		last_run    TEXT,
		updated_at  TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS fingerprints (
		account_id  TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		PRIMARY KEY (account_id, fingerprint)
	)`,
}

func initSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, accountID string) (*Record, error) {
	if err := checkAccountID(accountID); err != nil {
		return nil, err
	}

	rec := newRecord(accountID)

	var lastRun, updatedAt sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT video, title, description, thumbnail, tags, last_run, updated_at
		 FROM progress WHERE account_id = ?`, accountID,
	).Scan(&rec.Cursors.Video, &rec.Cursors.Title, &rec.Cursors.Description,
		&rec.Cursors.Thumbnail, &rec.Cursors.Tags, &lastRun, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for %s: %w", accountID, err)
	}

	if lastRun.Valid && lastRun.String != "" {
		var run Run
		if err := json.Unmarshal([]byte(lastRun.String), &run); err != nil {
			return nil, fmt.Errorf("failed to parse last run for %s: %w", accountID, err)
		}
		rec.LastRun = &run
	}
	if updatedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, updatedAt.String); err == nil {
			rec.UpdatedAt = t
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint FROM fingerprints WHERE account_id = ? ORDER BY rowid`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to read fingerprints for %s: %w", accountID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		rec.Fingerprints = append(rec.Fingerprints, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fingerprints for %s: %w", accountID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, accountID string, c Commit) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}

	runJSON, err := json.Marshal(c.Run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	at := c.Run.At.UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO progress (account_id, video, title, description, thumbnail, tags, last_run, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET
			video       = MAX(video, excluded.video),
			title       = MAX(title, excluded.title),
			description = MAX(description, excluded.description),
			thumbnail   = MAX(thumbnail, excluded.thumbnail),
			tags        = MAX(tags, excluded.tags),
			last_run    = excluded.last_run,
			updated_at  = excluded.updated_at`,
		accountID, c.Cursors.Video, c.Cursors.Title, c.Cursors.Description,
		c.Cursors.Thumbnail, c.Cursors.Tags, string(runJSON), at,
	)
	if err != nil {
		return fmt.Errorf("failed to write cursors: %w", err)
	}

	if c.Fingerprint != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO fingerprints (account_id, fingerprint, created_at) VALUES (?, ?, ?)`,
			accountID, c.Fingerprint, at,
		)
		if err != nil {
			return fmt.Errorf("failed to write fingerprint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, accountID string, run Run) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}

	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress (account_id, last_run, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET
			last_run   = excluded.last_run,
			updated_at = excluded.updated_at`,
		accountID, string(runJSON), run.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s: %w", accountID, err)
	}
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context, accountID string) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fingerprints WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("failed to remove fingerprints for %s: %w", accountID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("failed to remove progress for %s: %w", accountID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
