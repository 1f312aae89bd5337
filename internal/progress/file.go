package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one indented JSON document per account. Writes go to a
// temporary file in the same directory which is then renamed over the
// record, so readers see either the old or the new record.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(accountID string) string {
	return filepath.Join(s.dir, accountID+".json")
}

func (s *FileStore) Load(_ context.Context, accountID string) (*Record, error) {
	if err := checkAccountID(accountID); err != nil {
		return nil, err
	}
	return s.read(accountID)
}

func (s *FileStore) read(accountID string) (*Record, error) {
	data, err := os.ReadFile(s.path(accountID))
	if errors.Is(err, os.ErrNotExist) {
		return newRecord(accountID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for %s: %w", accountID, err)
	}

	rec := newRecord(accountID)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to parse progress for %s: %w", accountID, err)
	}
	if rec.Fingerprints == nil {
		rec.Fingerprints = []string{}
	}
	rec.AccountID = accountID
	return rec, nil
}

func (s *FileStore) Commit(_ context.Context, accountID string, c Commit) error {
	return s.update(accountID, func(rec *Record) { rec.apply(c) })
}

func (s *FileStore) RecordOutcome(_ context.Context, accountID string, run Run) error {
	return s.update(accountID, func(rec *Record) { rec.recordRun(run) })
}

func (s *FileStore) update(accountID string, fn func(*Record)) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}

	rec, err := s.read(accountID)
	if err != nil {
		return err
	}
	fn(rec)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	data = append(data, '\n')

	return writeFileAtomic(s.path(accountID), data)
}

func (s *FileStore) Reset(_ context.Context, accountID string) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}
	if err := os.Remove(s.path(accountID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove progress for %s: %w", accountID, err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".progress-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}

	// Persist the rename itself; not every platform supports syncing a
	// directory, so failures here are ignored.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
