package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore keeps each record as a JSON value in an embedded pebble
// database. Pebble holds an exclusive lock on its directory, so only one
// process can open the store at a time.
type PebbleStore struct {
	mu sync.Mutex
	db *pebble.DB
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open progress store: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func pebbleKey(accountID string) []byte {
	return []byte("progress/" + accountID)
}

func (s *PebbleStore) Load(_ context.Context, accountID string) (*Record, error) {
	if err := checkAccountID(accountID); err != nil {
		return nil, err
	}
	return s.get(accountID)
}

func (s *PebbleStore) get(accountID string) (*Record, error) {
	data, closer, err := s.db.Get(pebbleKey(accountID))
	if errors.Is(err, pebble.ErrNotFound) {
		return newRecord(accountID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress for %s: %w", accountID, err)
	}
	defer func() { _ = closer.Close() }()

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

func (s *PebbleStore) Commit(_ context.Context, accountID string, c Commit) error {
	return s.update(accountID, func(rec *Record) { rec.apply(c) })
}

func (s *PebbleStore) RecordOutcome(_ context.Context, accountID string, run Run) error {
	return s.update(accountID, func(rec *Record) { rec.recordRun(run) })
}

func (s *PebbleStore) update(accountID string, fn func(*Record)) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.get(accountID)
	if err != nil {
		return err
	}
	fn(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	batch := s.db.NewBatch()
	defer func() { _ = batch.Close() }()

	if err := batch.Set(pebbleKey(accountID), data, nil); err != nil {
		return fmt.Errorf("failed to stage progress: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

func (s *PebbleStore) Reset(_ context.Context, accountID string) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Delete(pebbleKey(accountID), pebble.Sync); err != nil {
		return fmt.Errorf("failed to remove progress for %s: %w", accountID, err)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
