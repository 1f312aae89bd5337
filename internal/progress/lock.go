package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrLocked = errors.New("account is locked by another run")

// Lock guards one account against concurrent runs across processes.
type Lock struct {
	dir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

func AcquireLock(stateDir, accountID string) (Lock, error) {
	if err := checkAccountID(accountID); err != nil {
		return Lock{}, err
	}

	locksDir := filepath.Join(stateDir, "locks")
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return Lock{}, fmt.Errorf("failed to create locks directory: %w", err)
	}

	dir := filepath.Join(locksDir, accountID+".lock")
	err := os.Mkdir(dir, 0o755)
	if os.IsExist(err) {
		owner, ok := readOwner(dir)
		if ok && owner.stale() {
			slog.Warn("Reclaiming stale lock", "account", accountID, "pid", owner.PID, "created_at", owner.CreatedAt)
			if err := removeLock(dir); err != nil {
				return Lock{}, err
			}
			err = os.Mkdir(dir, 0o755)
		}
	}
	if err != nil {
		if os.IsExist(err) {
			if owner, ok := readOwner(dir); ok {
				return Lock{}, fmt.Errorf("%w: %s (pid=%d created_at=%s host=%s)",
					ErrLocked, accountID, owner.PID, owner.CreatedAt, owner.Hostname)
			}
			return Lock{}, fmt.Errorf("%w: %s", ErrLocked, accountID)
		}
		return Lock{}, fmt.Errorf("failed to acquire lock for %s: %w", accountID, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostname(),
	}
	data, err := json.Marshal(owner)
	if err == nil {
		err = writeFileAtomic(filepath.Join(dir, "owner.json"), data)
	}
	if err != nil {
		_ = os.Remove(dir)
		return Lock{}, fmt.Errorf("failed to write lock owner for %s: %w", accountID, err)
	}

	return Lock{dir: dir}, nil
}

func (l Lock) Release() error {
	if l.dir == "" {
		return nil
	}
	return removeLock(l.dir)
}

// BreakLock removes the lock of an account regardless of its owner.
func BreakLock(stateDir, accountID string) error {
	if err := checkAccountID(accountID); err != nil {
		return err
	}
	return removeLock(filepath.Join(stateDir, "locks", accountID+".lock"))
}

func removeLock(dir string) error {
	_ = os.Remove(filepath.Join(dir, "owner.json"))
	if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock %s: %w", dir, err)
	}
	return nil
}

func readOwner(dir string) (lockOwner, bool) {
	var owner lockOwner
	data, err := os.ReadFile(filepath.Join(dir, "owner.json"))
	if err != nil || json.Unmarshal(data, &owner) != nil || owner.PID <= 0 {
		return lockOwner{}, false
	}
	return owner, true
}

// stale reports whether the owner ran on this host and has exited.
// Locks held from other hosts are never reclaimed.
func (o lockOwner) stale() bool {
	return o.Hostname == hostname() && !processAlive(o.PID)
}

func hostname() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "unknown"
	}
	return strings.TrimSpace(host)
}
