package account

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

var ErrUnknownAccount = errors.New("unknown account")

type file struct {
	Accounts []Account `yaml:"accounts"`
}

// Registry is the set of accounts read from one accounts file. It is read
// once per invocation and not shared between runs.
type Registry struct {
	path     string
	accounts []Account
}

// Load reads and validates path. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	reg := &Registry{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return reg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(f.Accounts))
	for i := range f.Accounts {
		acct := &f.Accounts[i]
		if err := acct.Validate(); err != nil {
			return nil, err
		}
		if seen[acct.ID] {
			return nil, fmt.Errorf("duplicate account id %q", acct.ID)
		}
		seen[acct.ID] = true
	}

	reg.accounts = f.Accounts
	return reg, nil
}

func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) Accounts() []Account {
	return r.accounts
}

func (r *Registry) IDs() []string {
	return lo.Map(r.accounts, func(a Account, _ int) string { return a.ID })
}

func (r *Registry) Find(id string) (*Account, error) {
	acct, ok := lo.Find(r.accounts, func(a Account) bool { return a.ID == id })
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return &acct, nil
}

// Add validates acct and appends it; Save persists the change.
func (r *Registry) Add(acct Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	if lo.ContainsBy(r.accounts, func(a Account) bool { return a.ID == acct.ID }) {
		return fmt.Errorf("account %q already exists", acct.ID)
	}
	r.accounts = append(r.accounts, acct)
	return nil
}

func (r *Registry) Save() error {
	data, err := yaml.Marshal(file{Accounts: r.accounts})
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create accounts directory: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write accounts: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace accounts: %w", err)
	}
	return nil
}
