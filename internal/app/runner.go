package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"ytrunner/internal/account"
	"ytrunner/internal/engine"
	"ytrunner/internal/progress"
)

// Select returns the accounts named by ids, or every account when all is
// set.
func (s *Service) Select(ids []string, all bool) ([]account.Account, error) {
	if all {
		accounts := s.registry.Accounts()
		if len(accounts) == 0 {
			return nil, fmt.Errorf("no accounts configured in %s", s.registry.Path())
		}
		return accounts, nil
	}
	if len(ids) == 0 {
		return nil, errors.New("name an account or pass --all")
	}

	selected := make([]account.Account, 0, len(ids))
	for _, id := range lo.Uniq(ids) {
		acct, err := s.registry.Find(id)
		if err != nil {
			return nil, err
		}
		selected = append(selected, *acct)
	}
	return selected, nil
}

// RunAccount runs one cycle for acct while holding its lock.
func (s *Service) RunAccount(ctx context.Context, acct *account.Account) (*engine.Summary, error) {
	lock, err := progress.AcquireLock(s.cfg.State.Dir, acct.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release account lock", "account", acct.ID, "error", err)
		}
	}()

	return s.engine.Run(ctx, acct), nil
}

// RunAccounts runs the accounts one after another. Accounts that are
// locked by another run are skipped and reported in the returned error.
func (s *Service) RunAccounts(ctx context.Context, accounts []account.Account) ([]*engine.Summary, error) {
	var (
		summaries []*engine.Summary
		errs      []error
	)

	for i := range accounts {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		summary, err := s.RunAccount(ctx, &accounts[i])
		if err != nil {
			slog.Warn("Skipping account", "account", accounts[i].ID, "error", err)
			errs = append(errs, err)
			continue
		}
		summaries = append(summaries, summary)
	}

	return summaries, errors.Join(errs...)
}
