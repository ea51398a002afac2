package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/treasury/account"
)

// OpenAccount registers owner with zero balances. Opening an existing
// account returns it unchanged.
func (t *Treasury) OpenAccount(ctx context.Context, owner string) (*account.Account, error) {
	if owner == "" {
		return nil, ValidationError{Field: "owner", Message: "must not be empty"}
	}

	unlock := t.locks.lock(owner)
	defer unlock()

	a, opened, err := t.loadForUpdate(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !opened {
		return a, nil
	}
	if err := t.store.PutAccount(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: put account: %w", ErrPersistence, err)
	}

	t.logger.Debug("account opened", "owner", owner)
	t.plugins.EmitAccountOpened(ctx, a)

	return a, nil
}

// GetAccount returns the owner's account. Soft-deleted accounts are returned
// with DeletedAt set.
func (t *Treasury) GetAccount(ctx context.Context, owner string) (*account.Account, error) {
	unlock := t.locks.rlock(owner)
	defer unlock()

	return t.store.GetAccount(ctx, owner)
}

// ListAccounts pages through accounts ordered by owner id.
func (t *Treasury) ListAccounts(ctx context.Context, opts account.ListOpts) ([]*account.Account, error) {
	return t.store.ListAccounts(ctx, opts)
}

// CountAccounts returns the number of live accounts.
func (t *Treasury) CountAccounts(ctx context.Context) (int64, error) {
	return t.store.CountAccounts(ctx)
}

// DeleteAccount soft deletes the owner's account. Its traces are kept and
// further mutations fail with ErrAccountDeleted.
func (t *Treasury) DeleteAccount(ctx context.Context, owner string) error {
	unlock := t.locks.lock(owner)
	defer unlock()

	a, err := t.store.GetAccount(ctx, owner)
	if err != nil {
		return err
	}
	if a.IsDeleted() {
		return nil
	}
	if err := t.store.DeleteAccount(ctx, owner, t.now()); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("%w: delete account: %w", ErrPersistence, err)
	}

	t.plugins.EmitAccountDeleted(ctx, owner)
	return nil
}
