package account

import (
	"context"
	"errors"
)

// DefaultAttempts bounds how often Mutate retries after a version conflict.
const DefaultAttempts = 5

// Mutate applies fn to a copy of acc and stores it. On ErrVersionConflict the
// account is reloaded and fn is applied again to the fresh copy, up to
// attempts times. fn must only depend on the account it is given.
func Mutate(ctx context.Context, store Store, acc Account, attempts int, fn func(*Account) error) (Account, error) {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	cur := acc
	for i := 0; ; i++ {
		next := cur.Clone()
		if err := fn(&next); err != nil {
			return Account{}, err
		}
		saved, err := store.Update(ctx, next)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) || i+1 >= attempts {
			return Account{}, err
		}
		if err := ctx.Err(); err != nil {
			return Account{}, err
		}
		cur, err = store.GetByID(ctx, acc.ID)
		if err != nil {
			return Account{}, err
		}
	}
}
