package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutateRetriesOnStaleCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	acc, err := s.Create(ctx, Account{Handle: "alice1", Email: "alice@example.com"})
	require.NoError(t, err)

	// Another writer bumps the version first.
	other := acc.Clone()
	other.Tokens = []string{"t1"}
	_, err = s.Update(ctx, other)
	require.NoError(t, err)

	calls := 0
	saved, err := Mutate(ctx, s, acc, 3, func(a *Account) error {
		calls++
		a.Tokens = append(a.Tokens, "t2")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"t1", "t2"}, saved.Tokens)
	assert.Equal(t, int64(3), saved.Version)
}

func TestMutateStopsOnCallbackError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	acc, err := s.Create(ctx, Account{Handle: "alice1", Email: "alice@example.com"})
	require.NoError(t, err)

	stop := errors.New("stop")
	_, err = Mutate(ctx, s, acc, 3, func(*Account) error { return stop })
	assert.ErrorIs(t, err, stop)

	got, err := s.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}

type conflictingStore struct {
	*MemoryStore
	updates int
}

func (c *conflictingStore) Update(context.Context, Account) (Account, error) {
	c.updates++
	return Account{}, ErrVersionConflict
}

func TestMutateGivesUpAfterAttempts(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	acc, err := mem.Create(ctx, Account{Handle: "alice1", Email: "alice@example.com"})
	require.NoError(t, err)

	s := &conflictingStore{MemoryStore: mem}
	_, err = Mutate(ctx, s, acc, 3, func(*Account) error { return nil })
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, s.updates)
}
