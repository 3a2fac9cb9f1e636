package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateRejectsEmpty(t *testing.T) {
	_, err := NewMemoryStore().Create(context.Background(), Order{AccountID: "a"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemoryStoreListing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	tick := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	items := []LineItem{{ProductID: "p1", Quantity: 2}}
	first, err := s.Create(ctx, Order{AccountID: "a", Items: items})
	require.NoError(t, err)
	_, err = s.Create(ctx, Order{AccountID: "b", Items: items})
	require.NoError(t, err)
	_, err = s.Create(ctx, Order{AccountID: "a", Items: []LineItem{{ProductID: "p2", Quantity: 1}}})
	require.NoError(t, err)

	items[0].Quantity = 99

	own, err := s.ListByAccount(ctx, "a")
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, first.ID, own[0].ID)
	assert.Equal(t, 2, own[0].Items[0].Quantity)

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ListByAccount(ctx, "zzz")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
