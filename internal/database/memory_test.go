package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ReadsSeeCommittedStateOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.Set("p", []byte("x")))
		_, ok, err := tx.Get(ctx, "p")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "orgs/acme/verticalBuildLocks/gym", LockPath("acme", "gym"))
	assert.Equal(t, "orgs/acme/verticalBuildReceipts/j1", ReceiptPath("acme", "j1"))
	assert.Equal(t, "orgs/acme/verticalBuildReceipts/j1/transitions/t1", TransitionPath("acme", "j1", "t1"))
}

func TestNewStore_UnknownProvider(t *testing.T) {
	_, err := NewStore(context.Background(), Config{Provider: "mongo"})
	assert.Error(t, err)

	s, err := NewStore(context.Background(), Config{Provider: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
