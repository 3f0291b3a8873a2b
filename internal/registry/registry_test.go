package registry

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"king-tiles-orchestrator/internal/model"
)

func newTestSession(id uint64) *model.Session {
	return model.NewSession(id, solana.NewWallet().PublicKey(), 8, 2, 1000, 10)
}

func TestRegistry_PutRejectsDuplicateID(t *testing.T) {
	r := New()

	first := newTestSession(42)
	require.True(t, r.Put(first))

	// Same id, different object: must not replace the live session.
	assert.False(t, r.Put(newTestSession(42)))
	assert.Same(t, first, r.Get(42))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_RemoveReturnsLiveSession(t *testing.T) {
	r := New()
	sess := newTestSession(7)
	require.True(t, r.Put(sess))

	removed := r.Remove(7)
	assert.Same(t, sess, removed)
	assert.Nil(t, r.Get(7))
	assert.Equal(t, 0, r.Len())

	// Removing an absent id is a nil no-op.
	assert.Nil(t, r.Remove(7))
}

func TestRegistry_ListOrderedByID(t *testing.T) {
	r := New()
	for _, id := range []uint64{30, 10, 20} {
		require.True(t, r.Put(newTestSession(id)))
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, uint64(10), list[0].ID)
	assert.Equal(t, uint64(20), list[1].ID)
	assert.Equal(t, uint64(30), list[2].ID)
}

func TestRegistry_ReinsertAfterRemove(t *testing.T) {
	r := New()
	require.True(t, r.Put(newTestSession(1)))
	r.Remove(1)
	assert.True(t, r.Put(newTestSession(1)))
}
