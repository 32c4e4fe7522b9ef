package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

func TestOpen(t *testing.T) {
	rec := &statesync.Recorder{}
	s := NewStore(rec)

	require.True(t, s.Open(1))
	assert.False(t, s.Open(1))

	w, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.StartingSpiritCoin, w.SpiritCoin)
	assert.Zero(t, w.Faith)
	require.Len(t, rec.Wallets, 1)
	assert.Equal(t, model.PlayerID(1), rec.Wallets[0].Player)
}

func TestAddSpend(t *testing.T) {
	s := NewStore(nil)
	require.True(t, s.Open(1))

	assert.True(t, s.Add(1, Faith, 150))
	assert.False(t, s.Add(1, Faith, 0))
	assert.False(t, s.Add(2, Faith, 10), "unknown player")

	assert.False(t, s.Spend(1, Faith, 151))
	assert.Equal(t, 150, s.Balance(1, Faith))

	assert.True(t, s.Spend(1, Faith, 100))
	assert.Equal(t, 50, s.Balance(1, Faith))

	assert.True(t, s.Spend(1, SpiritCoin, 200))
	assert.Zero(t, s.Balance(1, SpiritCoin))
	assert.False(t, s.Spend(1, SpiritCoin, 1))
	assert.False(t, s.Spend(1, SpiritCoin, -5))
}

func TestRestoreClampsNegative(t *testing.T) {
	s := NewStore(nil)
	s.Restore(3, model.Wallet{SpiritCoin: -10, Faith: 70})

	w, ok := s.Get(3)
	require.True(t, ok)
	assert.Zero(t, w.SpiritCoin)
	assert.Equal(t, 70, w.Faith)
}

func TestRemove(t *testing.T) {
	s := NewStore(nil)
	s.Open(1)
	s.Remove(1)

	_, ok := s.Get(1)
	assert.False(t, ok)
	assert.False(t, s.Republish(1))
	assert.Zero(t, s.Balance(1, SpiritCoin))
}
