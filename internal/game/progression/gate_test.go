package progression

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/game/attribute"
	"github.com/udisondev/ascension/internal/game/economy"
	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

const (
	player model.PlayerID    = 0
	hero   model.CombatantID = 100
)

type fixture struct {
	gate    *Gate
	attrs   *attribute.Model
	wallets *economy.Store
	rec     *statesync.Recorder
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	tables, err := data.LoadDefaultTables()
	require.NoError(t, err)

	rec := &statesync.Recorder{}
	attrs := attribute.New(rec)
	tmpl, ok := tables.Hero("npc_dota_hero_juggernaut")
	require.True(t, ok)
	_, ok = attrs.Initialize(hero, player, tmpl)
	require.True(t, ok)

	wallets := economy.NewStore(rec)
	require.True(t, wallets.Open(player))

	g := New(tables, attrs, wallets, rec, opts)
	require.True(t, g.InitPlayer(player))
	return &fixture{gate: g, attrs: attrs, wallets: wallets, rec: rec}
}

func (f *fixture) reachCap(t *testing.T) {
	t.Helper()
	f.attrs.AddCustomExp(hero, 1_000_000)
	s, _ := f.attrs.Snapshot(hero)
	require.Equal(t, data.MaxLevelForRank(s.Rank), s.DisplayLevel)
}

// Scenario C: rank 0, level 10, 100 faith.
func TestAttemptRankUpScenarioC(t *testing.T) {
	f := newFixture(t, Options{})
	f.reachCap(t)
	require.True(t, f.wallets.Add(player, economy.Faith, 100))

	res := f.gate.AttemptRankUp(player)
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "突破成功！晋升觉醒", res.Message)
	assert.Equal(t, 1.0, f.attrs.GetStat(hero, model.FieldRank))
	assert.Zero(t, f.wallets.Balance(player, economy.Faith))

	last, ok := f.rec.LastRankUp()
	require.True(t, ok)
	assert.True(t, last.Success)
	assert.Equal(t, 1, last.NewRank)
	assert.Equal(t, "觉醒", last.RankName)

	// cost is now 200
	res = f.gate.AttemptRankUp(player)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonInsufficientCurrency, res.Reason)
	assert.Equal(t, "信仰不足 (需要200)", res.Message)
	assert.Equal(t, 1.0, f.attrs.GetStat(hero, model.FieldRank))
}

func TestAttemptRankUpNeedsLevel(t *testing.T) {
	f := newFixture(t, Options{})
	require.True(t, f.wallets.Add(player, economy.Faith, 1000))

	res := f.gate.AttemptRankUp(player)
	assert.Equal(t, ReasonNeedsLevel, res.Reason)
	assert.Equal(t, "必须达到10级才能突破", res.Message)
	assert.Equal(t, 1000, f.wallets.Balance(player, economy.Faith))

	last, _ := f.rec.LastRankUp()
	assert.False(t, last.Success)
	assert.Equal(t, ReasonNeedsLevel, last.Reason)
	assert.Zero(t, last.NewRank)
}

func TestAttemptRankUpMaxRank(t *testing.T) {
	f := newFixture(t, Options{})
	require.True(t, f.wallets.Add(player, economy.Faith, 100_000))

	for r := 0; r < model.MaxRank; r++ {
		f.reachCap(t)
		require.True(t, f.gate.AttemptRankUp(player).OK, "rank %d", r)
	}

	res := f.gate.AttemptRankUp(player)
	assert.Equal(t, ReasonMaxRank, res.Reason)
	assert.Equal(t, "已达最高境界", res.Message)
	assert.Equal(t, 100_000-(100+200+300+400+500), f.wallets.Balance(player, economy.Faith))
}

func TestAttemptRankUpWithoutHero(t *testing.T) {
	f := newFixture(t, Options{})
	res := f.gate.AttemptRankUp(7)
	assert.Equal(t, ReasonNoHero, res.Reason)
}

func TestRejectionIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	before, _ := f.attrs.Snapshot(hero)
	wallet, _ := f.wallets.Get(player)

	for i := 0; i < 3; i++ {
		assert.False(t, f.gate.AttemptRankUp(player).OK)
		assert.False(t, f.gate.AttemptTierBreakthrough(player, 2).OK)
	}

	after, _ := f.attrs.Snapshot(hero)
	assert.Equal(t, before, after)
	w, _ := f.wallets.Get(player)
	assert.Equal(t, wallet, w)
	assert.Equal(t, model.NewShopProgressionState(), f.gate.State(player))
}

// Scenario D: tier 1 with 7 slots bought.
func TestAttemptTierBreakthroughScenarioD(t *testing.T) {
	f := newFixture(t, Options{})
	for i := 0; i < 7; i++ {
		require.True(t, f.gate.PurchaseSlot(player))
	}

	res := f.gate.AttemptTierBreakthrough(player, 2)
	assert.False(t, res.OK)
	assert.Equal(t, ReasonSlotsIncomplete, res.Reason)
	assert.Equal(t, "需购买全部8个槽位 (7/8)", res.Message)

	require.True(t, f.gate.PurchaseSlot(player))
	res = f.gate.AttemptTierBreakthrough(player, 2)
	require.True(t, res.OK, res.Message)

	s := f.gate.State(player)
	assert.Equal(t, 2, s.CurrentTier)
	assert.Zero(t, s.SlotsPurchased)
	assert.Zero(t, s.PurchasedMask())

	last, ok := f.rec.LastBreakthrough()
	require.True(t, ok)
	assert.True(t, last.Success)
	assert.Equal(t, "觉醒境", last.TierName)
}

func TestAttemptTierBreakthroughRejections(t *testing.T) {
	f := newFixture(t, Options{})
	fill := func() {
		for f.gate.PurchaseSlot(player) {
		}
	}

	res := f.gate.AttemptTierBreakthrough(player, 3)
	assert.Equal(t, ReasonInvalidTarget, res.Reason)
	assert.Equal(t, "无效的突破目标", res.Message)

	fill()
	require.True(t, f.gate.AttemptTierBreakthrough(player, 2).OK)
	fill()

	// rank 0 allows tier 2 at most
	res = f.gate.AttemptTierBreakthrough(player, 3)
	assert.Equal(t, ReasonNeedsHigherRank, res.Reason)
	assert.Equal(t, "需提升阶位", res.Message)
	assert.Equal(t, 2, f.gate.State(player).CurrentTier)

	last, _ := f.rec.LastBreakthrough()
	assert.False(t, last.Success)
	assert.Equal(t, 2, last.NewTier)
}

func TestPurchaseSlot(t *testing.T) {
	f := newFixture(t, Options{})

	for i := 0; i < model.SlotsPerTier; i++ {
		require.True(t, f.gate.PurchaseSlot(player))
	}
	assert.False(t, f.gate.PurchaseSlot(player), "no effect beyond 8")
	assert.Equal(t, model.SlotsPerTier, f.gate.State(player).SlotsPurchased)

	assert.False(t, f.gate.PurchaseSlotAt(player, -1))
	assert.False(t, f.gate.PurchaseSlotAt(player, model.SlotsPerTier))
	assert.False(t, f.gate.PurchaseSlotAt(player, 3))
}

func TestBuySlot(t *testing.T) {
	f := newFixture(t, Options{})
	martial := f.attrs.GetStat(hero, model.FieldMartial)

	res := f.gate.BuySlot(player, 1, "martial")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, martial+5, f.attrs.GetStat(hero, model.FieldMartial))
	assert.Zero(t, f.wallets.Balance(player, economy.SpiritCoin))
	assert.True(t, f.gate.State(player).Purchased[1])

	res = f.gate.BuySlot(player, 1, "")
	assert.Equal(t, ReasonAlreadyPurchased, res.Reason)

	res = f.gate.BuySlot(player, 2, "")
	assert.Equal(t, ReasonInsufficientCurrency, res.Reason)
	assert.Equal(t, "灵石不足 (需要200)", res.Message)
	assert.False(t, f.gate.State(player).Purchased[2])

	require.True(t, f.wallets.Add(player, economy.SpiritCoin, 1000))
	assert.Equal(t, ReasonStatMismatch, f.gate.BuySlot(player, 2, "martial").Reason)
	assert.Equal(t, ReasonInvalidSlot, f.gate.BuySlot(player, 8, "").Reason)
	assert.Equal(t, 1000, f.wallets.Balance(player, economy.SpiritCoin))
}

// rejectingAttrs refuses every stat change.
type rejectingAttrs struct {
	*attribute.Model
}

func (rejectingAttrs) AddStat(model.CombatantID, model.Field, float64) bool { return false }

func TestBuySlotRefundsRejectedStat(t *testing.T) {
	f := newFixture(t, Options{})
	g := New(f.gate.tables, rejectingAttrs{f.attrs}, f.wallets, f.rec, Options{})
	require.True(t, g.InitPlayer(player))
	martial := f.attrs.GetStat(hero, model.FieldMartial)
	coin := f.wallets.Balance(player, economy.SpiritCoin)

	res := g.BuySlot(player, 1, "martial")
	assert.False(t, res.OK)
	assert.Equal(t, ReasonStatRejected, res.Reason)
	assert.Equal(t, coin, f.wallets.Balance(player, economy.SpiritCoin))
	assert.Equal(t, martial, f.attrs.GetStat(hero, model.FieldMartial))
	assert.False(t, g.State(player).Purchased[1])
}

func TestAutoBreakthrough(t *testing.T) {
	f := newFixture(t, Options{AutoBreakthrough: true})

	for i := 0; i < model.SlotsPerTier; i++ {
		require.True(t, f.gate.PurchaseSlot(player))
	}
	assert.Equal(t, 2, f.gate.State(player).CurrentTier, "8th slot breaks through")

	for i := 0; i < model.SlotsPerTier; i++ {
		require.True(t, f.gate.PurchaseSlot(player))
	}
	s := f.gate.State(player)
	assert.Equal(t, 2, s.CurrentTier, "capped by rank")
	assert.Equal(t, model.SlotsPerTier, s.SlotsPurchased)
	last, _ := f.rec.LastBreakthrough()
	assert.Equal(t, tierCapMessage, last.Message)

	// ranking up lifts the cap and the full tier goes through
	f.reachCap(t)
	require.True(t, f.wallets.Add(player, economy.Faith, 100))
	require.True(t, f.gate.AttemptRankUp(player).OK)
	assert.Equal(t, 3, f.gate.State(player).CurrentTier)
}

func TestRestore(t *testing.T) {
	f := newFixture(t, Options{})

	assert.False(t, f.gate.Restore(player, 3, 0), "rank 0 caps tier at 2")
	assert.False(t, f.gate.Restore(player, 0, 0))

	require.True(t, f.gate.Restore(player, 2, 0b0000_0101))
	s := f.gate.State(player)
	assert.Equal(t, 2, s.CurrentTier)
	assert.Equal(t, 2, s.SlotsPurchased)
	assert.True(t, s.Purchased[0])
	assert.True(t, s.Purchased[2])
}

func TestTierNeverExceedsRankCap(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	f := newFixture(t, Options{AutoBreakthrough: rng.IntN(2) == 0})
	require.True(t, f.wallets.Add(player, economy.Faith, 1_000_000))

	for step := 0; step < 1000; step++ {
		switch rng.IntN(4) {
		case 0:
			f.gate.PurchaseSlot(player)
		case 1:
			f.gate.AttemptTierBreakthrough(player, f.gate.State(player).CurrentTier+rng.IntN(3))
		case 2:
			f.attrs.AddCustomExp(hero, rng.IntN(20_000))
		case 3:
			f.gate.AttemptRankUp(player)
		}

		rank := int(f.attrs.GetStat(hero, model.FieldRank))
		level := int(f.attrs.GetStat(hero, model.FieldDisplayLevel))
		require.LessOrEqual(t, f.gate.State(player).CurrentTier, rank+2)
		require.LessOrEqual(t, level, (rank+1)*10)
	}
}
