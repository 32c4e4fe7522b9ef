package session

import (
	"context"
	"errors"
	"maps"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/game/effect"
	"github.com/udisondev/ascension/internal/game/progression"
	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

const (
	player model.PlayerID    = 0
	hero   model.CombatantID = 100
	creepA model.CombatantID = 300
	creepB model.CombatantID = 301
)

type noCrit struct{}

func (noCrit) Roll(model.CombatantID, float64) bool { return false }

type fakeHost struct {
	enemies []model.CombatantID
	dead    map[model.CombatantID]bool
}

func (h *fakeHost) EnemiesInRadius(_, _ model.CombatantID, _ float64) []model.CombatantID {
	return h.enemies
}

func (h *fakeHost) IsAlive(id model.CombatantID) bool {
	return !h.dead[id]
}

type memStore struct {
	mu      sync.Mutex
	players map[model.PlayerID]model.PlayerProgress
	failing bool
	saves   int
}

func newMemStore() *memStore {
	return &memStore{players: make(map[model.PlayerID]model.PlayerProgress)}
}

func (m *memStore) LoadPlayer(_ context.Context, p model.PlayerID) (*model.PlayerProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prog, ok := m.players[p]
	if !ok {
		return nil, nil
	}
	prog.Grants = maps.Clone(prog.Grants)
	return &prog, nil
}

func (m *memStore) SavePlayer(_ context.Context, p model.PlayerProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("store down")
	}
	p.Grants = maps.Clone(p.Grants)
	m.players[p.Player] = p
	m.saves++
	return nil
}

func (m *memStore) get(p model.PlayerID) (model.PlayerProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prog, ok := m.players[p]
	return prog, ok
}

type fixture struct {
	s     *Session
	rec   *statesync.Recorder
	host  *fakeHost
	store *memStore
}

func newFixture(t *testing.T, store *memStore) *fixture {
	t.Helper()
	tables, err := data.LoadDefaultTables()
	require.NoError(t, err)

	f := &fixture{
		rec:   &statesync.Recorder{},
		host:  &fakeHost{dead: make(map[model.CombatantID]bool)},
		store: store,
	}
	opts := Options{Crit: noCrit{}, Host: f.host, Publisher: f.rec}
	if store != nil {
		opts.Store = store
	}
	f.s = New(tables, opts)
	return f
}

func (f *fixture) spawnHero(t *testing.T, id model.CombatantID) {
	t.Helper()
	_, err := f.s.Dispatch(context.Background(), EntitySpawned{
		Combatant:     id,
		Owner:         player,
		CharacterType: "npc_dota_hero_juggernaut",
	})
	require.NoError(t, err)
}

func (f *fixture) spawnCreep(t *testing.T, id model.CombatantID) {
	t.Helper()
	_, err := f.s.Dispatch(context.Background(), EntitySpawned{
		Combatant:     id,
		Owner:         model.NoPlayer,
		CharacterType: "npc_dota_hero_marci",
	})
	require.NoError(t, err)
}

func (f *fixture) hp(t *testing.T, id model.CombatantID) float64 {
	t.Helper()
	st, ok := f.s.Stats(id)
	require.True(t, ok)
	return st.CurrentHP
}

func TestSpawnOpensPlayer(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)

	st, ok := f.s.Stats(hero)
	require.True(t, ok)
	assert.True(t, st.Hero)
	// 5 base + 5 armor + 2 all stats
	assert.Equal(t, 12, st.Derived.Constitution)
	assert.Equal(t, st.Derived.MaxHP, st.CurrentHP)

	p, ok := f.s.Progress(player)
	require.True(t, ok)
	assert.Equal(t, 0, p.Rank)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, model.Wallet{SpiritCoin: model.StartingSpiritCoin}, p.Wallet)
	assert.Equal(t, 1, p.Tier)
	assert.Equal(t, "item_artifact_weapon_t0", p.Artifacts[model.SlotWeapon].ItemID)

	// a second spawn of the same unit does not open the player again
	wallets := len(f.rec.Wallets)
	f.spawnHero(t, hero)
	assert.Len(t, f.rec.Wallets, wallets)
}

func TestRespawnRevivesHero(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	f.spawnCreep(t, creepA)
	ctx := context.Background()

	_, err := f.s.Dispatch(ctx, PurchaseRequest{Player: player, Stat: "lifesteal", Amount: 50, SlotIndex: -1})
	require.NoError(t, err)

	_, err = f.s.Dispatch(ctx, DamageFilter{model.DamageEvent{Attacker: creepA, Victim: hero, Damage: 1e6, Type: model.DamagePure}})
	require.NoError(t, err)
	require.Zero(t, f.hp(t, hero))

	// dead heroes neither heal nor come back through stat changes
	_, err = f.s.Dispatch(ctx, DamageFilter{model.DamageEvent{Attacker: hero, Victim: creepA, Damage: 100, Type: model.DamagePhysical}})
	require.NoError(t, err)
	assert.Zero(t, f.hp(t, hero))
	_, err = f.s.Dispatch(ctx, PurchaseRequest{Player: player, Stat: "constitution", Amount: 10, SlotIndex: -1})
	require.NoError(t, err)
	assert.Zero(t, f.hp(t, hero))

	f.spawnHero(t, hero)
	st, ok := f.s.Stats(hero)
	require.True(t, ok)
	assert.Equal(t, st.Derived.MaxHP, st.CurrentHP)
	assert.Equal(t, st.Derived.MaxMP, st.CurrentMP)

	p, _ := f.s.Progress(player)
	assert.Equal(t, 10.0, p.Grants[model.FieldExtraConstitution], "respawn keeps the record")

	_, err = f.s.Dispatch(ctx, DamageFilter{model.DamageEvent{Attacker: creepA, Victim: hero, Damage: 100, Type: model.DamagePhysical}})
	require.NoError(t, err)
	wounded := f.hp(t, hero)
	_, err = f.s.Dispatch(ctx, DamageFilter{model.DamageEvent{Attacker: hero, Victim: creepA, Damage: 100, Type: model.DamagePhysical}})
	require.NoError(t, err)
	assert.Greater(t, f.hp(t, hero), wounded, "lifesteal heals after respawn")
}

func TestDispatchValidates(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name string
		ev   Event
	}{
		{"damage type", DamageFilter{model.DamageEvent{Attacker: 1, Victim: 2, Damage: 10}}},
		{"negative damage", DamageFilter{model.DamageEvent{Damage: -1, Type: model.DamagePhysical}}},
		{"NaN damage", DamageFilter{model.DamageEvent{Damage: math.NaN(), Type: model.DamagePhysical}}},
		{"infinite damage", DamageFilter{model.DamageEvent{Damage: math.Inf(1), Type: model.DamageMagical}}},
		{"negative infinite damage", DamageFilter{model.DamageEvent{Damage: math.Inf(-1), Type: model.DamagePure}}},
		{"NaN grant", PurchaseRequest{Player: player, Stat: "martial", Amount: math.NaN(), SlotIndex: -1}},
		{"summon without owner", EntitySpawned{Combatant: 1, Owner: model.NoPlayer, Summon: true}},
		{"negative player", RankUpRequest{Player: model.NoPlayer}},
		{"slot out of range", PurchaseRequest{Player: player, SlotIndex: model.SlotsPerTier}},
		{"grant without stat", PurchaseRequest{Player: player, SlotIndex: -1}},
		{"empty item", EquipRequest{Player: player}},
		{"zero duration", CastEffect{Effect: effect.StatBuffID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.s.Dispatch(context.Background(), tt.ev)
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestNonFiniteDamageLeavesRecordIntact(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	f.spawnCreep(t, creepA)
	before := f.hp(t, hero)

	_, err := f.s.Dispatch(context.Background(), DamageFilter{model.DamageEvent{
		Attacker: creepA, Victim: hero, Damage: math.NaN(), Type: model.DamagePhysical,
	}})
	require.ErrorIs(t, err, ErrInvalidEvent)
	assert.Equal(t, before, f.hp(t, hero))

	err = f.s.HandleCommand(context.Background(), statesync.Command{
		Type:    string(KindDamageFilter),
		Payload: []byte(`{"attacker":300,"victim":100,"damage":1e400,"type":1}`),
	})
	assert.ErrorIs(t, err, ErrInvalidEvent)
	assert.Equal(t, before, f.hp(t, hero))
}

func TestUnknownPlayerRejected(t *testing.T) {
	f := newFixture(t, nil)
	for _, ev := range []Event{
		RankUpRequest{Player: 7},
		BreakthroughRequest{Player: 7, TargetTier: 2},
		PurchaseRequest{Player: 7, SlotIndex: 0},
		EquipRequest{Player: 7, ItemID: "item_artifact_weapon_t0"},
		UnequipRequest{Player: 7},
		KillReward{Player: 7},
	} {
		reply, err := f.s.Dispatch(context.Background(), ev)
		require.NoError(t, err)
		assert.False(t, reply.OK, ev.Kind())
		assert.Equal(t, ReasonUnknownPlayer, reply.Reason, ev.Kind())
	}
}

func TestPurchase(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	ctx := context.Background()

	reply, err := f.s.Dispatch(ctx, PurchaseRequest{Player: player, Stat: "constitution", SlotIndex: 0})
	require.NoError(t, err)
	require.True(t, reply.OK, reply.Message)
	assert.Equal(t, "根骨", reply.Message)

	st, _ := f.s.Stats(hero)
	assert.Equal(t, 17, st.Derived.Constitution)

	// the starting coin covers one slot
	reply, err = f.s.Dispatch(ctx, PurchaseRequest{Player: player, SlotIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, progression.ReasonInsufficientCurrency, reply.Reason)

	reply, err = f.s.Dispatch(ctx, PurchaseRequest{Player: player, Stat: "martial", Amount: 3, SlotIndex: -1})
	require.NoError(t, err)
	assert.True(t, reply.OK)

	reply, err = f.s.Dispatch(ctx, PurchaseRequest{Player: player, Stat: "max_hp", Amount: 3, SlotIndex: -1})
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownStat, reply.Reason)

	p, _ := f.s.Progress(player)
	assert.Equal(t, map[model.Field]float64{
		model.FieldExtraConstitution: 5,
		model.FieldExtraMartial:      3,
	}, p.Grants)
	assert.Equal(t, uint8(1), p.SlotMask)
	assert.Zero(t, p.Wallet.SpiritCoin)
}

func TestKillReward(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)

	reply, err := f.s.Dispatch(context.Background(), KillReward{Player: player, VictimType: "npc_creep_wave_1"})
	require.NoError(t, err)
	require.True(t, reply.OK)

	p, _ := f.s.Progress(player)
	assert.Equal(t, model.StartingSpiritCoin+15, p.Wallet.SpiritCoin)
	assert.Equal(t, 20, p.Exp)
	assert.Equal(t, 10, p.Artifacts[model.SlotWeapon].XP)

	_, err = f.s.Dispatch(context.Background(), KillReward{Player: player, VictimType: "npc_unknown"})
	require.NoError(t, err)
	p, _ = f.s.Progress(player)
	assert.Equal(t, model.StartingSpiritCoin+25, p.Wallet.SpiritCoin, "default reward")
}

func TestRankUpRejectedWithoutFaith(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)

	reply, err := f.s.Dispatch(context.Background(), RankUpRequest{Player: player})
	require.NoError(t, err)
	assert.False(t, reply.OK)
	assert.Equal(t, progression.ReasonInsufficientCurrency, reply.Reason)
	require.Len(t, f.rec.RankUps, 1)
	assert.False(t, f.rec.RankUps[0].Success)
}

func TestEquipAndUnequip(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	ctx := context.Background()

	reply, err := f.s.Dispatch(ctx, EquipRequest{Player: player, SlotIndex: 0, ItemID: "item_artifact_armor_t0"})
	require.NoError(t, err)
	assert.False(t, reply.OK)

	reply, err = f.s.Dispatch(ctx, UnequipRequest{Player: player, SlotIndex: int(model.SlotArmor)})
	require.NoError(t, err)
	require.True(t, reply.OK)
	assert.Equal(t, "布衣", reply.Message)

	st, _ := f.s.Stats(hero)
	assert.Equal(t, 7, st.Derived.Constitution)

	reply, err = f.s.Dispatch(ctx, UnequipRequest{Player: player, SlotIndex: int(model.SlotArmor)})
	require.NoError(t, err)
	assert.Equal(t, ReasonEmptySlot, reply.Reason)

	reply, err = f.s.Dispatch(ctx, EquipRequest{Player: player, SlotIndex: int(model.SlotArmor), ItemID: "item_artifact_armor_t0"})
	require.NoError(t, err)
	assert.True(t, reply.OK)
}

func TestFilterDamage(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	f.spawnCreep(t, creepA)
	maxHP := f.hp(t, hero)

	// creeps are not modified
	reply, err := f.s.Dispatch(context.Background(), DamageFilter{model.DamageEvent{
		Attacker: creepA, Victim: hero, Damage: 100, Type: model.DamagePhysical,
	}})
	require.NoError(t, err)
	assert.Equal(t, 100.0, reply.Damage)
	assert.Equal(t, maxHP-100, f.hp(t, hero))
}

func TestFilterDamagePassThrough(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	f.spawnCreep(t, creepA)
	ctx := context.Background()

	tests := []struct {
		name     string
		attacker model.CombatantID
		victim   model.CombatantID
	}{
		{"victim without record", hero, 999},
		{"attacker without record", 998, hero},
		{"creep attacker", creepA, hero},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := f.s.Dispatch(ctx, DamageFilter{model.DamageEvent{
				Attacker: tt.attacker, Victim: tt.victim, Damage: 73, Type: model.DamageMagical,
			}})
			require.NoError(t, err)
			assert.True(t, reply.OK)
			assert.Equal(t, 73.0, reply.Damage)
		})
	}

	_, ok := f.s.Stats(999)
	assert.False(t, ok, "no record is created for unknown victims")
}

func TestGoldenBellBreaksOnHostDamage(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	f.spawnCreep(t, creepA)
	f.spawnCreep(t, creepB)
	f.host.enemies = []model.CombatantID{hero, creepA, creepB}
	f.host.dead[creepB] = true
	ctx := context.Background()

	heroHP := f.hp(t, hero)
	creepHP := f.hp(t, creepA)

	reply, err := f.s.Dispatch(ctx, CastEffect{Effect: effect.GoldenBellID, Caster: hero, Target: hero, Duration: 3 * time.Second})
	require.NoError(t, err)
	require.True(t, reply.OK)
	assert.Equal(t, []string{effect.GoldenBellID}, f.s.ActiveEffects(hero))

	// shield 12*5 soaks 60 of 100
	reply, err = f.s.Dispatch(ctx, DamageFilter{model.DamageEvent{
		Attacker: creepA, Victim: hero, Damage: 100, Type: model.DamagePhysical,
	}})
	require.NoError(t, err)
	assert.InDelta(t, 40, reply.Damage, 1e-9)
	assert.InDelta(t, heroHP-40, f.hp(t, hero), 1e-9)

	// explosion 12*5 with the helm's 2% spell damage, caster and dead units spared
	assert.InDelta(t, creepHP-61.2, f.hp(t, creepA), 1e-9)
	assert.Equal(t, f.hp(t, creepB), creepHP)
	assert.Empty(t, f.s.ActiveEffects(hero))
}

func TestPlagueCloudTicksOnReconcile(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	f.spawnCreep(t, creepA)
	f.host.enemies = []model.CombatantID{creepA}
	ctx := context.Background()
	creepHP := f.hp(t, creepA)

	_, err := f.s.Dispatch(ctx, CastEffect{
		Effect:   effect.PlagueCloudID,
		Caster:   hero,
		Target:   hero,
		Duration: 5 * time.Second,
		Period:   time.Second,
	})
	require.NoError(t, err)

	for range 5 {
		require.NoError(t, f.s.Reconcile(ctx, time.Second))
	}
	// divinity 3 + 2 all stats, *1.02 spell damage, five ticks
	assert.InDelta(t, creepHP-5*5*1.02, f.hp(t, creepA), 1e-9)
	assert.Empty(t, f.s.ActiveEffects(hero))
}

func TestCastRejections(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)

	reply, err := f.s.Dispatch(context.Background(), CastEffect{Effect: effect.StatBuffID, Caster: hero, Target: 999, Duration: time.Second})
	require.NoError(t, err)
	assert.Equal(t, ReasonUnknownCombatant, reply.Reason)

	_, err = f.s.Dispatch(context.Background(), CastEffect{Effect: "meteor", Caster: hero, Target: hero, Duration: time.Second})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestReconcileRepublishes(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	f.spawnCreep(t, creepA)
	heroBefore, creepBefore := f.rec.StatsCount(hero), f.rec.StatsCount(creepA)
	wallets, shops, artifacts := len(f.rec.Wallets), len(f.rec.Shop), len(f.rec.Artifacts)

	require.NoError(t, f.s.Reconcile(context.Background(), time.Second))
	assert.Equal(t, heroBefore+1, f.rec.StatsCount(hero))
	assert.Equal(t, creepBefore+1, f.rec.StatsCount(creepA))
	assert.Len(t, f.rec.Wallets, wallets+1)
	assert.Len(t, f.rec.Shop, shops+1)
	assert.Len(t, f.rec.Artifacts, artifacts+1)
	assert.Equal(t, player, f.rec.Wallets[wallets].Player)
}

func TestNewDefaultsReconcileInterval(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, time.Second, DefaultReconcileInterval)
	assert.Equal(t, DefaultReconcileInterval, f.s.interval)
}

func TestProgressSurvivesSessions(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	first := newFixture(t, store)
	first.spawnHero(t, hero)
	_, err := first.s.Dispatch(ctx, PurchaseRequest{Player: player, SlotIndex: 0})
	require.NoError(t, err)
	_, err = first.s.Dispatch(ctx, KillReward{Player: player, VictimType: "npc_creep_wave_1"})
	require.NoError(t, err)
	require.NoError(t, first.s.Flush(ctx))

	saved, ok := store.get(player)
	require.True(t, ok)
	assert.Equal(t, model.Wallet{SpiritCoin: 15}, saved.Wallet)
	assert.Equal(t, uint8(1), saved.SlotMask)
	assert.Equal(t, 20, saved.Exp)

	second := newFixture(t, store)
	second.spawnHero(t, 200)
	p, ok := second.s.Progress(player)
	require.True(t, ok)
	assert.Equal(t, saved.Wallet, p.Wallet)
	assert.Equal(t, saved.Tier, p.Tier)
	assert.Equal(t, saved.SlotMask, p.SlotMask)
	assert.Equal(t, saved.Exp, p.Exp)
	assert.Equal(t, saved.Artifacts, p.Artifacts)
	assert.Equal(t, saved.Grants, p.Grants)

	st, _ := second.s.Stats(200)
	assert.Equal(t, 17, st.Derived.Constitution)
}

func TestRemovedHeroKeepsProgress(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	ctx := context.Background()
	_, err := f.s.Dispatch(ctx, KillReward{Player: player, VictimType: "npc_creep_wave_1"})
	require.NoError(t, err)

	_, err = f.s.Dispatch(ctx, EntityRemoved{Combatant: hero})
	require.NoError(t, err)
	_, ok := f.s.Progress(player)
	assert.False(t, ok)
	reply, _ := f.s.Dispatch(ctx, RankUpRequest{Player: player})
	assert.Equal(t, ReasonUnknownPlayer, reply.Reason)

	f.spawnHero(t, 101)
	p, ok := f.s.Progress(player)
	require.True(t, ok)
	assert.Equal(t, model.StartingSpiritCoin+15, p.Wallet.SpiritCoin)
	assert.Equal(t, 20, p.Exp)
}

func TestFlushRetriesFailedSaves(t *testing.T) {
	store := newMemStore()
	f := newFixture(t, store)
	f.spawnHero(t, hero)
	ctx := context.Background()

	store.failing = true
	assert.Error(t, f.s.Flush(ctx))

	store.failing = false
	require.NoError(t, f.s.Flush(ctx))
	_, ok := store.get(player)
	assert.True(t, ok)

	// nothing changed since
	saves := store.saves
	require.NoError(t, f.s.Flush(ctx))
	assert.Equal(t, saves, store.saves)
}

func TestRunSavesOnShutdown(t *testing.T) {
	store := newMemStore()
	f := newFixture(t, store)
	f.spawnHero(t, hero)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	_, ok := store.get(player)
	assert.True(t, ok)
}

func TestHandleCommand(t *testing.T) {
	f := newFixture(t, nil)
	f.spawnHero(t, hero)
	ctx := context.Background()

	err := f.s.HandleCommand(ctx, statesync.Command{Type: string(KindRankUp), Payload: []byte(`{"player":0}`)})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), progression.ReasonInsufficientCurrency)

	err = f.s.HandleCommand(ctx, statesync.Command{Type: string(KindKillReward), Payload: []byte(`{"player":0,"victim_type":"npc_creep_wave_1"}`)})
	require.NoError(t, err)

	err = f.s.HandleCommand(ctx, statesync.Command{Type: "teleport"})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	err = f.s.HandleCommand(ctx, statesync.Command{Type: string(KindEquip), Payload: []byte(`{"player":"zero"}`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent(KindDamageFilter, []byte(`{"attacker":1,"victim":2,"damage":50,"type":1}`))
	require.NoError(t, err)
	assert.Equal(t, DamageFilter{model.DamageEvent{Attacker: 1, Victim: 2, Damage: 50, Type: model.DamagePhysical}}, ev)

	ev, err = DecodeEvent(KindCastEffect, []byte(`{"effect":"golden_bell","caster":1,"target":1,"duration":3000000000}`))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, ev.(CastEffect).Duration)
}
