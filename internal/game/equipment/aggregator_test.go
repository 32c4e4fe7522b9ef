package equipment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

const player model.PlayerID = 0

type captureListener struct {
	calls int
	last  model.EquipmentBonusVector
}

func (c *captureListener) SetEquipment(_ model.PlayerID, vec model.EquipmentBonusVector) {
	c.calls++
	c.last = vec
}

func newTestAggregator(t *testing.T) (*Aggregator, *captureListener, *statesync.Recorder) {
	t.Helper()
	tables, err := data.LoadDefaultTables()
	require.NoError(t, err)
	lis := &captureListener{}
	rec := &statesync.Recorder{}
	return New(tables, lis, rec), lis, rec
}

func TestInitPlayerEquipsDormantSet(t *testing.T) {
	a, lis, rec := newTestAggregator(t)

	require.True(t, a.InitPlayer(player))
	assert.False(t, a.InitPlayer(player))

	slots, ok := a.Slots(player)
	require.True(t, ok)
	for i, s := range slots {
		assert.Equalf(t, 0, s.Tier, "slot %d", i)
		assert.Falsef(t, s.Empty(), "slot %d", i)
	}
	assert.Equal(t, "item_artifact_weapon_t0", slots[model.SlotWeapon].ItemID)

	// dormant artifacts already contribute
	assert.Equal(t, 15.0, lis.last.Damage)
	assert.Equal(t, 1, lis.calls)
	require.Len(t, rec.Artifacts, 1)
	assert.Equal(t, lis.last, rec.Artifacts[0].Bonus)
}

func TestEquipRejections(t *testing.T) {
	a, lis, rec := newTestAggregator(t)

	tests := []struct {
		name   string
		slot   int
		item   string
		reason string
	}{
		{"slot below range", -1, "item_artifact_weapon_t2", "无效槽位"},
		{"slot above range", model.SlotCount, "item_artifact_weapon_t2", "无效槽位"},
		{"unknown item", 0, "item_missing", "未知神器"},
		{"wrong category", int(model.SlotBoots), "item_artifact_weapon_t2", "神器不属于该槽位"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := a.Equip(player, tt.slot, tt.item)
			assert.False(t, ok)
			assert.Equal(t, tt.reason, reason.Message)
		})
	}
	assert.Zero(t, lis.calls)
	assert.Empty(t, rec.Artifacts)
}

func TestEquipOverwritesAndInvalidatesMemo(t *testing.T) {
	a, lis, _ := newTestAggregator(t)
	require.True(t, a.InitPlayer(player))

	before := a.ComputeBonusVector(player)
	ok, reason := a.Equip(player, int(model.SlotWeapon), "item_artifact_weapon_t2")
	require.True(t, ok, reason.Message)
	assert.Empty(t, reason.Code)

	after := a.ComputeBonusVector(player)
	assert.Equal(t, 15.0, before.Damage)
	assert.Equal(t, 300.0, after.Damage)
	assert.Equal(t, 10.0, after.ArmorPen)
	assert.Equal(t, after, lis.last)

	slots, _ := a.Slots(player)
	assert.Equal(t, 2, slots[model.SlotWeapon].Tier)
	assert.Zero(t, slots[model.SlotWeapon].XP)
}

func TestComputeBonusVectorMasksByCategory(t *testing.T) {
	tables, err := data.LoadDefaultTables()
	require.NoError(t, err)
	// a weapon declaring armor must not grant it
	def, ok := tables.Artifact("item_artifact_weapon_t2")
	require.True(t, ok)
	def.Bonus.Armor = 999

	a := New(tables, nil, nil)
	ok, _ = a.Equip(player, int(model.SlotWeapon), def.ItemID)
	require.True(t, ok)

	v := a.ComputeBonusVector(player)
	assert.Zero(t, v.Armor)
	assert.Equal(t, 300.0, v.Damage)
}

func TestComputeBonusVectorUnknownPlayer(t *testing.T) {
	a, _, _ := newTestAggregator(t)
	assert.Equal(t, model.EquipmentBonusVector{}, a.ComputeBonusVector(42))
}

func TestUnequip(t *testing.T) {
	a, lis, _ := newTestAggregator(t)
	require.True(t, a.InitPlayer(player))

	prev, ok := a.Unequip(player, int(model.SlotWeapon))
	require.True(t, ok)
	assert.Equal(t, "item_artifact_weapon_t0", prev.ItemID)
	assert.Zero(t, lis.last.Damage)

	_, ok = a.Unequip(player, int(model.SlotWeapon))
	assert.False(t, ok, "already empty")
	_, ok = a.Unequip(player, 9)
	assert.False(t, ok)
}

func TestUpgradeArtifactCarriesOverflow(t *testing.T) {
	a, lis, _ := newTestAggregator(t)
	require.True(t, a.InitPlayer(player))

	assert.False(t, a.UpgradeArtifact(player, model.SlotWeapon), "bar not full")

	require.True(t, a.AddArtifactXP(player, model.SlotWeapon, 130))
	require.True(t, a.UpgradeArtifact(player, model.SlotWeapon))

	slots, _ := a.Slots(player)
	w := slots[model.SlotWeapon]
	assert.Equal(t, 1, w.Tier)
	assert.Equal(t, "item_artifact_weapon_tier1", w.ItemID)
	assert.Equal(t, 30, w.XP)
	assert.Equal(t, 60.0, lis.last.Damage)
}

func TestUpgradeArtifactStopsAtMaxTier(t *testing.T) {
	a, _, _ := newTestAggregator(t)
	ok, _ := a.Equip(player, int(model.SlotWeapon), "item_artifact_weapon_t5")
	require.True(t, ok)

	require.True(t, a.AddArtifactXP(player, model.SlotWeapon, 1000))
	assert.False(t, a.UpgradeArtifact(player, model.SlotWeapon))

	slots, _ := a.Slots(player)
	assert.Equal(t, model.MaxArtifactTier, slots[model.SlotWeapon].Tier)
}

func TestOnKillUpgradesFullBarFirst(t *testing.T) {
	a, _, _ := newTestAggregator(t)
	require.True(t, a.InitPlayer(player))
	drop := &data.ArtifactDrop{Slot: "weapon", Category: model.SlotWeapon, XP: 10}

	require.True(t, a.AddArtifactXP(player, model.SlotWeapon, 100))
	require.True(t, a.OnKill(player, drop))

	slots, _ := a.Slots(player)
	assert.Equal(t, 1, slots[model.SlotWeapon].Tier)
	assert.Equal(t, 10, slots[model.SlotWeapon].XP)

	assert.False(t, a.OnKill(player, nil))
	assert.False(t, a.OnKill(99, drop))
}

func TestRestore(t *testing.T) {
	a, lis, _ := newTestAggregator(t)

	var saved [model.SlotCount]model.ArtifactSlot
	saved[model.SlotWeapon] = model.ArtifactSlot{ItemID: "item_artifact_weapon_t3", XP: 42}
	saved[model.SlotArmor] = model.ArtifactSlot{ItemID: "item_artifact_weapon_tier1"}
	saved[model.SlotHelm] = model.ArtifactSlot{ItemID: "item_gone"}
	a.Restore(player, saved)

	slots, ok := a.Slots(player)
	require.True(t, ok)
	assert.Equal(t, 3, slots[model.SlotWeapon].Tier)
	assert.Equal(t, 42, slots[model.SlotWeapon].XP)
	assert.True(t, slots[model.SlotArmor].Empty(), "wrong category is dropped")
	assert.True(t, slots[model.SlotHelm].Empty(), "unknown item is dropped")
	assert.Equal(t, 1500.0, lis.last.Damage)
}
