// Package equipment tracks the six artifact slots of every player and turns
// them into one bonus vector per player.
package equipment

import (
	"log/slog"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

// Rejection codes returned by Equip.
const (
	ReasonInvalidSlot     = "invalid slot"
	ReasonUnknownArtifact = "unknown artifact"
	ReasonSlotMismatch    = "slot mismatch"
)

var (
	invalidSlot     = model.Reason{Code: ReasonInvalidSlot, Message: "无效槽位"}
	unknownArtifact = model.Reason{Code: ReasonUnknownArtifact, Message: "未知神器"}
	slotMismatch    = model.Reason{Code: ReasonSlotMismatch, Message: "神器不属于该槽位"}
)

// Listener receives a player's bonus vector whenever it changes.
// attribute.Model implements it.
type Listener interface {
	SetEquipment(owner model.PlayerID, vec model.EquipmentBonusVector)
}

type loadout struct {
	slots [model.SlotCount]model.ArtifactSlot
	// memo is the cached vector; nil after any slot change.
	memo *model.EquipmentBonusVector
}

// Aggregator owns every player's artifact slots. Not safe for concurrent use.
type Aggregator struct {
	tables   *data.Tables
	listener Listener
	pub      statesync.Publisher

	players map[model.PlayerID]*loadout
}

// New creates an aggregator. listener and pub may be nil.
func New(tables *data.Tables, listener Listener, pub statesync.Publisher) *Aggregator {
	if pub == nil {
		pub = statesync.Nop{}
	}
	return &Aggregator{
		tables:   tables,
		listener: listener,
		pub:      pub,
		players:  make(map[model.PlayerID]*loadout),
	}
}

// InitPlayer equips the tier-0 dormant artifact of every category.
// Returns false when the player already has slots.
func (a *Aggregator) InitPlayer(player model.PlayerID) bool {
	if _, ok := a.players[player]; ok {
		return false
	}
	l := &loadout{}
	for c := model.SlotCategory(0); c < model.SlotCount; c++ {
		if def, ok := a.tables.ArtifactFor(c, 0); ok {
			l.slots[c] = slotOf(def, 0)
		}
	}
	a.players[player] = l
	a.changed(player, l)
	return true
}

// Restore replaces a player's slots with persisted ones. Slots naming an
// unknown item are left empty.
func (a *Aggregator) Restore(player model.PlayerID, slots [model.SlotCount]model.ArtifactSlot) {
	l := &loadout{}
	for i, s := range slots {
		if s.Empty() {
			continue
		}
		def, ok := a.tables.Artifact(s.ItemID)
		if !ok || def.Category != model.SlotCategory(i) {
			slog.Warn("dropping unknown artifact on restore", "player", player, "slot", i, "item", s.ItemID)
			continue
		}
		l.slots[i] = slotOf(def, max(s.XP, 0))
	}
	a.players[player] = l
	a.changed(player, l)
}

// Remove forgets a player.
func (a *Aggregator) Remove(player model.PlayerID) {
	delete(a.players, player)
}

// Slots returns a copy of the player's slots.
func (a *Aggregator) Slots(player model.PlayerID) ([model.SlotCount]model.ArtifactSlot, bool) {
	l, ok := a.players[player]
	if !ok {
		return [model.SlotCount]model.ArtifactSlot{}, false
	}
	return l.slots, true
}

// Equip puts itemID into slotIndex, replacing whatever was there.
func (a *Aggregator) Equip(player model.PlayerID, slotIndex int, itemID string) (bool, model.Reason) {
	c := model.SlotCategory(slotIndex)
	if !c.Valid() {
		return false, invalidSlot
	}
	def, ok := a.tables.Artifact(itemID)
	if !ok {
		return false, unknownArtifact
	}
	if def.Category != c {
		return false, slotMismatch
	}

	l := a.loadout(player)
	l.slots[c] = slotOf(def, 0)
	slog.Debug("artifact equipped", "player", player, "slot", c, "item", itemID)
	a.changed(player, l)
	return true, model.Reason{}
}

// Unequip empties a slot and returns what it held.
func (a *Aggregator) Unequip(player model.PlayerID, slotIndex int) (model.ArtifactSlot, bool) {
	c := model.SlotCategory(slotIndex)
	l, ok := a.players[player]
	if !ok || !c.Valid() || l.slots[c].Empty() {
		return model.ArtifactSlot{}, false
	}
	prev := l.slots[c]
	l.slots[c] = model.ArtifactSlot{}
	a.changed(player, l)
	return prev, true
}

// ComputeBonusVector sums every equipped item, each category contributing
// only its own fields. The result is cached until the next slot change.
func (a *Aggregator) ComputeBonusVector(player model.PlayerID) model.EquipmentBonusVector {
	l, ok := a.players[player]
	if !ok {
		return model.EquipmentBonusVector{}
	}
	if l.memo != nil {
		return *l.memo
	}

	var v model.EquipmentBonusVector
	for i, s := range l.slots {
		if s.Empty() {
			continue
		}
		def, ok := a.tables.Artifact(s.ItemID)
		if !ok {
			continue
		}
		v = v.AddMasked(def.Bonus, model.SlotCategory(i))
	}
	l.memo = &v
	return v
}

// AddArtifactXP adds xp to the artifact in category c.
func (a *Aggregator) AddArtifactXP(player model.PlayerID, c model.SlotCategory, xp int) bool {
	l, ok := a.players[player]
	if !ok || !c.Valid() || xp <= 0 || l.slots[c].Empty() {
		return false
	}
	l.slots[c].XP += xp
	// bonus is unchanged, only observers need to know
	a.publish(player, l)
	return true
}

// UpgradeArtifact moves the artifact in category c one tier up when its xp
// bar is full. Overflow xp is carried into the new tier.
func (a *Aggregator) UpgradeArtifact(player model.PlayerID, c model.SlotCategory) bool {
	l, ok := a.players[player]
	if !ok || !c.Valid() {
		return false
	}
	cur := l.slots[c]
	if cur.Empty() || cur.Tier >= model.MaxArtifactTier || cur.XP < cur.XPRequired {
		return false
	}
	next, ok := a.tables.ArtifactFor(c, cur.Tier+1)
	if !ok {
		slog.Warn("no artifact for next tier", "slot", c, "tier", cur.Tier+1)
		return false
	}

	l.slots[c] = slotOf(next, cur.XP-cur.XPRequired)
	slog.Info("artifact upgraded", "player", player, "slot", c, "tier", next.Tier, "item", next.ItemID)
	a.changed(player, l)
	return true
}

// OnKill applies the artifact drop of a kill. An already full bar is
// turned into a tier first so the new xp starts the next one.
func (a *Aggregator) OnKill(player model.PlayerID, drop *data.ArtifactDrop) bool {
	if drop == nil || drop.XP <= 0 {
		return false
	}
	l, ok := a.players[player]
	if !ok {
		return false
	}
	s := l.slots[drop.Category]
	if !s.Empty() && s.Tier < model.MaxArtifactTier && s.XP >= s.XPRequired {
		a.UpgradeArtifact(player, drop.Category)
	}
	return a.AddArtifactXP(player, drop.Category, drop.XP)
}

// Republish sends the artifacts view of a player again.
func (a *Aggregator) Republish(player model.PlayerID) bool {
	l, ok := a.players[player]
	if !ok {
		return false
	}
	a.publish(player, l)
	return true
}

func (a *Aggregator) loadout(player model.PlayerID) *loadout {
	l, ok := a.players[player]
	if !ok {
		l = &loadout{}
		a.players[player] = l
	}
	return l
}

// changed drops the memo, pushes the new vector to the listener and publishes.
func (a *Aggregator) changed(player model.PlayerID, l *loadout) {
	l.memo = nil
	if a.listener != nil {
		a.listener.SetEquipment(player, a.ComputeBonusVector(player))
	}
	a.publish(player, l)
}

func (a *Aggregator) publish(player model.PlayerID, l *loadout) {
	a.pub.PublishArtifacts(model.ArtifactsSnapshot{
		Player: player,
		Slots:  l.slots,
		Bonus:  a.ComputeBonusVector(player),
	})
}

func slotOf(def *data.ArtifactDef, xp int) model.ArtifactSlot {
	return model.ArtifactSlot{
		ItemID:      def.ItemID,
		Tier:        def.Tier,
		DisplayName: def.Name,
		XP:          xp,
		XPRequired:  def.XPRequired,
	}
}
