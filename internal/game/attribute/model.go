// Package attribute owns the authoritative stat record of every combatant.
//
// Every mutation goes through Model so that derived fields are recomputed,
// the HP/MP ratio is preserved and a snapshot is published. Model is not
// safe for concurrent use; the session serializes access.
package attribute

import (
	"log/slog"
	"slices"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

// Model is the attribute store of one game session.
type Model struct {
	pub statesync.Publisher

	records map[model.CombatantID]*model.CombatantStats
	// heroes maps a player to the combatant of its hero.
	heroes map[model.PlayerID]model.CombatantID
	// summons maps summoned units to their owning player.
	summons map[model.CombatantID]model.PlayerID
	// equipment is the last bonus vector applied per player.
	equipment map[model.PlayerID]model.EquipmentBonusVector
}

// New creates an empty model publishing to pub.
func New(pub statesync.Publisher) *Model {
	if pub == nil {
		pub = statesync.Nop{}
	}
	return &Model{
		pub:       pub,
		records:   make(map[model.CombatantID]*model.CombatantStats),
		heroes:    make(map[model.PlayerID]model.CombatantID),
		summons:   make(map[model.CombatantID]model.PlayerID),
		equipment: make(map[model.PlayerID]model.EquipmentBonusVector),
	}
}

// Initialize seeds a record from the character-type template.
// Returns false (and the existing record) when the combatant is already known.
// Units with an owner are heroes of that owner.
func (m *Model) Initialize(id model.CombatantID, owner model.PlayerID, tmpl *data.HeroTemplate) (*model.CombatantStats, bool) {
	if s, ok := m.records[id]; ok {
		return s.Clone(), false
	}

	s := newStats(id, owner, tmpl)
	if owner != model.NoPlayer {
		s.Hero = true
		s.Equipment = m.equipment[owner]
		m.heroes[owner] = id
	}
	s.Derived = model.RecomputeDerived(*s)
	s.CurrentHP = s.Derived.MaxHP
	s.CurrentMP = s.Derived.MaxMP

	m.records[id] = s
	slog.Debug("combatant initialized", "combatant", id, "owner", owner, "type", s.CharacterType)

	m.publish(s)
	return s.Clone(), true
}

func newStats(id model.CombatantID, owner model.PlayerID, t *data.HeroTemplate) *model.CombatantStats {
	layer := func(d data.AttributeDef) model.AttributeLayer {
		return model.AttributeLayer{Base: d.Base, Gain: d.Gain, Bonus: d.Bonus}
	}

	s := &model.CombatantStats{
		ID:                id,
		Owner:             owner,
		MainStat:          model.MainStatMartial,
		CritDamage:        model.DefaultCritDamage,
		DisplayLevel:      1,
		CustomExpRequired: data.ExpRequired(1),
	}
	if t == nil {
		return s
	}

	s.CharacterType = t.Name
	s.MainStat = t.MainStat
	s.Constitution = layer(t.Constitution)
	s.Martial = layer(t.Martial)
	s.Divinity = layer(t.Divinity)
	s.Agility = layer(t.Agility)
	s.Damage = layer(t.Damage)
	s.BaseMoveSpeed = t.MovementSpeed
	s.LifeOnHitBase = t.LifeOnHit
	s.BaseArmor = t.Armor
	s.CritChance = t.CritChance
	s.CritDamage = t.CritDamage
	s.FinalDmgIncrease = t.FinalDmgIncrease
	s.FinalDmgReduct = t.FinalDmgReduct
	s.Evasion = t.Evasion
	return s
}

// RegisterSummon links a summoned unit to its owner; combat resolves the
// summon's stats through the owner's hero.
func (m *Model) RegisterSummon(id model.CombatantID, owner model.PlayerID) {
	if owner == model.NoPlayer {
		return
	}
	m.summons[id] = owner
}

// Remove forgets a combatant permanently.
func (m *Model) Remove(id model.CombatantID) {
	delete(m.summons, id)
	s, ok := m.records[id]
	if !ok {
		return
	}
	delete(m.records, id)
	if s.Hero && m.heroes[s.Owner] == id {
		delete(m.heroes, s.Owner)
	}
}

// Has reports whether the combatant has a record.
func (m *Model) Has(id model.CombatantID) bool {
	_, ok := m.records[id]
	return ok
}

// Combatants returns the ids of every record in ascending order.
func (m *Model) Combatants() []model.CombatantID {
	ids := make([]model.CombatantID, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HeroOf returns the hero combatant of a player.
func (m *Model) HeroOf(player model.PlayerID) (model.CombatantID, bool) {
	id, ok := m.heroes[player]
	return id, ok
}

// OwnerOf returns the player controlling a combatant or summon.
func (m *Model) OwnerOf(id model.CombatantID) model.PlayerID {
	if s, ok := m.records[id]; ok {
		return s.Owner
	}
	if owner, ok := m.summons[id]; ok {
		return owner
	}
	return model.NoPlayer
}

// Snapshot returns a copy of the record.
func (m *Model) Snapshot(id model.CombatantID) (*model.CombatantStats, bool) {
	s, ok := m.records[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// EffectiveStats returns the record that drives a combatant's attacks:
// its own, or its owner's hero for summons.
func (m *Model) EffectiveStats(id model.CombatantID) (*model.CombatantStats, bool) {
	if s, ok := m.records[id]; ok {
		return s.Clone(), true
	}
	owner, ok := m.summons[id]
	if !ok {
		return nil, false
	}
	hero, ok := m.heroes[owner]
	if !ok {
		return nil, false
	}
	return m.Snapshot(hero)
}

// GetStat reads a field. Unknown combatants and fields read as 0.
func (m *Model) GetStat(id model.CombatantID, field model.Field) float64 {
	s, ok := m.records[id]
	if !ok {
		return 0
	}
	return s.Get(field)
}

// AddStat adds delta to an additive field and refreshes everything that depends on it.
func (m *Model) AddStat(id model.CombatantID, field model.Field, delta float64) bool {
	s, ok := m.records[id]
	if !ok {
		slog.Debug("add stat on unknown combatant", "combatant", id, "field", field)
		return false
	}
	if !field.Additive() {
		slog.Warn("rejected stat change on non-additive field", "combatant", id, "field", field, "delta", delta)
		return false
	}
	if delta == 0 {
		return true
	}

	m.mutate(s, func(s *model.CombatantStats) {
		s.AddTo(field, delta)
	})
	return true
}

// SetEquipment applies a player's bonus vector to every combatant of that player.
func (m *Model) SetEquipment(owner model.PlayerID, vec model.EquipmentBonusVector) {
	m.equipment[owner] = vec
	for _, id := range m.Combatants() {
		s := m.records[id]
		if s.Owner != owner {
			continue
		}
		m.mutate(s, func(s *model.CombatantStats) {
			s.Equipment = vec
		})
	}
}

// Republish re-derives a record and publishes it again. Used by reconciliation.
func (m *Model) Republish(id model.CombatantID) bool {
	s, ok := m.records[id]
	if !ok {
		return false
	}
	m.mutate(s, func(*model.CombatantStats) {})
	return true
}

// mutate applies fn, recomputes derived fields keeping the HP/MP ratio and publishes.
func (m *Model) mutate(s *model.CombatantStats, fn func(s *model.CombatantStats)) {
	oldMaxHP, oldMaxMP := s.Derived.MaxHP, s.Derived.MaxMP

	fn(s)
	s.Derived = model.RecomputeDerived(*s)

	hpFloor := 0.0
	if s.CurrentHP >= 1 {
		hpFloor = 1
	}
	s.CurrentHP = model.PreserveRatio(s.CurrentHP, oldMaxHP, s.Derived.MaxHP, hpFloor)
	s.CurrentMP = model.PreserveRatio(s.CurrentMP, oldMaxMP, s.Derived.MaxMP, 0)

	m.publish(s)
}

func (m *Model) publish(s *model.CombatantStats) {
	m.pub.PublishStatsSnapshot(s.Clone())
}
