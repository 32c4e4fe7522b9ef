package attribute

import (
	"math"

	"github.com/udisondev/ascension/internal/model"
)

// Heal restores HP up to max HP and returns the amount actually healed.
func (m *Model) Heal(id model.CombatantID, amount float64) float64 {
	s, ok := m.records[id]
	if !ok || amount <= 0 || s.CurrentHP <= 0 {
		return 0
	}
	headroom := s.Derived.MaxHP - s.CurrentHP
	healed := math.Min(amount, headroom)
	if healed <= 0 {
		return 0
	}

	m.setVitals(s, s.CurrentHP+healed, s.CurrentMP)
	return healed
}

// ApplyDamage removes HP, never below 0. Returns the remaining HP.
func (m *Model) ApplyDamage(id model.CombatantID, amount float64) (float64, bool) {
	s, ok := m.records[id]
	if !ok {
		return 0, false
	}
	if amount <= 0 {
		return s.CurrentHP, true
	}
	m.setVitals(s, math.Max(0, s.CurrentHP-amount), s.CurrentMP)
	return s.CurrentHP, true
}

// RestoreFull sets HP and MP to their maximum (respawn, rank-up).
func (m *Model) RestoreFull(id model.CombatantID) bool {
	s, ok := m.records[id]
	if !ok {
		return false
	}
	m.setVitals(s, s.Derived.MaxHP, s.Derived.MaxMP)
	return true
}

// setVitals writes current HP/MP directly; max values are unchanged so no
// ratio adjustment applies.
func (m *Model) setVitals(s *model.CombatantStats, hp, mp float64) {
	s.CurrentHP = hp
	s.CurrentMP = mp
	m.publish(s)
}
