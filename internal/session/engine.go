package session

import (
	"slices"

	"github.com/udisondev/ascension/internal/model"
)

// engine is the effect host. Effects run inside session handlers, so it
// works on the already locked session.
type engine struct {
	s *Session
}

// ApplyDamage runs effect damage through the same pipeline as host damage.
func (e engine) ApplyDamage(ev model.DamageEvent) {
	if h := e.s.host; h != nil && !h.IsAlive(ev.Victim) {
		return
	}
	e.s.applyDamage(ev)
}

func (e engine) EnemiesInRadius(caster, center model.CombatantID, radius float64) []model.CombatantID {
	if e.s.host == nil {
		return nil
	}
	enemies := e.s.host.EnemiesInRadius(caster, center, radius)
	// never hit the caster or its own side
	owner := e.s.attrs.OwnerOf(caster)
	return slices.DeleteFunc(slices.Clone(enemies), func(id model.CombatantID) bool {
		return id == caster || (owner != model.NoPlayer && e.s.attrs.OwnerOf(id) == owner)
	})
}
