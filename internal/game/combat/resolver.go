package combat

import (
	"log/slog"
	"math"

	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

// Stats is what the resolver reads from and heals through.
// attribute.Model implements it.
type Stats interface {
	EffectiveStats(id model.CombatantID) (*model.CombatantStats, bool)
	Snapshot(id model.CombatantID) (*model.CombatantStats, bool)
	OwnerOf(id model.CombatantID) model.PlayerID
	Heal(id model.CombatantID, amount float64) float64
}

// Outcome is the resolved damage event.
type Outcome struct {
	Damage float64
	Crit   bool
	// Heal is the HP restored to the attacker by lifesteal and life on hit.
	Heal float64
	// Passed is true when the event was returned unmodified.
	Passed bool
}

// Resolver turns raw damage events into final damage.
type Resolver struct {
	stats Stats
	crit  CritRoller
	pub   statesync.Publisher
}

// NewResolver creates a resolver. A nil roller means PRD with a random seed.
func NewResolver(stats Stats, crit CritRoller, pub statesync.Publisher) *Resolver {
	if crit == nil {
		crit = NewPRD(nil)
	}
	if pub == nil {
		pub = statesync.Nop{}
	}
	return &Resolver{stats: stats, crit: crit, pub: pub}
}

// Resolve runs the damage pipeline in fixed order: armor penetration, crit,
// final increase, final reduction, block, lifesteal, life on hit, display.
// Events without both records pass through unchanged.
func (r *Resolver) Resolve(ev model.DamageEvent) Outcome {
	pass := Outcome{Damage: ev.Damage, Passed: true}
	if ev.Damage < 1 {
		return pass
	}
	// only player heroes and their summons are modified
	if r.stats.OwnerOf(ev.Attacker) == model.NoPlayer {
		return pass
	}
	atk, ok := r.stats.EffectiveStats(ev.Attacker)
	if !ok {
		slog.Debug("damage pass through, no attacker record", "attacker", ev.Attacker)
		return pass
	}
	victim, ok := r.stats.Snapshot(ev.Victim)
	if !ok {
		slog.Debug("damage pass through, no victim record", "victim", ev.Victim)
		return pass
	}

	ad, vd := atk.Derived, victim.Derived
	mult := 1.0

	switch ev.Type {
	case model.DamagePhysical:
		mult *= ArmorPenMultiplier(ad.ArmorPen, vd.Armor)
	case model.DamageMagical:
		if ad.SpellDamage > 0 {
			mult *= 1 + ad.SpellDamage/100
		}
	}

	var out Outcome
	if ev.Type != model.DamagePure {
		if r.crit.Roll(ev.Attacker, ad.CritChance) {
			out.Crit = true
			critDamage := ad.CritDamage
			if critDamage <= 0 {
				critDamage = model.DefaultCritDamage
			}
			mult *= critDamage / 100
		}
	}

	dmg := ev.Damage * mult
	if ad.FinalDmgIncrease > 0 {
		dmg *= 1 + ad.FinalDmgIncrease/100
	}
	if vd.FinalDmgReduct > 0 {
		dmg /= 1 + vd.FinalDmgReduct/100
	}
	if vd.Block > 0 {
		dmg = math.Max(1, dmg-vd.Block)
	}
	out.Damage = dmg

	if atk.Lifesteal > 0 {
		out.Heal += r.stats.Heal(ev.Attacker, dmg*atk.Lifesteal/100)
	}
	if ev.Type == model.DamagePhysical && ad.LifeOnHit > 0 {
		out.Heal += r.stats.Heal(ev.Attacker, ad.LifeOnHit)
	}

	r.pub.PublishDamageDisplay(model.DamageDisplay{
		Attacker: ev.Attacker,
		Victim:   ev.Victim,
		Amount:   dmg,
		Crit:     out.Crit,
		Type:     ev.Type,
	})
	return out
}

// Forget drops per-attacker crit state of a removed combatant.
func (r *Resolver) Forget(id model.CombatantID) {
	if f, ok := r.crit.(interface{ Forget(model.CombatantID) }); ok {
		f.Forget(id)
	}
}
