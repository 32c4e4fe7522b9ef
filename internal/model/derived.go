package model

import "math"

// Base pools configured on every hero unit.
const (
	BaseStatusHealth = 1
	BaseStatusMana   = 100

	// HPPerConstitution converts panel constitution into max HP.
	HPPerConstitution = 30
	// HPRegenPerConstitution converts panel constitution into HP/s.
	HPRegenPerConstitution = 0.2
	// MoveSpeedPerAgility converts panel agility into bonus move speed.
	MoveSpeedPerAgility = 0.4
	// DamagePerMainStat converts the main stat panel into attack damage.
	DamagePerMainStat = 2

	// DefaultCritDamage is the crit multiplier in percent when nothing else is configured.
	DefaultCritDamage = 150
)

// RecomputeDerived computes every derived field from the record's inputs.
// It does not read or write current HP/MP; ratio preservation is the caller's job.
func RecomputeDerived(s CombatantStats) DerivedStats {
	eq := s.Equipment
	level := s.DisplayLevel

	var d DerivedStats
	d.Constitution = s.Constitution.Panel(level, eq.Constitution+eq.AllStats)
	d.Martial = s.Martial.Panel(level, eq.Martial+eq.AllStats)
	d.Divinity = s.Divinity.Panel(level, eq.Divinity+eq.AllStats)
	// all_stats covers constitution, martial and divinity only
	d.Agility = s.Agility.Panel(level, eq.Agility)

	mainStat := d.Martial
	if s.MainStat == MainStatDivinity {
		mainStat = d.Divinity
	}
	lvl := level
	if lvl < 1 {
		lvl = 1
	}
	baseDamage := floorInt((s.Damage.Base + float64(lvl-1)*s.Damage.Gain) * (1 + s.Damage.Bonus))
	d.AttackDamage = baseDamage + mainStat*DamagePerMainStat + floorInt(s.Damage.Extra) + floorInt(eq.Damage)

	d.MaxHP = float64(d.Constitution*HPPerConstitution+BaseStatusHealth) + eq.HP
	if d.MaxHP < 1 {
		d.MaxHP = 1
	}
	d.MaxMP = BaseStatusMana + s.ExtraMaxMana
	if d.MaxMP < 0 {
		d.MaxMP = 0
	}
	d.HPRegen = float64(d.Constitution) * HPRegenPerConstitution
	d.ManaRegen = s.ExtraManaRegen + eq.ManaRegen
	d.Armor = s.BaseArmor + s.ExtraArmor + eq.Armor
	d.AttackSpeed = float64(d.Agility) + s.ExtraAttackSpeed
	d.MoveSpeed = s.BaseMoveSpeed + math.Floor(float64(d.Agility)*MoveSpeedPerAgility) + s.ExtraMoveSpeed + eq.MoveSpeed
	d.LifeOnHit = s.LifeOnHitBase + s.ExtraLifeOnHit

	d.CritChance = s.CritChance + eq.CritChance
	d.CritDamage = s.CritDamage + eq.CritDamage
	d.ArmorPen = s.ArmorPen + eq.ArmorPen
	d.SpellDamage = eq.SpellDamage
	d.FinalDmgIncrease = s.FinalDmgIncrease + eq.FinalDmgIncrease
	d.FinalDmgReduct = s.FinalDmgReduct + eq.FinalDmgReduct
	d.Block = eq.Block
	d.Evasion = s.Evasion + eq.Evasion
	return d
}

// PreserveRatio moves current toward the new maximum keeping current/max constant:
// newCurrent = old + (newMax - oldMax) * old/oldMax, floored and clamped to [floor, newMax].
func PreserveRatio(current, oldMax, newMax, floor float64) float64 {
	if oldMax == newMax {
		return clamp(current, floor, newMax)
	}
	ratio := 0.0
	if oldMax > 0 {
		ratio = current / oldMax
	}
	next := math.Floor(current + (newMax-oldMax)*ratio)
	return clamp(next, floor, newMax)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return hi
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func floorInt(v float64) int {
	return int(math.Floor(v))
}
