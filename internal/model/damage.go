package model

import "fmt"

// DamageType mirrors the host's damage categories.
type DamageType int

const (
	DamagePhysical DamageType = iota + 1
	DamageMagical
	DamagePure
)

func (t DamageType) String() string {
	switch t {
	case DamagePhysical:
		return "physical"
	case DamageMagical:
		return "magical"
	case DamagePure:
		return "pure"
	default:
		return fmt.Sprintf("damage(%d)", int(t))
	}
}

// Valid reports whether t is a known damage type.
func (t DamageType) Valid() bool {
	return t >= DamagePhysical && t <= DamagePure
}

// DamageEvent is a raw incoming damage event from the host's damage filter.
type DamageEvent struct {
	Attacker CombatantID `json:"attacker"`
	Victim   CombatantID `json:"victim"`
	Damage   float64     `json:"damage"`
	Type     DamageType  `json:"type"`
}

// DamageDisplay is the fire-and-forget event shown as floating combat text.
type DamageDisplay struct {
	Attacker CombatantID `json:"attacker"`
	Victim   CombatantID `json:"victim"`
	Amount   float64     `json:"amount"`
	Crit     bool        `json:"crit"`
	Type     DamageType  `json:"type"`
}
