package model

import "fmt"

// CombatantID is the host entity index of a combatant (hero, summon, creep).
type CombatantID uint32

// PlayerID identifies a player slot. NoPlayer marks units without an owner.
type PlayerID int32

// NoPlayer is the owner of neutral and enemy units.
const NoPlayer PlayerID = -1

// MaxRank is the highest rank (禁忌).
const MaxRank = 5

// MainStat selects the primary attribute that feeds attack damage.
type MainStat string

const (
	MainStatMartial  MainStat = "Martial"
	MainStatDivinity MainStat = "Divinity"
)

// Valid reports whether the main stat is one of the supported values.
func (m MainStat) Valid() bool {
	return m == MainStatMartial || m == MainStatDivinity
}

// AttributeLayer holds the four contributors of one primary attribute.
// Bonus is a fraction (0.1 = +10%).
type AttributeLayer struct {
	Base  float64 `json:"base"`
	Gain  float64 `json:"gain"`
	Bonus float64 `json:"bonus"`
	Extra float64 `json:"extra"`
}

// Panel returns floor((base + (level-1)*gain + extra + flat) * (1 + bonus)).
func (l AttributeLayer) Panel(level int, flat float64) int {
	if level < 1 {
		level = 1
	}
	raw := (l.Base + float64(level-1)*l.Gain + l.Extra + flat) * (1 + l.Bonus)
	return floorInt(raw)
}

// CombatantStats is the authoritative stat record of one combatant.
// Owned by the attribute model; all writes go through its entry points.
type CombatantStats struct {
	ID            CombatantID `json:"id"`
	Owner         PlayerID    `json:"owner"`
	CharacterType string      `json:"character_type"`
	MainStat      MainStat    `json:"main_stat"`
	// Hero is false for summons; combat reads the owner's hero record for them.
	Hero bool `json:"hero"`

	Constitution AttributeLayer `json:"constitution"`
	Martial      AttributeLayer `json:"martial"`
	Divinity     AttributeLayer `json:"divinity"`
	Agility      AttributeLayer `json:"agility"`
	// Damage.Extra is extra_base_damage.
	Damage AttributeLayer `json:"damage"`

	ArmorPen         float64 `json:"armor_pen"`
	Lifesteal        float64 `json:"lifesteal"`
	LifeOnHitBase    float64 `json:"life_on_hit_base"`
	ExtraLifeOnHit   float64 `json:"extra_life_on_hit"`
	CritChance       float64 `json:"crit_chance"`
	CritDamage       float64 `json:"crit_damage"`
	ExtraAttackSpeed float64 `json:"extra_attack_speed"`
	ExtraManaRegen   float64 `json:"extra_mana_regen"`
	ExtraArmor       float64 `json:"extra_armor"`
	ExtraMaxMana     float64 `json:"extra_max_mana"`
	ExtraMoveSpeed   float64 `json:"extra_move_speed"`
	BaseMoveSpeed    float64 `json:"base_move_speed"`
	BaseArmor        float64 `json:"base_armor"`
	FinalDmgIncrease float64 `json:"final_dmg_increase"`
	FinalDmgReduct   float64 `json:"final_dmg_reduct"`
	Evasion          float64 `json:"evasion"`

	Rank              int `json:"rank"`
	DisplayLevel      int `json:"display_level"`
	CustomExp         int `json:"custom_exp"`
	CustomExpRequired int `json:"custom_exp_required"`

	// Equipment is the owner's bonus vector as of the last SetEquipment.
	Equipment EquipmentBonusVector `json:"equipment"`

	CurrentHP float64 `json:"current_hp"`
	CurrentMP float64 `json:"current_mp"`

	Derived DerivedStats `json:"derived"`
}

// DerivedStats are pure functions of CombatantStats inputs, see RecomputeDerived.
type DerivedStats struct {
	Constitution int `json:"constitution"`
	Martial      int `json:"martial"`
	Divinity     int `json:"divinity"`
	Agility      int `json:"agility"`
	AttackDamage int `json:"attack_damage"`

	MaxHP       float64 `json:"max_hp"`
	MaxMP       float64 `json:"max_mp"`
	HPRegen     float64 `json:"hp_regen"`
	ManaRegen   float64 `json:"mana_regen"`
	Armor       float64 `json:"armor"`
	AttackSpeed float64 `json:"attack_speed"`
	MoveSpeed   float64 `json:"move_speed"`
	LifeOnHit   float64 `json:"life_on_hit"`

	CritChance       float64 `json:"crit_chance"`
	CritDamage       float64 `json:"crit_damage"`
	ArmorPen         float64 `json:"armor_pen"`
	SpellDamage      float64 `json:"spell_damage"`
	FinalDmgIncrease float64 `json:"final_dmg_increase"`
	FinalDmgReduct   float64 `json:"final_dmg_reduct"`
	Block            float64 `json:"block"`
	Evasion          float64 `json:"evasion"`
}

// Clone returns a copy safe to hand to observers.
func (s *CombatantStats) Clone() *CombatantStats {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *CombatantStats) String() string {
	return fmt.Sprintf("combatant %d (%s, owner %d, rank %d, lvl %d)",
		s.ID, s.CharacterType, s.Owner, s.Rank, s.DisplayLevel)
}
