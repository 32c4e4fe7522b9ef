package model

import "fmt"

// SlotCategory is an equipment category. Values double as slot indices.
type SlotCategory int

const (
	SlotWeapon SlotCategory = iota
	SlotArmor
	SlotHelm
	SlotAccessory
	SlotBoots
	SlotAmulet

	SlotCount = 6
)

var slotNames = [SlotCount]string{"weapon", "armor", "helm", "accessory", "boots", "amulet"}

func (c SlotCategory) String() string {
	if !c.Valid() {
		return fmt.Sprintf("slot(%d)", int(c))
	}
	return slotNames[c]
}

// Valid reports whether c is one of the six categories.
func (c SlotCategory) Valid() bool {
	return c >= 0 && c < SlotCount
}

// ParseSlotCategory maps a config name ("weapon", ...) to its category.
func ParseSlotCategory(name string) (SlotCategory, bool) {
	for i, n := range slotNames {
		if n == name {
			return SlotCategory(i), true
		}
	}
	return 0, false
}

// BonusField names one component of EquipmentBonusVector.
type BonusField string

const (
	BonusDamage           BonusField = "damage"
	BonusArmorPen         BonusField = "armor_pen"
	BonusHP               BonusField = "hp"
	BonusArmor            BonusField = "armor"
	BonusConstitution     BonusField = "constitution"
	BonusMartial          BonusField = "martial"
	BonusDivinity         BonusField = "divinity"
	BonusAgility          BonusField = "agility"
	BonusAllStats         BonusField = "all_stats"
	BonusManaRegen        BonusField = "mana_regen"
	BonusCritChance       BonusField = "crit_chance"
	BonusCritDamage       BonusField = "crit_damage"
	BonusMoveSpeed        BonusField = "move_speed"
	BonusEvasion          BonusField = "evasion"
	BonusSpellDamage      BonusField = "spell_damage"
	BonusBlock            BonusField = "block"
	BonusFinalDmgIncrease BonusField = "final_dmg_increase"
	BonusFinalDmgReduct   BonusField = "final_dmg_reduct"
)

// categoryFields lists the fields a category may contribute. Anything else an
// item declares is ignored by the aggregator.
var categoryFields = [SlotCount][]BonusField{
	SlotWeapon:    {BonusDamage, BonusArmorPen},
	SlotArmor:     {BonusHP, BonusConstitution, BonusArmor},
	SlotHelm:      {BonusDivinity, BonusManaRegen, BonusSpellDamage, BonusBlock, BonusFinalDmgReduct},
	SlotAccessory: {BonusCritChance, BonusCritDamage},
	SlotBoots:     {BonusMoveSpeed, BonusAgility, BonusEvasion},
	SlotAmulet:    {BonusAllStats, BonusFinalDmgReduct, BonusFinalDmgIncrease},
}

// Fields returns the bonus fields summed for this category.
func (c SlotCategory) Fields() []BonusField {
	if !c.Valid() {
		return nil
	}
	return categoryFields[c]
}

// EquipmentBonusVector is the aggregate of every equipped artifact of a player.
// It is a value: recompute it, never mutate a published one.
type EquipmentBonusVector struct {
	Damage           float64 `json:"damage" yaml:"damage"`
	ArmorPen         float64 `json:"armor_pen" yaml:"armor_pen"`
	HP               float64 `json:"hp" yaml:"hp"`
	Armor            float64 `json:"armor" yaml:"armor"`
	Constitution     float64 `json:"constitution" yaml:"constitution"`
	Martial          float64 `json:"martial" yaml:"martial"`
	Divinity         float64 `json:"divinity" yaml:"divinity"`
	Agility          float64 `json:"agility" yaml:"agility"`
	AllStats         float64 `json:"all_stats" yaml:"all_stats"`
	ManaRegen        float64 `json:"mana_regen" yaml:"mana_regen"`
	CritChance       float64 `json:"crit_chance" yaml:"crit_chance"`
	CritDamage       float64 `json:"crit_damage" yaml:"crit_damage"`
	MoveSpeed        float64 `json:"move_speed" yaml:"move_speed"`
	Evasion          float64 `json:"evasion" yaml:"evasion"`
	SpellDamage      float64 `json:"spell_damage" yaml:"spell_damage"`
	Block            float64 `json:"block" yaml:"block"`
	FinalDmgIncrease float64 `json:"final_dmg_increase" yaml:"final_dmg_increase"`
	FinalDmgReduct   float64 `json:"final_dmg_reduct" yaml:"final_dmg_reduct"`
}

func (v *EquipmentBonusVector) ptr(f BonusField) *float64 {
	switch f {
	case BonusDamage:
		return &v.Damage
	case BonusArmorPen:
		return &v.ArmorPen
	case BonusHP:
		return &v.HP
	case BonusArmor:
		return &v.Armor
	case BonusConstitution:
		return &v.Constitution
	case BonusMartial:
		return &v.Martial
	case BonusDivinity:
		return &v.Divinity
	case BonusAgility:
		return &v.Agility
	case BonusAllStats:
		return &v.AllStats
	case BonusManaRegen:
		return &v.ManaRegen
	case BonusCritChance:
		return &v.CritChance
	case BonusCritDamage:
		return &v.CritDamage
	case BonusMoveSpeed:
		return &v.MoveSpeed
	case BonusEvasion:
		return &v.Evasion
	case BonusSpellDamage:
		return &v.SpellDamage
	case BonusBlock:
		return &v.Block
	case BonusFinalDmgIncrease:
		return &v.FinalDmgIncrease
	case BonusFinalDmgReduct:
		return &v.FinalDmgReduct
	}
	return nil
}

// Get returns one component; unknown fields read as 0.
func (v EquipmentBonusVector) Get(f BonusField) float64 {
	if p := v.ptr(f); p != nil {
		return *p
	}
	return 0
}

// AddMasked returns v plus the components of other allowed for category c.
func (v EquipmentBonusVector) AddMasked(other EquipmentBonusVector, c SlotCategory) EquipmentBonusVector {
	for _, f := range c.Fields() {
		*v.ptr(f) += other.Get(f)
	}
	return v
}

// ArtifactSlot is one equipment slot of a player. Empty slots have ItemID "".
type ArtifactSlot struct {
	ItemID      string `json:"item_id"`
	Tier        int    `json:"tier"`
	DisplayName string `json:"display_name"`
	XP          int    `json:"xp"`
	XPRequired  int    `json:"xp_required"`
}

// Empty reports whether nothing is equipped.
func (s ArtifactSlot) Empty() bool {
	return s.ItemID == ""
}

// MaxArtifactTier is the highest artifact tier.
const MaxArtifactTier = 5
