package model

// Field names a stat of CombatantStats. The string value is the wire name
// used by purchases, effects and snapshots.
type Field string

// Additive fields: AddStat accepts these.
const (
	FieldExtraConstitution Field = "extra_constitution"
	FieldExtraMartial      Field = "extra_martial"
	FieldExtraDivinity     Field = "extra_divinity"
	FieldExtraAgility      Field = "extra_agility"
	FieldExtraBaseDamage   Field = "extra_base_damage"
	FieldExtraLifeOnHit    Field = "extra_life_on_hit"
	FieldExtraAttackSpeed  Field = "extra_attack_speed"
	FieldExtraManaRegen    Field = "extra_mana_regen"
	FieldExtraArmor        Field = "extra_armor"
	FieldExtraMaxMana      Field = "extra_max_mana"
	FieldExtraMoveSpeed    Field = "extra_move_speed"
	FieldArmorPen          Field = "armor_pen"
	FieldLifesteal         Field = "lifesteal"
	FieldCritChance        Field = "crit_chance"
	FieldCritDamage        Field = "crit_damage"
	FieldFinalDmgIncrease  Field = "final_dmg_increase"
	FieldFinalDmgReduct    Field = "final_dmg_reduct"
	FieldEvasion           Field = "evasion"
	FieldBaseMoveSpeed     Field = "base_move_speed"
)

// Read-only fields: configuration layers, progression and derived values.
const (
	FieldConstitution      Field = "constitution"
	FieldMartial           Field = "martial"
	FieldDivinity          Field = "divinity"
	FieldAgility           Field = "agility"
	FieldAttackDamage      Field = "attack_damage"
	FieldConstitutionBase  Field = "constitution_base"
	FieldConstitutionGain  Field = "constitution_gain"
	FieldConstitutionBonus Field = "constitution_bonus"
	FieldMartialBase       Field = "martial_base"
	FieldMartialGain       Field = "martial_gain"
	FieldMartialBonus      Field = "martial_bonus"
	FieldDivinityBase      Field = "divinity_base"
	FieldDivinityGain      Field = "divinity_gain"
	FieldDivinityBonus     Field = "divinity_bonus"
	FieldAgilityBase       Field = "agility_base"
	FieldAgilityGain       Field = "agility_gain"
	FieldAgilityBonus      Field = "agility_bonus"
	FieldDamageBase        Field = "damage_base"
	FieldDamageGain        Field = "damage_gain"
	FieldDamageBonus       Field = "damage_bonus"
	FieldLifeOnHitBase     Field = "life_on_hit_base"
	FieldLifeOnHit         Field = "life_on_hit"
	FieldMaxHP             Field = "max_hp"
	FieldMaxMP             Field = "max_mp"
	FieldCurrentHP         Field = "current_hp"
	FieldCurrentMP         Field = "current_mp"
	FieldArmor             Field = "armor"
	FieldAttackSpeed       Field = "attack_speed"
	FieldMoveSpeed         Field = "move_speed"
	FieldManaRegen         Field = "mana_regen"
	FieldHPRegen           Field = "hp_regen"
	FieldBlock             Field = "block"
	FieldSpellDamage       Field = "spell_damage"
	FieldRank              Field = "rank"
	FieldDisplayLevel      Field = "display_level"
	FieldCustomExp         Field = "custom_exp"
	FieldCustomExpRequired Field = "custom_exp_required"
)

type fieldAccess struct {
	get func(s *CombatantStats) float64
	// add is nil for read-only fields.
	add func(s *CombatantStats, delta float64)
}

var fieldTable = map[Field]fieldAccess{
	FieldExtraConstitution: additive(func(s *CombatantStats) *float64 { return &s.Constitution.Extra }),
	FieldExtraMartial:      additive(func(s *CombatantStats) *float64 { return &s.Martial.Extra }),
	FieldExtraDivinity:     additive(func(s *CombatantStats) *float64 { return &s.Divinity.Extra }),
	FieldExtraAgility:      additive(func(s *CombatantStats) *float64 { return &s.Agility.Extra }),
	FieldExtraBaseDamage:   additive(func(s *CombatantStats) *float64 { return &s.Damage.Extra }),
	FieldExtraLifeOnHit:    additive(func(s *CombatantStats) *float64 { return &s.ExtraLifeOnHit }),
	FieldExtraAttackSpeed:  additive(func(s *CombatantStats) *float64 { return &s.ExtraAttackSpeed }),
	FieldExtraManaRegen:    additive(func(s *CombatantStats) *float64 { return &s.ExtraManaRegen }),
	FieldExtraArmor:        additive(func(s *CombatantStats) *float64 { return &s.ExtraArmor }),
	FieldExtraMaxMana:      additive(func(s *CombatantStats) *float64 { return &s.ExtraMaxMana }),
	FieldExtraMoveSpeed:    additive(func(s *CombatantStats) *float64 { return &s.ExtraMoveSpeed }),
	FieldArmorPen:          additive(func(s *CombatantStats) *float64 { return &s.ArmorPen }),
	FieldLifesteal:         additive(func(s *CombatantStats) *float64 { return &s.Lifesteal }),
	FieldCritChance:        additive(func(s *CombatantStats) *float64 { return &s.CritChance }),
	FieldCritDamage:        additive(func(s *CombatantStats) *float64 { return &s.CritDamage }),
	FieldFinalDmgIncrease:  additive(func(s *CombatantStats) *float64 { return &s.FinalDmgIncrease }),
	FieldFinalDmgReduct:    additive(func(s *CombatantStats) *float64 { return &s.FinalDmgReduct }),
	FieldEvasion:           additive(func(s *CombatantStats) *float64 { return &s.Evasion }),
	FieldBaseMoveSpeed:     additive(func(s *CombatantStats) *float64 { return &s.BaseMoveSpeed }),

	FieldConstitution:      readOnly(func(s *CombatantStats) float64 { return float64(s.Derived.Constitution) }),
	FieldMartial:           readOnly(func(s *CombatantStats) float64 { return float64(s.Derived.Martial) }),
	FieldDivinity:          readOnly(func(s *CombatantStats) float64 { return float64(s.Derived.Divinity) }),
	FieldAgility:           readOnly(func(s *CombatantStats) float64 { return float64(s.Derived.Agility) }),
	FieldAttackDamage:      readOnly(func(s *CombatantStats) float64 { return float64(s.Derived.AttackDamage) }),
	FieldConstitutionBase:  readOnly(func(s *CombatantStats) float64 { return s.Constitution.Base }),
	FieldConstitutionGain:  readOnly(func(s *CombatantStats) float64 { return s.Constitution.Gain }),
	FieldConstitutionBonus: readOnly(func(s *CombatantStats) float64 { return s.Constitution.Bonus }),
	FieldMartialBase:       readOnly(func(s *CombatantStats) float64 { return s.Martial.Base }),
	FieldMartialGain:       readOnly(func(s *CombatantStats) float64 { return s.Martial.Gain }),
	FieldMartialBonus:      readOnly(func(s *CombatantStats) float64 { return s.Martial.Bonus }),
	FieldDivinityBase:      readOnly(func(s *CombatantStats) float64 { return s.Divinity.Base }),
	FieldDivinityGain:      readOnly(func(s *CombatantStats) float64 { return s.Divinity.Gain }),
	FieldDivinityBonus:     readOnly(func(s *CombatantStats) float64 { return s.Divinity.Bonus }),
	FieldAgilityBase:       readOnly(func(s *CombatantStats) float64 { return s.Agility.Base }),
	FieldAgilityGain:       readOnly(func(s *CombatantStats) float64 { return s.Agility.Gain }),
	FieldAgilityBonus:      readOnly(func(s *CombatantStats) float64 { return s.Agility.Bonus }),
	FieldDamageBase:        readOnly(func(s *CombatantStats) float64 { return s.Damage.Base }),
	FieldDamageGain:        readOnly(func(s *CombatantStats) float64 { return s.Damage.Gain }),
	FieldDamageBonus:       readOnly(func(s *CombatantStats) float64 { return s.Damage.Bonus }),
	FieldLifeOnHitBase:     readOnly(func(s *CombatantStats) float64 { return s.LifeOnHitBase }),
	FieldLifeOnHit:         readOnly(func(s *CombatantStats) float64 { return s.Derived.LifeOnHit }),
	FieldMaxHP:             readOnly(func(s *CombatantStats) float64 { return s.Derived.MaxHP }),
	FieldMaxMP:             readOnly(func(s *CombatantStats) float64 { return s.Derived.MaxMP }),
	FieldCurrentHP:         readOnly(func(s *CombatantStats) float64 { return s.CurrentHP }),
	FieldCurrentMP:         readOnly(func(s *CombatantStats) float64 { return s.CurrentMP }),
	FieldArmor:             readOnly(func(s *CombatantStats) float64 { return s.Derived.Armor }),
	FieldAttackSpeed:       readOnly(func(s *CombatantStats) float64 { return s.Derived.AttackSpeed }),
	FieldMoveSpeed:         readOnly(func(s *CombatantStats) float64 { return s.Derived.MoveSpeed }),
	FieldManaRegen:         readOnly(func(s *CombatantStats) float64 { return s.Derived.ManaRegen }),
	FieldHPRegen:           readOnly(func(s *CombatantStats) float64 { return s.Derived.HPRegen }),
	FieldBlock:             readOnly(func(s *CombatantStats) float64 { return s.Derived.Block }),
	FieldSpellDamage:       readOnly(func(s *CombatantStats) float64 { return s.Derived.SpellDamage }),
	FieldRank:              readOnly(func(s *CombatantStats) float64 { return float64(s.Rank) }),
	FieldDisplayLevel:      readOnly(func(s *CombatantStats) float64 { return float64(s.DisplayLevel) }),
	FieldCustomExp:         readOnly(func(s *CombatantStats) float64 { return float64(s.CustomExp) }),
	FieldCustomExpRequired: readOnly(func(s *CombatantStats) float64 { return float64(s.CustomExpRequired) }),
}

func additive(ptr func(s *CombatantStats) *float64) fieldAccess {
	return fieldAccess{
		get: func(s *CombatantStats) float64 { return *ptr(s) },
		add: func(s *CombatantStats, delta float64) { *ptr(s) += delta },
	}
}

func readOnly(get func(s *CombatantStats) float64) fieldAccess {
	return fieldAccess{get: get}
}

// Known reports whether the field exists.
func (f Field) Known() bool {
	_, ok := fieldTable[f]
	return ok
}

// Additive reports whether AddStat may mutate the field.
func (f Field) Additive() bool {
	a, ok := fieldTable[f]
	return ok && a.add != nil
}

// Get reads the field. Unknown fields read as 0.
func (s *CombatantStats) Get(f Field) float64 {
	a, ok := fieldTable[f]
	if !ok {
		return 0
	}
	return a.get(s)
}

// AddTo adds delta to an additive field. Returns false for unknown or read-only fields.
// Derived values are not refreshed here.
func (s *CombatantStats) AddTo(f Field, delta float64) bool {
	a, ok := fieldTable[f]
	if !ok || a.add == nil {
		return false
	}
	a.add(s, delta)
	return true
}
