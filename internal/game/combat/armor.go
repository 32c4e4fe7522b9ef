package combat

import "math"

// ArmorFactor is the per-point coefficient of the armor curve.
const ArmorFactor = 0.052

// ArmorReduction returns the fraction of physical damage removed by armor:
// a*0.052 / (1 + |a|*0.052). Negative armor amplifies damage.
func ArmorReduction(armor float64) float64 {
	return armor * ArmorFactor / (1 + math.Abs(armor)*ArmorFactor)
}

// ArmorPenMultiplier is the damage factor gained by ignoring pen points of
// the victim's armor. Effective armor never goes below zero.
//
// Returns 1 when pen <= 0 or when the victim's armor already removes all damage.
func ArmorPenMultiplier(pen, victimArmor float64) float64 {
	if pen <= 0 {
		return 1
	}
	original := 1 - ArmorReduction(victimArmor)
	if original <= 0 {
		return 1
	}
	effective := math.Max(0, victimArmor-pen)
	return (1 - ArmorReduction(effective)) / original
}
