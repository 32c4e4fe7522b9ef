package combat

import (
	"math"
	"math/rand/v2"

	"github.com/udisondev/ascension/internal/model"
)

// CritRoller decides whether an attack crits. chance is in percent.
type CritRoller interface {
	Roll(attacker model.CombatantID, chance float64) bool
}

// Uniform rolls every attack independently.
type Uniform struct {
	rng *rand.Rand
}

// NewUniform creates a uniform roller. A nil src uses the global generator.
func NewUniform(src rand.Source) *Uniform {
	u := &Uniform{}
	if src != nil {
		u.rng = rand.New(src)
	}
	return u
}

func (u *Uniform) Roll(_ model.CombatantID, chance float64) bool {
	if chance <= 0 {
		return false
	}
	if chance >= 100 {
		return true
	}
	return u.float() < chance/100
}

func (u *Uniform) float() float64 {
	if u.rng == nil {
		return rand.Float64()
	}
	return u.rng.Float64()
}

// PRD is the pseudo-random distribution used for crits: each miss raises the
// next attempt's probability by C, a hit resets it. The long run rate equals
// the nominal chance while streaks of misses and hits are rare.
//
// Miss counters are kept per attacker.
type PRD struct {
	rng    *rand.Rand
	misses map[model.CombatantID]int
	consts map[float64]float64
}

// NewPRD creates a PRD roller. A nil src uses a randomly seeded PCG.
func NewPRD(src rand.Source) *PRD {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &PRD{
		rng:    rand.New(src),
		misses: make(map[model.CombatantID]int),
		consts: make(map[float64]float64),
	}
}

func (p *PRD) Roll(attacker model.CombatantID, chance float64) bool {
	if chance <= 0 {
		return false
	}
	if chance >= 100 {
		delete(p.misses, attacker)
		return true
	}

	c, ok := p.consts[chance]
	if !ok {
		c = PRDConstant(chance / 100)
		p.consts[chance] = c
	}

	n := p.misses[attacker] + 1
	if p.rng.Float64() < c*float64(n) {
		delete(p.misses, attacker)
		return true
	}
	p.misses[attacker] = n
	return false
}

// Forget drops the miss counter of a removed attacker.
func (p *PRD) Forget(attacker model.CombatantID) {
	delete(p.misses, attacker)
}

// PRDConstant returns C such that the long run hit rate of the
// distribution equals p (0 < p < 1).
func PRDConstant(p float64) float64 {
	lo, hi := 0.0, p
	for range 64 {
		mid := (lo + hi) / 2
		if prdRate(mid) > p {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}

// prdRate is the expected hit rate for a given C.
func prdRate(c float64) float64 {
	if c <= 0 {
		return 0
	}
	var hitBefore, expectedN float64
	maxN := int(math.Ceil(1 / c))
	for n := 1; n <= maxN; n++ {
		hitOnN := math.Min(1, float64(n)*c) * (1 - hitBefore)
		hitBefore += hitOnN
		expectedN += float64(n) * hitOnN
	}
	return 1 / expectedN
}
