package effect

import (
	"github.com/udisondev/ascension/internal/model"
)

const GoldenBellID = "golden_bell"

// GoldenBell is a shield worth constitution*shield_multiplier. When it breaks
// or runs out it explodes for constitution*dmg_multiplier magical damage to
// enemies within explosion_radius. Constitution is read once, at cast time.
//
// Params: "shield_multiplier" (5), "dmg_multiplier" (5), "explosion_radius" (400).
type GoldenBell struct {
	shieldMul float64
	dmgMul    float64
	radius    float64

	constitution float64
	shield       float64
}

func NewGoldenBell(params Params) (Effect, error) {
	e := &GoldenBell{}
	var err error
	if e.shieldMul, err = params.Float("shield_multiplier", 5); err != nil {
		return nil, err
	}
	if e.dmgMul, err = params.Float("dmg_multiplier", 5); err != nil {
		return nil, err
	}
	if e.radius, err = params.Float("explosion_radius", 400); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *GoldenBell) ID() string { return GoldenBellID }

func (e *GoldenBell) OnApply(ctx *Context) {
	e.constitution = ctx.Attrs.GetStat(ctx.Caster, model.FieldConstitution)
	e.shield = e.constitution * e.shieldMul
}

func (e *GoldenBell) OnTick(*Context) bool { return true }

func (e *GoldenBell) Absorb(_ *Context, damage float64) (float64, bool) {
	absorbed := min(damage, e.shield)
	e.shield -= absorbed
	return damage - absorbed, e.shield <= 0
}

func (e *GoldenBell) OnExpire(ctx *Context) {
	if ctx.Host == nil {
		return
	}
	damage := e.constitution * e.dmgMul
	if damage < 1 {
		return
	}
	for _, enemy := range ctx.Host.EnemiesInRadius(ctx.Caster, ctx.Target, e.radius) {
		ctx.Host.ApplyDamage(model.DamageEvent{
			Attacker: ctx.Caster,
			Victim:   enemy,
			Damage:   damage,
			Type:     model.DamageMagical,
		})
	}
}
