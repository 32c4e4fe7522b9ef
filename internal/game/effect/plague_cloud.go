package effect

import (
	"github.com/udisondev/ascension/internal/model"
)

const PlagueCloudID = "plague_cloud"

// PlagueCloud deals divinity*dmg_multiplier magical damage to every enemy
// within radius on each tick. Divinity is read at tick time so buffs apply.
//
// Params: "radius" (300), "dmg_multiplier" (1).
type PlagueCloud struct {
	radius float64
	dmgMul float64
}

func NewPlagueCloud(params Params) (Effect, error) {
	radius, err := params.Float("radius", 300)
	if err != nil {
		return nil, err
	}
	mul, err := params.Float("dmg_multiplier", 1)
	if err != nil {
		return nil, err
	}
	return &PlagueCloud{radius: radius, dmgMul: mul}, nil
}

func (e *PlagueCloud) ID() string { return PlagueCloudID }

func (e *PlagueCloud) OnApply(*Context) {}

func (e *PlagueCloud) OnTick(ctx *Context) bool {
	if ctx.Host == nil {
		return false
	}
	damage := ctx.Attrs.GetStat(ctx.Caster, model.FieldDivinity) * e.dmgMul
	if damage < 1 {
		return true
	}
	for _, enemy := range ctx.Host.EnemiesInRadius(ctx.Caster, ctx.Target, e.radius) {
		ctx.Host.ApplyDamage(model.DamageEvent{
			Attacker: ctx.Caster,
			Victim:   enemy,
			Damage:   damage,
			Type:     model.DamageMagical,
		})
	}
	return true
}

func (e *PlagueCloud) OnExpire(*Context) {}
