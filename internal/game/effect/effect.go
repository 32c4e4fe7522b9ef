// Package effect runs timed combat effects (buffs, shields, damage zones)
// on top of the attribute model.
package effect

import (
	"fmt"
	"strconv"

	"github.com/udisondev/ascension/internal/model"
)

// Effect is one timed effect instance.
// OnApply runs once, OnTick every period (return false to end early),
// OnExpire once when the effect ends for any reason.
type Effect interface {
	ID() string
	OnApply(ctx *Context)
	OnTick(ctx *Context) bool
	OnExpire(ctx *Context)
}

// Absorber is implemented by effects that soak incoming damage.
// Absorb returns the damage left over and whether the effect is used up.
type Absorber interface {
	Absorb(ctx *Context, damage float64) (float64, bool)
}

// Attributes is the part of the attribute model effects may use.
type Attributes interface {
	GetStat(id model.CombatantID, field model.Field) float64
	AddStat(id model.CombatantID, field model.Field, delta float64) bool
}

// DamageApplier deals damage through the host's damage pipeline.
type DamageApplier interface {
	ApplyDamage(ev model.DamageEvent)
}

// Host is the engine side: geometry and damage delivery.
type Host interface {
	DamageApplier
	// EnemiesInRadius returns living enemies of caster around center.
	EnemiesInRadius(caster, center model.CombatantID, radius float64) []model.CombatantID
}

// Context is passed to every lifecycle call.
type Context struct {
	Caster model.CombatantID
	// Target is the unit carrying the effect.
	Target model.CombatantID
	Attrs  Attributes
	Host   Host
}

// Params are the string parameters of an effect, as found in ability tables.
type Params map[string]string

// Float returns a numeric parameter or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}
