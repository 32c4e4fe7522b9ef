package effect

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/udisondev/ascension/internal/model"
)

// Spec describes an effect to apply.
type Spec struct {
	ID       string
	Caster   model.CombatantID
	Target   model.CombatantID
	Duration time.Duration
	// Period is the tick interval; 0 means the effect never ticks.
	Period time.Duration
	Params Params
}

// Active is a running effect.
type Active struct {
	Effect    Effect
	Caster    model.CombatantID
	Remaining time.Duration
	Period    time.Duration

	sincePeriod time.Duration
	done        bool
	ctx         Context
}

// Manager tracks active effects per combatant. Not safe for concurrent use.
type Manager struct {
	attrs  Attributes
	host   Host
	active map[model.CombatantID][]*Active
}

// NewManager creates a manager. host may be nil when no effect needs it.
func NewManager(attrs Attributes, host Host) *Manager {
	return &Manager{
		attrs:  attrs,
		host:   host,
		active: make(map[model.CombatantID][]*Active),
	}
}

// Apply creates and starts an effect. The same effect from the same caster on
// the same target only refreshes its duration.
func (m *Manager) Apply(spec Spec) error {
	if spec.Duration <= 0 {
		return errors.New("effect duration must be positive")
	}
	for _, a := range m.active[spec.Target] {
		if a.Effect.ID() == spec.ID && a.Caster == spec.Caster && !a.done {
			a.Remaining = spec.Duration
			return nil
		}
	}

	e, err := CreateEffect(spec.ID, spec.Params)
	if err != nil {
		return err
	}
	a := &Active{
		Effect:    e,
		Caster:    spec.Caster,
		Remaining: spec.Duration,
		Period:    spec.Period,
		ctx: Context{
			Caster: spec.Caster,
			Target: spec.Target,
			Attrs:  m.attrs,
			Host:   m.host,
		},
	}
	m.active[spec.Target] = append(m.active[spec.Target], a)
	e.OnApply(&a.ctx)
	slog.Debug("effect applied", "effect", spec.ID, "caster", spec.Caster, "target", spec.Target, "duration", spec.Duration)
	return nil
}

// Tick advances every effect by elapsed. Ticks never fire past an effect's end.
func (m *Manager) Tick(elapsed time.Duration) {
	for _, target := range m.targets() {
		// ticks may deal damage that re-enters the manager
		var ended []*Active
		for _, a := range slices.Clone(m.active[target]) {
			if a.done {
				continue
			}
			if !m.advance(a, elapsed) {
				ended = append(ended, a)
			}
		}
		m.drop(target, ended)
	}
}

func (m *Manager) advance(a *Active, elapsed time.Duration) bool {
	lived := min(elapsed, a.Remaining)
	a.Remaining -= elapsed
	if a.Period > 0 {
		a.sincePeriod += lived
		for a.sincePeriod >= a.Period {
			a.sincePeriod -= a.Period
			if !a.Effect.OnTick(&a.ctx) {
				return false
			}
		}
	}
	return a.Remaining > 0
}

// AbsorbDamage lets the victim's shields soak damage. Used up shields end
// immediately. Returns the damage left over.
func (m *Manager) AbsorbDamage(victim model.CombatantID, damage float64) float64 {
	if damage <= 0 {
		return damage
	}
	var broken []*Active
	for _, a := range m.active[victim] {
		ab, ok := a.Effect.(Absorber)
		if !ok || a.done {
			continue
		}
		var done bool
		damage, done = ab.Absorb(&a.ctx, damage)
		if done {
			broken = append(broken, a)
		}
		if damage <= 0 {
			break
		}
	}
	m.drop(victim, broken)
	return max(damage, 0)
}

// Remove ends every effect carried by target.
func (m *Manager) Remove(target model.CombatantID) {
	ended := m.active[target]
	delete(m.active, target)
	for _, a := range ended {
		m.expire(a)
	}
}

// Active returns the ids of the effects carried by target.
func (m *Manager) Active(target model.CombatantID) []string {
	ids := make([]string, 0, len(m.active[target]))
	for _, a := range m.active[target] {
		ids = append(ids, a.Effect.ID())
	}
	return ids
}

// Count returns the number of running effects.
func (m *Manager) Count() int {
	n := 0
	for _, list := range m.active {
		n += len(list)
	}
	return n
}

// drop removes ended effects of target and runs their expiry.
func (m *Manager) drop(target model.CombatantID, ended []*Active) {
	if len(ended) == 0 {
		return
	}
	m.store(target, slices.DeleteFunc(slices.Clone(m.active[target]), func(a *Active) bool {
		return slices.Contains(ended, a)
	}))
	for _, a := range ended {
		m.expire(a)
	}
}

func (m *Manager) expire(a *Active) {
	if a.done {
		return
	}
	a.done = true
	a.Effect.OnExpire(&a.ctx)
	slog.Debug("effect expired", "effect", a.Effect.ID(), "target", a.ctx.Target)
}

func (m *Manager) store(target model.CombatantID, list []*Active) {
	if len(list) == 0 {
		delete(m.active, target)
		return
	}
	m.active[target] = list
}

func (m *Manager) targets() []model.CombatantID {
	ids := make([]model.CombatantID, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
