package effect

import (
	"fmt"
	"slices"
)

// Factory builds an effect from its parameters.
type Factory func(params Params) (Effect, error)

// effectRegistry maps effect id to factory.
var effectRegistry = map[string]Factory{}

// RegisterEffect registers a factory under id, replacing any previous one.
func RegisterEffect(id string, factory Factory) {
	effectRegistry[id] = factory
}

// CreateEffect builds a registered effect.
func CreateEffect(id string, params Params) (Effect, error) {
	factory, ok := effectRegistry[id]
	if !ok {
		return nil, fmt.Errorf("unknown effect: %s", id)
	}
	e, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("creating effect %s: %w", id, err)
	}
	return e, nil
}

// Registered returns the sorted ids of every registered effect.
func Registered() []string {
	ids := make([]string, 0, len(effectRegistry))
	for id := range effectRegistry {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func init() {
	RegisterEffect(StatBuffID, NewStatBuff)
	RegisterEffect(GoldenBellID, NewGoldenBell)
	RegisterEffect(PlagueCloudID, NewPlagueCloud)
}
