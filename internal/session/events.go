package session

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/udisondev/ascension/internal/model"
)

// ErrInvalidEvent is returned for events that fail validation.
var ErrInvalidEvent = errors.New("invalid event")

// Kind discriminates inbound events. The values are the wire names of
// observer commands.
type Kind string

const (
	KindDamageFilter  Kind = "damage_filter"
	KindEntitySpawned Kind = "entity_spawned"
	KindEntityRemoved Kind = "entity_removed"
	KindPurchase      Kind = "purchase"
	KindRankUp        Kind = "rank_up"
	KindBreakthrough  Kind = "breakthrough"
	KindEquip         Kind = "equip"
	KindUnequip       Kind = "unequip"
	KindKillReward    Kind = "kill_reward"
	KindCastEffect    Kind = "cast_effect"
)

// Event is an inbound message from the host.
type Event interface {
	Kind() Kind
	Validate() error
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, fmt.Sprintf(format, args...))
}

func validPlayer(p model.PlayerID) error {
	if p < 0 {
		return invalid("player %d", p)
	}
	return nil
}

// DamageFilter asks for the final amount of a raw damage event.
type DamageFilter struct {
	model.DamageEvent
}

func (DamageFilter) Kind() Kind { return KindDamageFilter }

func (e DamageFilter) Validate() error {
	if !e.Type.Valid() {
		return invalid("damage type %d", e.Type)
	}
	if !finite(e.Damage) || e.Damage < 0 {
		return invalid("damage %v", e.Damage)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// EntitySpawned announces a new unit. Units with an owner are that player's
// hero unless Summon is set.
type EntitySpawned struct {
	Combatant     model.CombatantID `json:"combatant"`
	Owner         model.PlayerID    `json:"owner"`
	CharacterType string            `json:"character_type"`
	Summon        bool              `json:"summon"`
}

func (EntitySpawned) Kind() Kind { return KindEntitySpawned }

func (e EntitySpawned) Validate() error {
	if e.Owner < model.NoPlayer {
		return invalid("owner %d", e.Owner)
	}
	if e.Summon && e.Owner == model.NoPlayer {
		return invalid("summon %d without owner", e.Combatant)
	}
	return nil
}

// EntityRemoved announces a unit leaving the game for good.
type EntityRemoved struct {
	Combatant model.CombatantID `json:"combatant"`
}

func (EntityRemoved) Kind() Kind { return KindEntityRemoved }

func (EntityRemoved) Validate() error { return nil }

// PurchaseRequest buys a stat. A SlotIndex of 0 or more buys that slot of
// the player's current shop tier; a negative one is a plain grant of Amount.
type PurchaseRequest struct {
	Player    model.PlayerID `json:"player"`
	Stat      string         `json:"stat"`
	Amount    float64        `json:"amount"`
	SlotIndex int            `json:"slot_index"`
}

func (PurchaseRequest) Kind() Kind { return KindPurchase }

func (e PurchaseRequest) Validate() error {
	if err := validPlayer(e.Player); err != nil {
		return err
	}
	if e.SlotIndex >= model.SlotsPerTier {
		return invalid("slot index %d", e.SlotIndex)
	}
	if e.SlotIndex < 0 && e.Stat == "" {
		return invalid("grant without stat")
	}
	if !finite(e.Amount) {
		return invalid("grant amount %v", e.Amount)
	}
	return nil
}

// RankUpRequest asks to advance the player's rank.
type RankUpRequest struct {
	Player model.PlayerID `json:"player"`
}

func (RankUpRequest) Kind() Kind { return KindRankUp }

func (e RankUpRequest) Validate() error { return validPlayer(e.Player) }

// BreakthroughRequest asks to advance the shop tier.
type BreakthroughRequest struct {
	Player     model.PlayerID `json:"player"`
	TargetTier int            `json:"target_tier"`
}

func (BreakthroughRequest) Kind() Kind { return KindBreakthrough }

func (e BreakthroughRequest) Validate() error { return validPlayer(e.Player) }

// EquipRequest puts an artifact into a slot.
type EquipRequest struct {
	Player    model.PlayerID `json:"player"`
	SlotIndex int            `json:"slot_index"`
	ItemID    string         `json:"item_id"`
}

func (EquipRequest) Kind() Kind { return KindEquip }

func (e EquipRequest) Validate() error {
	if err := validPlayer(e.Player); err != nil {
		return err
	}
	if e.ItemID == "" {
		return invalid("empty item id")
	}
	return nil
}

// UnequipRequest empties a slot.
type UnequipRequest struct {
	Player    model.PlayerID `json:"player"`
	SlotIndex int            `json:"slot_index"`
}

func (UnequipRequest) Kind() Kind { return KindUnequip }

func (e UnequipRequest) Validate() error { return validPlayer(e.Player) }

// KillReward grants the reward of a victim type to the killing player.
type KillReward struct {
	Player     model.PlayerID `json:"player"`
	VictimType string         `json:"victim_type"`
}

func (KillReward) Kind() Kind { return KindKillReward }

func (e KillReward) Validate() error { return validPlayer(e.Player) }

// CastEffect starts a combat effect.
type CastEffect struct {
	Effect   string            `json:"effect"`
	Caster   model.CombatantID `json:"caster"`
	Target   model.CombatantID `json:"target"`
	Duration time.Duration     `json:"duration"`
	Period   time.Duration     `json:"period"`
	Params   map[string]string `json:"params"`
}

func (CastEffect) Kind() Kind { return KindCastEffect }

func (e CastEffect) Validate() error {
	if e.Effect == "" {
		return invalid("empty effect id")
	}
	if e.Duration <= 0 {
		return invalid("duration %s", e.Duration)
	}
	if e.Period < 0 {
		return invalid("period %s", e.Period)
	}
	return nil
}

// Reply is the synchronous answer to an event. Rejections are replies with
// OK false, not errors.
type Reply struct {
	OK      bool
	Reason  string
	Message string
	// Damage is the adjusted amount of a damage filter.
	Damage float64
}

func accepted() Reply { return Reply{OK: true} }

func rejected(r model.Reason) Reply {
	return Reply{Reason: r.Code, Message: r.Message}
}
