package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/ascension/internal/statesync"
)

// decoders builds an empty event per command type.
var decoders = map[Kind]func() Event{
	KindDamageFilter:  func() Event { return &DamageFilter{} },
	KindEntitySpawned: func() Event { return &EntitySpawned{} },
	KindEntityRemoved: func() Event { return &EntityRemoved{} },
	KindPurchase:      func() Event { return &PurchaseRequest{} },
	KindRankUp:        func() Event { return &RankUpRequest{} },
	KindBreakthrough:  func() Event { return &BreakthroughRequest{} },
	KindEquip:         func() Event { return &EquipRequest{} },
	KindUnequip:       func() Event { return &UnequipRequest{} },
	KindKillReward:    func() Event { return &KillReward{} },
	KindCastEffect:    func() Event { return &CastEffect{} },
}

// DecodeEvent parses a command payload into its typed event.
func DecodeEvent(kind Kind, payload json.RawMessage) (Event, error) {
	newEvent, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, kind)
	}
	ev := newEvent()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, ev); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %w", ErrInvalidEvent, kind, err)
		}
	}
	// dispatch works on values
	switch e := ev.(type) {
	case *DamageFilter:
		return *e, nil
	case *EntitySpawned:
		return *e, nil
	case *EntityRemoved:
		return *e, nil
	case *PurchaseRequest:
		return *e, nil
	case *RankUpRequest:
		return *e, nil
	case *BreakthroughRequest:
		return *e, nil
	case *EquipRequest:
		return *e, nil
	case *UnequipRequest:
		return *e, nil
	case *KillReward:
		return *e, nil
	case *CastEffect:
		return *e, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, kind)
}

// ErrRejected wraps the reply of a rejected observer command.
var ErrRejected = errors.New("rejected")

// HandleCommand is the statesync.CommandHandler of the session. Rejected
// requests come back as errors so the observer sees the reason.
func (s *Session) HandleCommand(ctx context.Context, cmd statesync.Command) error {
	ev, err := DecodeEvent(Kind(cmd.Type), cmd.Payload)
	if err != nil {
		return err
	}
	reply, err := s.Dispatch(ctx, ev)
	if err != nil {
		return err
	}
	slog.Debug("observer command", "observer", cmd.Observer, "type", cmd.Type, "ok", reply.OK)
	if !reply.OK {
		return fmt.Errorf("%w: %s: %s", ErrRejected, reply.Reason, reply.Message)
	}
	return nil
}
