// Package session runs one game session of the core: it owns every
// component, serializes inbound events and reconciles state periodically.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/ascension/internal/data"
	gameattr "github.com/udisondev/ascension/internal/game/attribute"
	"github.com/udisondev/ascension/internal/game/combat"
	"github.com/udisondev/ascension/internal/game/economy"
	"github.com/udisondev/ascension/internal/game/effect"
	"github.com/udisondev/ascension/internal/game/equipment"
	"github.com/udisondev/ascension/internal/game/progression"
	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

// DefaultReconcileInterval is the period of the full state republish.
const DefaultReconcileInterval = time.Second

// Rejection codes of session level checks.
const (
	ReasonUnknownPlayer    = "unknown player"
	ReasonUnknownCombatant = "unknown combatant"
	ReasonUnknownStat      = "unknown stat"
	ReasonEmptySlot        = "empty slot"
)

var tracer = otel.Tracer("github.com/udisondev/ascension/internal/session")

// Host is the engine side the core queries. Implementations are called
// with the session lock held and must not call back into the session.
type Host interface {
	EnemiesInRadius(caster, center model.CombatantID, radius float64) []model.CombatantID
	IsAlive(id model.CombatantID) bool
}

// ProgressStore persists player progression. LoadPlayer returns nil, nil
// for players never saved.
type ProgressStore interface {
	LoadPlayer(ctx context.Context, player model.PlayerID) (*model.PlayerProgress, error)
	SavePlayer(ctx context.Context, p model.PlayerProgress) error
}

// Options configures a session. Zero values take defaults.
type Options struct {
	ReconcileInterval time.Duration
	AutoBreakthrough  bool
	// Crit defaults to PRD with a random seed.
	Crit      combat.CritRoller
	Host      Host
	Store     ProgressStore
	Publisher statesync.Publisher
}

// Session is safe for concurrent use; every entry point takes the lock.
type Session struct {
	mu sync.Mutex

	tables   *data.Tables
	interval time.Duration
	host     Host
	store    ProgressStore

	attrs    *gameattr.Model
	equip    *equipment.Aggregator
	wallets  *economy.Store
	gate     *progression.Gate
	resolver *combat.Resolver
	effects  *effect.Manager

	grants map[model.PlayerID]map[model.Field]float64
	dirty  map[model.PlayerID]struct{}
	// pending holds the progress of players whose hero left the session.
	pending map[model.PlayerID]model.PlayerProgress
}

// New wires a session over tables.
func New(tables *data.Tables, opts Options) *Session {
	pub := opts.Publisher
	if pub == nil {
		pub = statesync.Nop{}
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = DefaultReconcileInterval
	}

	s := &Session{
		tables:   tables,
		interval: opts.ReconcileInterval,
		host:     opts.Host,
		store:    opts.Store,
		grants:   make(map[model.PlayerID]map[model.Field]float64),
		dirty:    make(map[model.PlayerID]struct{}),
		pending:  make(map[model.PlayerID]model.PlayerProgress),
	}
	s.attrs = gameattr.New(pub)
	s.equip = equipment.New(tables, s.attrs, pub)
	s.wallets = economy.NewStore(pub)
	s.gate = progression.New(tables, s.attrs, s.wallets, pub, progression.Options{
		AutoBreakthrough: opts.AutoBreakthrough,
	})
	s.resolver = combat.NewResolver(s.attrs, opts.Crit, pub)
	s.effects = effect.NewManager(s.attrs, engine{s})
	return s
}

// Dispatch validates an event and routes it to its handler.
func (s *Session) Dispatch(ctx context.Context, ev Event) (Reply, error) {
	if err := ev.Validate(); err != nil {
		return Reply{}, err
	}
	switch e := ev.(type) {
	case DamageFilter:
		return s.FilterDamage(ctx, e), nil
	case EntitySpawned:
		return accepted(), s.Spawn(ctx, e)
	case EntityRemoved:
		s.RemoveEntity(ctx, e)
		return accepted(), nil
	case PurchaseRequest:
		return s.Purchase(ctx, e), nil
	case RankUpRequest:
		return s.RankUp(ctx, e), nil
	case BreakthroughRequest:
		return s.Breakthrough(ctx, e), nil
	case EquipRequest:
		return s.Equip(ctx, e), nil
	case UnequipRequest:
		return s.Unequip(ctx, e), nil
	case KillReward:
		return s.GrantKillReward(ctx, e), nil
	case CastEffect:
		return s.Cast(ctx, e)
	default:
		return Reply{}, fmt.Errorf("%w: unsupported kind %q", ErrInvalidEvent, ev.Kind())
	}
}

// FilterDamage resolves a raw damage event, lets shields absorb it and
// applies the rest to the victim's record. Reply.Damage is what the host
// should deal.
func (s *Session) FilterDamage(ctx context.Context, ev DamageFilter) Reply {
	_, span := startSpan(ctx, ev.Kind(),
		attribute.Int64("attacker", int64(ev.Attacker)),
		attribute.Int64("victim", int64(ev.Victim)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	dmg := s.applyDamage(ev.DamageEvent)
	span.SetAttributes(attribute.Float64("damage", dmg))
	return Reply{OK: true, Damage: dmg}
}

func (s *Session) applyDamage(ev model.DamageEvent) float64 {
	out := s.resolver.Resolve(ev)
	dmg := s.effects.AbsorbDamage(ev.Victim, out.Damage)
	s.attrs.ApplyDamage(ev.Victim, dmg)
	return dmg
}

// Spawn creates the record of a new unit. A player's first hero also opens
// the player's wallet, shop and artifacts, restored from the store when the
// player was saved before. Spawning a known unit again is a respawn: its
// record is kept and HP and MP are refilled.
func (s *Session) Spawn(ctx context.Context, ev EntitySpawned) error {
	ctx, span := startSpan(ctx, ev.Kind(),
		attribute.Int64("combatant", int64(ev.Combatant)),
		attribute.Int("owner", int(ev.Owner)))
	defer span.End()

	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Summon {
		s.mu.Lock()
		s.attrs.RegisterSummon(ev.Combatant, ev.Owner)
		s.mu.Unlock()
		return nil
	}

	var saved *model.PlayerProgress
	if ev.Owner != model.NoPlayer {
		p, err := s.loadProgress(ctx, ev.Owner)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "loading progress")
			return fmt.Errorf("loading player %d: %w", ev.Owner, err)
		}
		saved = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, created := s.attrs.Initialize(ev.Combatant, ev.Owner, s.template(ev)); !created {
		// the host respawned a known unit
		s.attrs.RestoreFull(ev.Combatant)
		slog.Debug("combatant respawned", "combatant", ev.Combatant)
		return nil
	}
	if ev.Owner == model.NoPlayer {
		return nil
	}

	if s.wallets.Open(ev.Owner) {
		s.gate.InitPlayer(ev.Owner)
		s.equip.InitPlayer(ev.Owner)
		if saved != nil {
			s.restore(ev.Combatant, saved)
		}
		delete(s.pending, ev.Owner)
		slog.Info("player joined", "player", ev.Owner, "hero", ev.Combatant, "restored", saved != nil)
	}
	s.markDirty(ev.Owner)
	return nil
}

// template resolves the character type. Heroes fall back to the default
// hero, other units without a template get bare defaults.
func (s *Session) template(ev EntitySpawned) *data.HeroTemplate {
	if ev.Owner == model.NoPlayer {
		return s.tables.Heroes[ev.CharacterType]
	}
	tmpl, _ := s.tables.Hero(ev.CharacterType)
	return tmpl
}

func (s *Session) loadProgress(ctx context.Context, player model.PlayerID) (*model.PlayerProgress, error) {
	s.mu.Lock()
	if _, ok := s.wallets.Get(player); ok {
		s.mu.Unlock()
		return nil, nil
	}
	if p, ok := s.pending[player]; ok {
		s.mu.Unlock()
		return &p, nil
	}
	s.mu.Unlock()

	if s.store == nil {
		return nil, nil
	}
	return s.store.LoadPlayer(ctx, player)
}

func (s *Session) restore(hero model.CombatantID, p *model.PlayerProgress) {
	if !s.attrs.RestoreProgress(hero, p.Rank, p.Level, p.Exp) {
		slog.Warn("progress not restored", "player", p.Player, "rank", p.Rank, "level", p.Level)
	}
	for field, v := range p.Grants {
		s.grant(p.Player, hero, field, v)
	}
	s.wallets.Restore(p.Player, p.Wallet)
	s.gate.Restore(p.Player, p.Tier, p.SlotMask)
	s.equip.Restore(p.Player, p.Artifacts)
}

// RemoveEntity forgets a unit. When it is a player's hero, the player's
// progress is kept for saving and for the next spawn.
func (s *Session) RemoveEntity(ctx context.Context, ev EntityRemoved) {
	_, span := startSpan(ctx, ev.Kind(), attribute.Int64("combatant", int64(ev.Combatant)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.effects.Remove(ev.Combatant)
	s.resolver.Forget(ev.Combatant)

	owner := s.attrs.OwnerOf(ev.Combatant)
	if hero, ok := s.attrs.HeroOf(owner); ok && hero == ev.Combatant {
		if p, ok := s.progressOf(owner); ok {
			s.pending[owner] = p
		}
		delete(s.dirty, owner)
		delete(s.grants, owner)
		s.wallets.Remove(owner)
		s.gate.Remove(owner)
		s.equip.Remove(owner)
		slog.Info("player left", "player", owner, "hero", ev.Combatant)
	}
	s.attrs.Remove(ev.Combatant)
}

// Purchase buys a shop slot, or grants Amount of Stat when no slot is given.
func (s *Session) Purchase(ctx context.Context, ev PurchaseRequest) Reply {
	_, span := startSpan(ctx, ev.Kind(),
		attribute.Int("player", int(ev.Player)),
		attribute.String("stat", ev.Stat),
		attribute.Int("slot", ev.SlotIndex))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	hero, reply, ok := s.heroOf(ev.Player)
	if !ok {
		return endSpan(span, reply)
	}

	if ev.SlotIndex >= 0 {
		tier, _ := s.tables.Tier(s.gate.State(ev.Player).CurrentTier)
		res := s.gate.BuySlot(ev.Player, ev.SlotIndex, ev.Stat)
		if res.OK && tier != nil {
			slot := tier.Slots[ev.SlotIndex]
			s.record(ev.Player, slot.Field, slot.Value)
			s.markDirty(ev.Player)
		}
		return endSpan(span, fromResult(res))
	}

	field, ok := data.ShopStatField(ev.Stat)
	if !ok {
		return endSpan(span, rejected(model.Reason{Code: ReasonUnknownStat, Message: "未知属性"}))
	}
	s.grant(ev.Player, hero, field, ev.Amount)
	s.markDirty(ev.Player)
	return endSpan(span, accepted())
}

// grant applies and records a stat grant.
func (s *Session) grant(player model.PlayerID, hero model.CombatantID, field model.Field, v float64) {
	if s.attrs.AddStat(hero, field, v) {
		s.record(player, field, v)
	}
}

func (s *Session) record(player model.PlayerID, field model.Field, v float64) {
	g, ok := s.grants[player]
	if !ok {
		g = make(map[model.Field]float64)
		s.grants[player] = g
	}
	g[field] += v
}

// RankUp attempts a rank-up. A successful one refills HP and MP.
func (s *Session) RankUp(ctx context.Context, ev RankUpRequest) Reply {
	_, span := startSpan(ctx, ev.Kind(), attribute.Int("player", int(ev.Player)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	hero, reply, ok := s.heroOf(ev.Player)
	if !ok {
		return endSpan(span, reply)
	}
	res := s.gate.AttemptRankUp(ev.Player)
	if res.OK {
		s.attrs.RestoreFull(hero)
		s.markDirty(ev.Player)
	}
	return endSpan(span, fromResult(res))
}

// Breakthrough attempts to advance the shop tier.
func (s *Session) Breakthrough(ctx context.Context, ev BreakthroughRequest) Reply {
	_, span := startSpan(ctx, ev.Kind(),
		attribute.Int("player", int(ev.Player)),
		attribute.Int("target_tier", ev.TargetTier))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, reply, ok := s.heroOf(ev.Player); !ok {
		return endSpan(span, reply)
	}
	res := s.gate.AttemptTierBreakthrough(ev.Player, ev.TargetTier)
	if res.OK {
		s.markDirty(ev.Player)
	}
	return endSpan(span, fromResult(res))
}

// Equip puts an artifact into a slot.
func (s *Session) Equip(ctx context.Context, ev EquipRequest) Reply {
	_, span := startSpan(ctx, ev.Kind(),
		attribute.Int("player", int(ev.Player)),
		attribute.String("item", ev.ItemID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known(ev.Player) {
		return endSpan(span, unknownPlayer())
	}
	ok, reason := s.equip.Equip(ev.Player, ev.SlotIndex, ev.ItemID)
	if !ok {
		return endSpan(span, rejected(reason))
	}
	s.markDirty(ev.Player)
	return endSpan(span, accepted())
}

// Unequip empties a slot. The removed artifact's name is the reply message.
func (s *Session) Unequip(ctx context.Context, ev UnequipRequest) Reply {
	_, span := startSpan(ctx, ev.Kind(),
		attribute.Int("player", int(ev.Player)),
		attribute.Int("slot", ev.SlotIndex))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known(ev.Player) {
		return endSpan(span, unknownPlayer())
	}
	slot, ok := s.equip.Unequip(ev.Player, ev.SlotIndex)
	if !ok {
		return endSpan(span, rejected(model.Reason{Code: ReasonEmptySlot, Message: "槽位为空"}))
	}
	s.markDirty(ev.Player)
	return endSpan(span, Reply{OK: true, Message: slot.DisplayName})
}

// GrantKillReward pays the reward of a victim type: currencies to the
// wallet, exp to the hero and artifact xp to the matching slot.
func (s *Session) GrantKillReward(ctx context.Context, ev KillReward) Reply {
	_, span := startSpan(ctx, ev.Kind(),
		attribute.Int("player", int(ev.Player)),
		attribute.String("victim_type", ev.VictimType))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known(ev.Player) {
		return endSpan(span, unknownPlayer())
	}
	reward := s.tables.Reward(ev.VictimType)
	s.wallets.Add(ev.Player, economy.SpiritCoin, reward.Coin)
	s.wallets.Add(ev.Player, economy.Faith, reward.Faith)
	if hero, ok := s.attrs.HeroOf(ev.Player); ok && reward.Exp > 0 {
		s.attrs.AddCustomExp(hero, reward.Exp)
	}
	if reward.Artifact != nil {
		s.equip.OnKill(ev.Player, reward.Artifact)
	}
	s.markDirty(ev.Player)

	slog.Debug("kill reward", "player", ev.Player, "victim_type", ev.VictimType,
		"coin", reward.Coin, "faith", reward.Faith, "exp", reward.Exp)
	return endSpan(span, accepted())
}

// Cast starts a combat effect on a known target.
func (s *Session) Cast(ctx context.Context, ev CastEffect) (Reply, error) {
	_, span := startSpan(ctx, ev.Kind(),
		attribute.String("effect", ev.Effect),
		attribute.Int64("caster", int64(ev.Caster)),
		attribute.Int64("target", int64(ev.Target)))
	defer span.End()

	if err := ev.Validate(); err != nil {
		return Reply{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attrs.Has(ev.Target) {
		return endSpan(span, rejected(model.Reason{Code: ReasonUnknownCombatant, Message: "目标不存在"})), nil
	}
	err := s.effects.Apply(effect.Spec{
		ID:       ev.Effect,
		Caster:   ev.Caster,
		Target:   ev.Target,
		Duration: ev.Duration,
		Period:   ev.Period,
		Params:   ev.Params,
	})
	if err != nil {
		span.RecordError(err)
		return Reply{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return endSpan(span, accepted()), nil
}

// Reconcile republishes every combatant, advances effects by elapsed and
// saves the players changed since the last call.
func (s *Session) Reconcile(ctx context.Context, elapsed time.Duration) error {
	s.mu.Lock()
	for _, id := range s.attrs.Combatants() {
		s.attrs.Republish(id)
		owner := s.attrs.OwnerOf(id)
		if hero, ok := s.attrs.HeroOf(owner); ok && hero == id {
			s.wallets.Republish(owner)
			s.gate.Republish(owner)
			s.equip.Republish(owner)
		}
	}
	s.effects.Tick(elapsed)
	s.mu.Unlock()

	return s.Flush(ctx)
}

// Run reconciles on every interval until ctx is done, then saves what is
// left.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("session started", "reconcile_interval", s.interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("session stopping")
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := s.Flush(flushCtx); err != nil {
				return fmt.Errorf("final save: %w", err)
			}
			return ctx.Err()

		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if err := s.Reconcile(ctx, elapsed); err != nil {
				slog.Error("reconcile", "error", err)
			}
		}
	}
}

// Flush saves every changed player. Failed saves are retried on the next call.
func (s *Session) Flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	s.mu.Lock()
	batch := make([]model.PlayerProgress, 0, len(s.dirty)+len(s.pending))
	for player := range s.dirty {
		if p, ok := s.progressOf(player); ok {
			batch = append(batch, p)
		}
	}
	batch = append(batch, pendingList(s.pending)...)
	clear(s.dirty)
	clear(s.pending)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "session.flush", trace.WithAttributes(attribute.Int("players", len(batch))))
	defer span.End()

	var errs []error
	for _, p := range batch {
		if err := s.store.SavePlayer(ctx, p); err != nil {
			errs = append(errs, fmt.Errorf("saving player %d: %w", p.Player, err))
			s.requeue(p)
		}
	}
	if err := errors.Join(errs...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return err
	}
	slog.Debug("players saved", "count", len(batch))
	return nil
}

func (s *Session) requeue(p model.PlayerProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attrs.HeroOf(p.Player); ok {
		s.markDirty(p.Player)
		return
	}
	if _, ok := s.pending[p.Player]; !ok {
		s.pending[p.Player] = p
	}
}

// Progress returns the current progress of a player with a hero.
func (s *Session) Progress(player model.PlayerID) (model.PlayerProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressOf(player)
}

// Stats returns a copy of a combatant's record.
func (s *Session) Stats(id model.CombatantID) (*model.CombatantStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs.Snapshot(id)
}

// ActiveEffects returns the ids of the effects on a combatant.
func (s *Session) ActiveEffects(id model.CombatantID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effects.Active(id)
}

func (s *Session) progressOf(player model.PlayerID) (model.PlayerProgress, bool) {
	hero, ok := s.attrs.HeroOf(player)
	if !ok {
		return model.PlayerProgress{}, false
	}
	st, ok := s.attrs.Snapshot(hero)
	if !ok {
		return model.PlayerProgress{}, false
	}
	w, _ := s.wallets.Get(player)
	shop := s.gate.State(player)
	slots, _ := s.equip.Slots(player)
	return model.PlayerProgress{
		Player:        player,
		CharacterType: st.CharacterType,
		Rank:          st.Rank,
		Level:         st.DisplayLevel,
		Exp:           st.CustomExp,
		Wallet:        w,
		Tier:          shop.CurrentTier,
		SlotMask:      shop.PurchasedMask(),
		Artifacts:     slots,
		Grants:        maps.Clone(s.grants[player]),
	}, true
}

func (s *Session) markDirty(player model.PlayerID) {
	s.dirty[player] = struct{}{}
}

func (s *Session) known(player model.PlayerID) bool {
	_, ok := s.wallets.Get(player)
	return ok
}

func (s *Session) heroOf(player model.PlayerID) (model.CombatantID, Reply, bool) {
	if !s.known(player) {
		return 0, unknownPlayer(), false
	}
	hero, ok := s.attrs.HeroOf(player)
	if !ok {
		return 0, rejected(model.Reason{Code: progression.ReasonNoHero, Message: "未找到英雄"}), false
	}
	return hero, Reply{}, true
}

func unknownPlayer() Reply {
	return rejected(model.Reason{Code: ReasonUnknownPlayer, Message: "玩家不存在"})
}

func fromResult(r progression.Result) Reply {
	return Reply{OK: r.OK, Reason: r.Reason, Message: r.Message}
}

func pendingList(m map[model.PlayerID]model.PlayerProgress) []model.PlayerProgress {
	out := make([]model.PlayerProgress, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	return out
}

func startSpan(ctx context.Context, kind Kind, kv ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "session."+string(kind), trace.WithAttributes(kv...))
}

func endSpan(span trace.Span, r Reply) Reply {
	span.SetAttributes(attribute.Bool("ok", r.OK))
	if !r.OK {
		span.SetAttributes(attribute.String("reason", r.Reason))
	}
	return r
}
