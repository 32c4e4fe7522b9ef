// Package progression validates rank-ups and shop tier breakthroughs.
//
// Rank lives on the player's hero record and is only changed through
// the attribute model. The shop ladder of every player is owned here.
package progression

import (
	"fmt"
	"log/slog"

	"github.com/udisondev/ascension/internal/data"
	"github.com/udisondev/ascension/internal/game/economy"
	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

// Rejection codes. The codes are stable, messages are shown verbatim.
const (
	ReasonNoHero               = "no hero"
	ReasonMaxRank              = "max rank"
	ReasonNeedsLevel           = "needs level"
	ReasonInsufficientCurrency = "insufficient currency"
	ReasonInvalidTarget        = "invalid target"
	ReasonNeedsHigherRank      = "needs higher rank"
	ReasonSlotsIncomplete      = "slots incomplete"
	ReasonInvalidSlot          = "invalid slot"
	ReasonAlreadyPurchased     = "already purchased"
	ReasonStatMismatch         = "stat mismatch"
	ReasonStatRejected         = "stat rejected"
)

// tierCapMessage is shown when auto-breakthrough hits the rank's tier cap.
const tierCapMessage = "你的灵魂太轻，承载不了这份重量。去历练吧。"

// Result is the outcome of a gated request.
type Result struct {
	OK      bool
	Reason  string
	Message string
}

func reject(code, format string, args ...any) Result {
	return Result{Reason: code, Message: fmt.Sprintf(format, args...)}
}

// Attributes is the part of the attribute model the gate needs.
type Attributes interface {
	HeroOf(player model.PlayerID) (model.CombatantID, bool)
	GetStat(id model.CombatantID, field model.Field) float64
	SetRank(id model.CombatantID, rank int) bool
	AddStat(id model.CombatantID, field model.Field, delta float64) bool
}

// Wallets is the part of the economy store the gate needs.
type Wallets interface {
	Balance(player model.PlayerID, c economy.Currency) int
	Spend(player model.PlayerID, c economy.Currency, amount int) bool
	Add(player model.PlayerID, c economy.Currency, amount int) bool
}

// Options tunes the gate.
type Options struct {
	// AutoBreakthrough advances the tier as soon as the 8th slot is bought
	// and re-checks after every successful rank-up.
	AutoBreakthrough bool
}

// Gate is the progression state machine of one session. Not safe for concurrent use.
type Gate struct {
	tables  *data.Tables
	attrs   Attributes
	wallets Wallets
	pub     statesync.Publisher
	opts    Options

	shops map[model.PlayerID]*model.ShopProgressionState
}

// New creates a gate.
func New(tables *data.Tables, attrs Attributes, wallets Wallets, pub statesync.Publisher, opts Options) *Gate {
	if pub == nil {
		pub = statesync.Nop{}
	}
	return &Gate{
		tables:  tables,
		attrs:   attrs,
		wallets: wallets,
		pub:     pub,
		opts:    opts,
		shops:   make(map[model.PlayerID]*model.ShopProgressionState),
	}
}

// InitPlayer creates the tier-1 shop of a player. Returns false when it exists.
func (g *Gate) InitPlayer(player model.PlayerID) bool {
	if _, ok := g.shops[player]; ok {
		return false
	}
	s := model.NewShopProgressionState()
	g.shops[player] = &s
	g.publishShop(player)
	return true
}

// Restore loads a persisted shop state. A tier above what the hero's rank
// allows is rejected.
func (g *Gate) Restore(player model.PlayerID, tier int, mask uint8) bool {
	limit := min(model.MaxTier(model.MaxRank), len(g.tables.Tiers))
	if rank, ok := g.rank(player); ok {
		limit = min(model.MaxTier(rank), limit)
	}
	if tier < 1 || tier > limit {
		slog.Warn("rejected shop restore", "player", player, "tier", tier, "limit", limit)
		return false
	}
	s := model.ShopStateFromMask(tier, mask)
	g.shops[player] = &s
	g.publishShop(player)
	return true
}

// State returns a copy of the player's shop ladder.
func (g *Gate) State(player model.PlayerID) model.ShopProgressionState {
	return *g.shop(player)
}

// Remove forgets a player's shop.
func (g *Gate) Remove(player model.PlayerID) {
	delete(g.shops, player)
}

// AttemptRankUp checks max rank, then currency, then level. On success the
// faith is spent and the hero advances one rank.
func (g *Gate) AttemptRankUp(player model.PlayerID) Result {
	res, newRank := g.rankUp(player)

	out := model.RankUpResult{
		Player:  player,
		Success: res.OK,
		NewRank: newRank,
		Reason:  res.Reason,
		Message: res.Message,
	}
	if res.OK {
		out.RankName = data.RankName(newRank)
	}
	g.pub.PublishRankUpResult(out)

	if res.OK {
		g.publishShop(player)
		if g.opts.AutoBreakthrough {
			g.autoBreakthrough(player)
		}
	}
	return res
}

func (g *Gate) rankUp(player model.PlayerID) (Result, int) {
	hero, ok := g.attrs.HeroOf(player)
	if !ok {
		return reject(ReasonNoHero, "未找到英雄"), 0
	}
	rank := int(g.attrs.GetStat(hero, model.FieldRank))

	if rank >= model.MaxRank {
		return reject(ReasonMaxRank, "已达最高境界"), rank
	}
	cost := data.RankUpCost(rank)
	if g.wallets.Balance(player, economy.Faith) < cost {
		return reject(ReasonInsufficientCurrency, "信仰不足 (需要%d)", cost), rank
	}
	maxLevel := data.MaxLevelForRank(rank)
	if level := int(g.attrs.GetStat(hero, model.FieldDisplayLevel)); level < maxLevel {
		return reject(ReasonNeedsLevel, "必须达到%d级才能突破", maxLevel), rank
	}

	if !g.attrs.SetRank(hero, rank+1) {
		return reject(ReasonMaxRank, "已达最高境界"), rank
	}
	// balance was checked above; the spend cannot fail
	g.wallets.Spend(player, economy.Faith, cost)

	newRank := rank + 1
	slog.Info("rank up", "player", player, "hero", hero, "rank", newRank, "faith_spent", cost)
	return Result{OK: true, Message: "突破成功！晋升" + data.RankName(newRank)}, newRank
}

// AttemptTierBreakthrough advances the shop to targetTier, which must be the
// next tier, allowed by the rank, with all 8 slots of the current tier bought.
func (g *Gate) AttemptTierBreakthrough(player model.PlayerID, targetTier int) Result {
	s := g.shop(player)
	res := g.checkBreakthrough(player, s, targetTier)
	if !res.OK {
		g.pub.PublishBreakthroughResult(model.BreakthroughResult{
			Player:  player,
			NewTier: s.CurrentTier,
			Reason:  res.Reason,
			Message: res.Message,
		})
		return res
	}
	return g.breakthrough(player, s, targetTier)
}

func (g *Gate) checkBreakthrough(player model.PlayerID, s *model.ShopProgressionState, target int) Result {
	rank, ok := g.rank(player)
	if !ok {
		return reject(ReasonNoHero, "未找到英雄")
	}
	if target != s.CurrentTier+1 {
		return reject(ReasonInvalidTarget, "无效的突破目标")
	}
	if _, ok := g.tables.Tier(target); !ok {
		return reject(ReasonInvalidTarget, "无效的突破目标")
	}
	if target > model.MaxTier(rank) {
		return reject(ReasonNeedsHigherRank, "需提升阶位")
	}
	if s.SlotsPurchased < model.SlotsPerTier {
		return reject(ReasonSlotsIncomplete, "需购买全部%d个槽位 (%d/%d)", model.SlotsPerTier, s.SlotsPurchased, model.SlotsPerTier)
	}
	return Result{OK: true}
}

func (g *Gate) breakthrough(player model.PlayerID, s *model.ShopProgressionState, target int) Result {
	tier, _ := g.tables.Tier(target)
	*s = model.ShopProgressionState{CurrentTier: target}

	msg := fmt.Sprintf("突破成功！进入%s！", tier.Name)
	slog.Info("shop breakthrough", "player", player, "tier", target)

	g.pub.PublishBreakthroughResult(model.BreakthroughResult{
		Player:   player,
		Success:  true,
		NewTier:  target,
		TierName: tier.Name,
		Message:  msg,
	})
	g.publishShop(player)
	return Result{OK: true, Message: msg}
}

// autoBreakthrough advances a full tier if the rank allows it. At the tier
// cap the player gets a hint instead of a rejection reason.
func (g *Gate) autoBreakthrough(player model.PlayerID) {
	s := g.shop(player)
	if s.SlotsPurchased < model.SlotsPerTier {
		return
	}
	res := g.checkBreakthrough(player, s, s.CurrentTier+1)
	switch {
	case res.OK:
		g.breakthrough(player, s, s.CurrentTier+1)
	case res.Reason == ReasonNeedsHigherRank:
		g.pub.PublishBreakthroughResult(model.BreakthroughResult{
			Player:  player,
			NewTier: s.CurrentTier,
			Reason:  res.Reason,
			Message: tierCapMessage,
		})
	}
}

// PurchaseSlot marks the next free slot of the current tier as bought.
// Returns false once all 8 are bought.
func (g *Gate) PurchaseSlot(player model.PlayerID) bool {
	s := g.shop(player)
	for i, bought := range s.Purchased {
		if !bought {
			return g.PurchaseSlotAt(player, i)
		}
	}
	return false
}

// PurchaseSlotAt marks one slot of the current tier as bought.
func (g *Gate) PurchaseSlotAt(player model.PlayerID, index int) bool {
	s := g.shop(player)
	if index < 0 || index >= model.SlotsPerTier || s.Purchased[index] {
		return false
	}
	s.Purchased[index] = true
	s.SlotsPurchased++
	g.publishShop(player)

	if g.opts.AutoBreakthrough && s.SlotsPurchased == model.SlotsPerTier {
		g.autoBreakthrough(player)
	}
	return true
}

// BuySlot pays for a slot of the current tier with spirit coin and grants its
// stat to the player's hero. stat, when not empty, must match the slot's stat.
func (g *Gate) BuySlot(player model.PlayerID, index int, stat string) Result {
	s := g.shop(player)
	tier, ok := g.tables.Tier(s.CurrentTier)
	if !ok || index < 0 || index >= len(tier.Slots) {
		return reject(ReasonInvalidSlot, "无效槽位")
	}
	if s.Purchased[index] {
		return reject(ReasonAlreadyPurchased, "该槽位已购买")
	}
	slot := tier.Slots[index]
	if stat != "" && stat != slot.Stat {
		return reject(ReasonStatMismatch, "属性与槽位不符")
	}
	hero, ok := g.attrs.HeroOf(player)
	if !ok {
		return reject(ReasonNoHero, "未找到英雄")
	}
	if !g.wallets.Spend(player, economy.SpiritCoin, tier.CostPerSlot) {
		return reject(ReasonInsufficientCurrency, "灵石不足 (需要%d)", tier.CostPerSlot)
	}

	if !g.attrs.AddStat(hero, slot.Field, slot.Value) {
		g.wallets.Add(player, economy.SpiritCoin, tier.CostPerSlot)
		slog.Warn("shop slot stat rejected, coin refunded", "player", player, "tier", s.CurrentTier, "slot", index, "field", slot.Field)
		return reject(ReasonStatRejected, "属性无法提升")
	}
	slog.Debug("shop slot bought", "player", player, "tier", s.CurrentTier, "slot", index, "stat", slot.Stat)
	g.PurchaseSlotAt(player, index)
	return Result{OK: true, Message: slot.Name}
}

// Republish sends the shop view of a player again.
func (g *Gate) Republish(player model.PlayerID) bool {
	if _, ok := g.shops[player]; !ok {
		return false
	}
	g.publishShop(player)
	return true
}

func (g *Gate) shop(player model.PlayerID) *model.ShopProgressionState {
	s, ok := g.shops[player]
	if !ok {
		fresh := model.NewShopProgressionState()
		s = &fresh
		g.shops[player] = s
	}
	return s
}

func (g *Gate) rank(player model.PlayerID) (int, bool) {
	hero, ok := g.attrs.HeroOf(player)
	if !ok {
		return 0, false
	}
	return int(g.attrs.GetStat(hero, model.FieldRank)), true
}

func (g *Gate) publishShop(player model.PlayerID) {
	rank, _ := g.rank(player)
	g.pub.PublishShopState(model.ShopSnapshot{
		Player:  player,
		State:   *g.shop(player),
		MaxTier: model.MaxTier(rank),
	})
}
