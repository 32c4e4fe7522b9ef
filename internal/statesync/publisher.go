// Package statesync exports core state to observers (UI, spectators, tools).
// Publishing is one-way: nothing in the core reads back what it published.
package statesync

import (
	"log/slog"

	"github.com/udisondev/ascension/internal/model"
)

// Publisher receives every state change of the core.
// Implementations must not block; payloads are copies owned by the publisher.
type Publisher interface {
	PublishStatsSnapshot(stats *model.CombatantStats)
	PublishRankUpResult(r model.RankUpResult)
	PublishBreakthroughResult(r model.BreakthroughResult)
	PublishDamageDisplay(d model.DamageDisplay)
	PublishShopState(s model.ShopSnapshot)
	PublishArtifacts(a model.ArtifactsSnapshot)
	PublishWallet(w model.WalletSnapshot)
}

// Nop drops everything.
type Nop struct{}

func (Nop) PublishStatsSnapshot(*model.CombatantStats)         {}
func (Nop) PublishRankUpResult(model.RankUpResult)             {}
func (Nop) PublishBreakthroughResult(model.BreakthroughResult) {}
func (Nop) PublishDamageDisplay(model.DamageDisplay)           {}
func (Nop) PublishShopState(model.ShopSnapshot)                {}
func (Nop) PublishArtifacts(model.ArtifactsSnapshot)           {}
func (Nop) PublishWallet(model.WalletSnapshot)                 {}

// Fanout forwards to several publishers in order.
type Fanout []Publisher

func (f Fanout) PublishStatsSnapshot(stats *model.CombatantStats) {
	for _, p := range f {
		p.PublishStatsSnapshot(stats)
	}
}

func (f Fanout) PublishRankUpResult(r model.RankUpResult) {
	for _, p := range f {
		p.PublishRankUpResult(r)
	}
}

func (f Fanout) PublishBreakthroughResult(r model.BreakthroughResult) {
	for _, p := range f {
		p.PublishBreakthroughResult(r)
	}
}

func (f Fanout) PublishDamageDisplay(d model.DamageDisplay) {
	for _, p := range f {
		p.PublishDamageDisplay(d)
	}
}

func (f Fanout) PublishShopState(s model.ShopSnapshot) {
	for _, p := range f {
		p.PublishShopState(s)
	}
}

func (f Fanout) PublishArtifacts(a model.ArtifactsSnapshot) {
	for _, p := range f {
		p.PublishArtifacts(a)
	}
}

func (f Fanout) PublishWallet(w model.WalletSnapshot) {
	for _, p := range f {
		p.PublishWallet(w)
	}
}

// LogPublisher writes every publish as a debug record.
type LogPublisher struct {
	Logger *slog.Logger
}

func (l LogPublisher) log() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l LogPublisher) PublishStatsSnapshot(stats *model.CombatantStats) {
	l.log().Debug("stats snapshot",
		"combatant", stats.ID,
		"owner", stats.Owner,
		"level", stats.DisplayLevel,
		"rank", stats.Rank,
		"hp", stats.CurrentHP,
		"max_hp", stats.Derived.MaxHP)
}

func (l LogPublisher) PublishRankUpResult(r model.RankUpResult) {
	l.log().Debug("rank up result", "player", r.Player, "success", r.Success, "rank", r.NewRank, "reason", r.Reason)
}

func (l LogPublisher) PublishBreakthroughResult(r model.BreakthroughResult) {
	l.log().Debug("breakthrough result", "player", r.Player, "success", r.Success, "tier", r.NewTier, "reason", r.Reason)
}

func (l LogPublisher) PublishDamageDisplay(d model.DamageDisplay) {
	l.log().Debug("damage",
		"attacker", d.Attacker,
		"victim", d.Victim,
		"amount", d.Amount,
		"crit", d.Crit,
		"type", d.Type)
}

func (l LogPublisher) PublishShopState(s model.ShopSnapshot) {
	l.log().Debug("shop state", "player", s.Player, "tier", s.State.CurrentTier, "slots", s.State.SlotsPurchased)
}

func (l LogPublisher) PublishArtifacts(a model.ArtifactsSnapshot) {
	l.log().Debug("artifacts", "player", a.Player)
}

func (l LogPublisher) PublishWallet(w model.WalletSnapshot) {
	l.log().Debug("wallet", "player", w.Player, "spirit_coin", w.SpiritCoin, "faith", w.Faith)
}
