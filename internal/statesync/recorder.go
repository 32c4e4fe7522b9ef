package statesync

import (
	"sync"

	"github.com/udisondev/ascension/internal/model"
)

// Recorder keeps every published value. Used by tests and debug tooling.
type Recorder struct {
	mu sync.Mutex

	Stats         []*model.CombatantStats
	RankUps       []model.RankUpResult
	Breakthroughs []model.BreakthroughResult
	Damage        []model.DamageDisplay
	Shop          []model.ShopSnapshot
	Artifacts     []model.ArtifactsSnapshot
	Wallets       []model.WalletSnapshot
}

func (r *Recorder) PublishStatsSnapshot(stats *model.CombatantStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stats = append(r.Stats, stats)
}

func (r *Recorder) PublishRankUpResult(res model.RankUpResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RankUps = append(r.RankUps, res)
}

func (r *Recorder) PublishBreakthroughResult(res model.BreakthroughResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Breakthroughs = append(r.Breakthroughs, res)
}

func (r *Recorder) PublishDamageDisplay(d model.DamageDisplay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Damage = append(r.Damage, d)
}

func (r *Recorder) PublishShopState(s model.ShopSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Shop = append(r.Shop, s)
}

func (r *Recorder) PublishArtifacts(a model.ArtifactsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Artifacts = append(r.Artifacts, a)
}

func (r *Recorder) PublishWallet(w model.WalletSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Wallets = append(r.Wallets, w)
}

// LastStats returns the latest snapshot of a combatant, nil if none.
func (r *Recorder) LastStats(id model.CombatantID) *model.CombatantStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Stats) - 1; i >= 0; i-- {
		if r.Stats[i].ID == id {
			return r.Stats[i]
		}
	}
	return nil
}

// StatsCount returns how many snapshots were published for a combatant.
func (r *Recorder) StatsCount(id model.CombatantID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.Stats {
		if s.ID == id {
			n++
		}
	}
	return n
}

// LastRankUp returns the latest rank-up result.
func (r *Recorder) LastRankUp() (model.RankUpResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.RankUps) == 0 {
		return model.RankUpResult{}, false
	}
	return r.RankUps[len(r.RankUps)-1], true
}

// LastBreakthrough returns the latest breakthrough result.
func (r *Recorder) LastBreakthrough() (model.BreakthroughResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Breakthroughs) == 0 {
		return model.BreakthroughResult{}, false
	}
	return r.Breakthroughs[len(r.Breakthroughs)-1], true
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stats = nil
	r.RankUps = nil
	r.Breakthroughs = nil
	r.Damage = nil
	r.Shop = nil
	r.Artifacts = nil
	r.Wallets = nil
}
