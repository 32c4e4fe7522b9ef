package model

import "time"

// SlotsPerTier is the number of upgrade slots that must be bought before a breakthrough.
const SlotsPerTier = 8

// ShopProgressionState is the per-player shop ladder.
type ShopProgressionState struct {
	CurrentTier    int                `json:"current_tier"`
	SlotsPurchased int                `json:"slots_purchased"`
	Purchased      [SlotsPerTier]bool `json:"purchased"`
}

// NewShopProgressionState returns the state of a fresh player: tier 1, nothing bought.
func NewShopProgressionState() ShopProgressionState {
	return ShopProgressionState{CurrentTier: 1}
}

// MaxTier is rank+2.
func MaxTier(rank int) int {
	return rank + 2
}

// PurchasedMask packs the bought indices into a bitmask (bit i = index i).
func (s ShopProgressionState) PurchasedMask() uint8 {
	var m uint8
	for i, b := range s.Purchased {
		if b {
			m |= 1 << i
		}
	}
	return m
}

// ShopStateFromMask rebuilds the state from its persisted form.
func ShopStateFromMask(tier int, mask uint8) ShopProgressionState {
	s := ShopProgressionState{CurrentTier: tier}
	if s.CurrentTier < 1 {
		s.CurrentTier = 1
	}
	for i := range s.Purchased {
		if mask&(1<<i) != 0 {
			s.Purchased[i] = true
			s.SlotsPurchased++
		}
	}
	return s
}

// Wallet holds both currencies of a player.
// SpiritCoin buys shop slots, Faith pays for rank-ups.
type Wallet struct {
	SpiritCoin int `json:"spirit_coin"`
	Faith      int `json:"faith"`
}

// StartingSpiritCoin is granted to every new player.
const StartingSpiritCoin = 200

// PlayerProgress is the persisted progression of one player.
type PlayerProgress struct {
	Player        PlayerID
	CharacterType string
	Rank          int
	Level         int
	Exp           int
	Wallet        Wallet
	Tier          int
	SlotMask      uint8
	Artifacts     [SlotCount]ArtifactSlot
	// Grants are the stats bought or granted so far, summed per field.
	Grants    map[Field]float64
	UpdatedAt time.Time
}
