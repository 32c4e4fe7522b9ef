package model

// RankUpResult is published after every rank-up attempt.
// Reason is the stable code, Message the text shown to the player.
type RankUpResult struct {
	Player   PlayerID `json:"player"`
	Success  bool     `json:"success"`
	NewRank  int      `json:"new_rank"`
	RankName string   `json:"rank_name,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Message  string   `json:"message"`
}

// BreakthroughResult is published after every shop tier breakthrough attempt.
type BreakthroughResult struct {
	Player   PlayerID `json:"player"`
	Success  bool     `json:"success"`
	NewTier  int      `json:"new_tier"`
	TierName string   `json:"tier_name,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Message  string   `json:"message"`
}

// ShopSnapshot is the published view of a player's shop ladder.
type ShopSnapshot struct {
	Player  PlayerID             `json:"player"`
	State   ShopProgressionState `json:"state"`
	MaxTier int                  `json:"max_tier"`
}

// ArtifactsSnapshot is the published view of a player's six slots.
type ArtifactsSnapshot struct {
	Player PlayerID                `json:"player"`
	Slots  [SlotCount]ArtifactSlot `json:"slots"`
	Bonus  EquipmentBonusVector    `json:"bonus"`
}

// WalletSnapshot is the published view of a player's currencies.
type WalletSnapshot struct {
	Player PlayerID `json:"player"`
	Wallet
}

// Reason explains a rejected request. Code is stable and meant for programs,
// Message is shown to the player verbatim.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

