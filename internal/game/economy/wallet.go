// Package economy keeps the spirit coin and faith balances of players.
package economy

import (
	"log/slog"

	"github.com/udisondev/ascension/internal/model"
	"github.com/udisondev/ascension/internal/statesync"
)

// Currency selects a wallet balance.
type Currency int

const (
	SpiritCoin Currency = iota
	Faith
)

func (c Currency) String() string {
	switch c {
	case SpiritCoin:
		return "spirit_coin"
	case Faith:
		return "faith"
	default:
		return "unknown"
	}
}

// Store holds one wallet per player. Not safe for concurrent use.
type Store struct {
	pub     statesync.Publisher
	wallets map[model.PlayerID]*model.Wallet
}

// NewStore creates an empty store.
func NewStore(pub statesync.Publisher) *Store {
	if pub == nil {
		pub = statesync.Nop{}
	}
	return &Store{
		pub:     pub,
		wallets: make(map[model.PlayerID]*model.Wallet),
	}
}

// Open creates the starting wallet of a player. Returns false when one exists.
func (s *Store) Open(player model.PlayerID) bool {
	if _, ok := s.wallets[player]; ok {
		return false
	}
	s.wallets[player] = &model.Wallet{SpiritCoin: model.StartingSpiritCoin}
	s.publish(player)
	return true
}

// Restore overwrites a wallet with persisted balances.
func (s *Store) Restore(player model.PlayerID, w model.Wallet) {
	w.SpiritCoin = max(w.SpiritCoin, 0)
	w.Faith = max(w.Faith, 0)
	s.wallets[player] = &w
	s.publish(player)
}

// Get returns a copy of the wallet.
func (s *Store) Get(player model.PlayerID) (model.Wallet, bool) {
	w, ok := s.wallets[player]
	if !ok {
		return model.Wallet{}, false
	}
	return *w, true
}

// Balance returns one balance, 0 for unknown players.
func (s *Store) Balance(player model.PlayerID, c Currency) int {
	w, ok := s.wallets[player]
	if !ok {
		return 0
	}
	return *balance(w, c)
}

// Add credits amount. Non-positive amounts are ignored.
func (s *Store) Add(player model.PlayerID, c Currency, amount int) bool {
	w, ok := s.wallets[player]
	if !ok || amount <= 0 {
		return false
	}
	*balance(w, c) += amount
	s.publish(player)
	return true
}

// Spend debits amount if the balance covers it. Nothing changes otherwise.
func (s *Store) Spend(player model.PlayerID, c Currency, amount int) bool {
	w, ok := s.wallets[player]
	if !ok || amount < 0 {
		return false
	}
	b := balance(w, c)
	if *b < amount {
		slog.Debug("insufficient balance", "player", player, "currency", c, "balance", *b, "amount", amount)
		return false
	}
	*b -= amount
	s.publish(player)
	return true
}

// Republish sends the wallet of a player again.
func (s *Store) Republish(player model.PlayerID) bool {
	if _, ok := s.wallets[player]; !ok {
		return false
	}
	s.publish(player)
	return true
}

// Remove forgets a player.
func (s *Store) Remove(player model.PlayerID) {
	delete(s.wallets, player)
}

func (s *Store) publish(player model.PlayerID) {
	s.pub.PublishWallet(model.WalletSnapshot{Player: player, Wallet: *s.wallets[player]})
}

func balance(w *model.Wallet, c Currency) *int {
	if c == Faith {
		return &w.Faith
	}
	return &w.SpiritCoin
}
