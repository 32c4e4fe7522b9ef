package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/ascension/internal/model"
)

// ProgressRepository stores player progression.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a repository over pool.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// LoadPlayer returns the saved progress of a player.
// Returns nil, nil if the player was never saved.
// Artifact slots carry the item and its xp only; the rest comes from the tables.
func (r *ProgressRepository) LoadPlayer(ctx context.Context, player model.PlayerID) (*model.PlayerProgress, error) {
	p := model.PlayerProgress{Player: player}
	var (
		mask   int16
		grants []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT character_type, rank, level, exp, spirit_coin, faith,
		        shop_tier, slot_mask, grants, updated_at
		 FROM player_progress WHERE player_id = $1`, player,
	).Scan(&p.CharacterType, &p.Rank, &p.Level, &p.Exp, &p.Wallet.SpiritCoin, &p.Wallet.Faith,
		&p.Tier, &mask, &grants, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying progress of player %d: %w", player, err)
	}
	p.SlotMask = uint8(mask)
	if err := json.Unmarshal(grants, &p.Grants); err != nil {
		return nil, fmt.Errorf("decoding grants of player %d: %w", player, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT slot, item_id, xp FROM player_artifacts WHERE player_id = $1`, player)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts of player %d: %w", player, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			slot int
			a    model.ArtifactSlot
		)
		if err := rows.Scan(&slot, &a.ItemID, &a.XP); err != nil {
			return nil, fmt.Errorf("scanning artifact of player %d: %w", player, err)
		}
		if !model.SlotCategory(slot).Valid() {
			slog.Warn("skipping artifact in unknown slot", "player", player, "slot", slot)
			continue
		}
		p.Artifacts[slot] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts of player %d: %w", player, err)
	}
	return &p, nil
}

// SavePlayer writes the full progress of a player in one transaction.
func (r *ProgressRepository) SavePlayer(ctx context.Context, p model.PlayerProgress) error {
	grants := p.Grants
	if grants == nil {
		grants = map[model.Field]float64{}
	}
	grantsJSON, err := json.Marshal(grants)
	if err != nil {
		return fmt.Errorf("encoding grants of player %d: %w", p.Player, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for player %d: %w", p.Player, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "player", p.Player, "error", err)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO player_progress
		   (player_id, character_type, rank, level, exp, spirit_coin, faith, shop_tier, slot_mask, grants, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		 ON CONFLICT (player_id) DO UPDATE SET
		   character_type = EXCLUDED.character_type,
		   rank = EXCLUDED.rank,
		   level = EXCLUDED.level,
		   exp = EXCLUDED.exp,
		   spirit_coin = EXCLUDED.spirit_coin,
		   faith = EXCLUDED.faith,
		   shop_tier = EXCLUDED.shop_tier,
		   slot_mask = EXCLUDED.slot_mask,
		   grants = EXCLUDED.grants,
		   updated_at = now()`,
		p.Player, p.CharacterType, p.Rank, p.Level, p.Exp, p.Wallet.SpiritCoin, p.Wallet.Faith,
		p.Tier, int16(p.SlotMask), grantsJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting progress of player %d: %w", p.Player, err)
	}

	if err := saveArtifactsTx(ctx, tx, p.Player, p.Artifacts); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx for player %d: %w", p.Player, err)
	}
	return nil
}

// saveArtifactsTx replaces the artifact rows of a player.
func saveArtifactsTx(ctx context.Context, tx pgx.Tx, player model.PlayerID, slots [model.SlotCount]model.ArtifactSlot) error {
	if _, err := tx.Exec(ctx, `DELETE FROM player_artifacts WHERE player_id = $1`, player); err != nil {
		return fmt.Errorf("deleting artifacts of player %d: %w", player, err)
	}

	rows := make([][]any, 0, len(slots))
	for i, a := range slots {
		if a.Empty() {
			continue
		}
		rows = append(rows, []any{int32(player), int16(i), a.ItemID, int32(a.XP)})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"player_artifacts"},
		[]string{"player_id", "slot", "item_id", "xp"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting artifacts of player %d: %w", player, err)
	}
	return nil
}
