package data

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/ascension/internal/model"
)

//go:embed defaults/*.yaml
var defaultFS embed.FS

// File names of the config tables, both embedded and on disk.
const (
	HeroesFile       = "heroes.yaml"
	ArtifactsFile    = "artifacts.yaml"
	UpgradeTiersFile = "upgrade_tiers.yaml"
	RewardsFile      = "rewards.yaml"
)

// AttributeDef is the configured base/gain/bonus of one attribute.
type AttributeDef struct {
	Base  float64 `yaml:"base"`
	Gain  float64 `yaml:"gain"`
	Bonus float64 `yaml:"bonus"`
}

// HeroTemplate is the per-character-type default table.
type HeroTemplate struct {
	Name string `yaml:"-"`

	MainStat     model.MainStat `yaml:"main_stat"`
	Constitution AttributeDef   `yaml:"constitution"`
	Martial      AttributeDef   `yaml:"martial"`
	Divinity     AttributeDef   `yaml:"divinity"`
	Agility      AttributeDef   `yaml:"agility"`
	Damage       AttributeDef   `yaml:"damage"`

	MovementSpeed    float64 `yaml:"movement_speed"`
	LifeOnHit        float64 `yaml:"life_on_hit"`
	Armor            float64 `yaml:"armor"`
	CritChance       float64 `yaml:"crit_chance"`
	CritDamage       float64 `yaml:"crit_damage"`
	FinalDmgIncrease float64 `yaml:"final_dmg_increase"`
	FinalDmgReduct   float64 `yaml:"final_dmg_reduct"`
	Evasion          float64 `yaml:"evasion"`
}

// ArtifactDef describes one artifact item.
type ArtifactDef struct {
	ItemID     string                     `yaml:"-"`
	Category   model.SlotCategory         `yaml:"-"`
	Slot       string                     `yaml:"slot"`
	Tier       int                        `yaml:"tier"`
	Name       string                     `yaml:"name"`
	XPRequired int                        `yaml:"xp_required"`
	Bonus      model.EquipmentBonusVector `yaml:"bonus"`
}

// UpgradeSlot is one purchasable stat of a shop tier.
type UpgradeSlot struct {
	Stat  string      `yaml:"stat"`
	Name  string      `yaml:"name"`
	Value float64     `yaml:"value"`
	Field model.Field `yaml:"-"`
}

// UpgradeTier is one stage of the cultivation shop.
type UpgradeTier struct {
	Tier        int           `yaml:"tier"`
	Name        string        `yaml:"name"`
	CostPerSlot int           `yaml:"cost_per_slot"`
	Slots       []UpgradeSlot `yaml:"slots"`
}

// ArtifactDrop is artifact xp granted to one slot on a kill.
type ArtifactDrop struct {
	Slot     string             `yaml:"slot"`
	Category model.SlotCategory `yaml:"-"`
	XP       int                `yaml:"xp"`
}

// KillReward is what a victim type yields to its killer's player.
type KillReward struct {
	Coin     int           `yaml:"coin"`
	Faith    int           `yaml:"faith"`
	Exp      int           `yaml:"exp"`
	Artifact *ArtifactDrop `yaml:"artifact"`
}

// Tables holds every read-only config table. Loaded once at startup.
type Tables struct {
	Heroes       map[string]*HeroTemplate
	FallbackHero string

	Artifacts map[string]*ArtifactDef
	// byCategory[c][tier] is the item of that category and tier.
	byCategory [model.SlotCount][model.MaxArtifactTier + 1]*ArtifactDef

	Tiers []UpgradeTier

	Rewards       map[string]KillReward
	DefaultReward KillReward
}

// shopStatFields maps shop stat keys to additive combatant fields.
var shopStatFields = map[string]model.Field{
	"constitution":  model.FieldExtraConstitution,
	"martial":       model.FieldExtraMartial,
	"divinity":      model.FieldExtraDivinity,
	"agility":       model.FieldExtraAgility,
	"armor":         model.FieldExtraArmor,
	"mana_regen":    model.FieldExtraManaRegen,
	"max_mana":      model.FieldExtraMaxMana,
	"attack_speed":  model.FieldExtraAttackSpeed,
	"move_speed":    model.FieldExtraMoveSpeed,
	"life_on_hit":   model.FieldExtraLifeOnHit,
	"lifesteal_pct": model.FieldLifesteal,
	"base_damage":   model.FieldExtraBaseDamage,
	"crit_chance":   model.FieldCritChance,
	"crit_damage":   model.FieldCritDamage,
}

// ShopStatField resolves a shop stat key ("martial", "lifesteal_pct", ...).
// Additive field names are accepted as is.
func ShopStatField(stat string) (model.Field, bool) {
	if f, ok := shopStatFields[stat]; ok {
		return f, true
	}
	f := model.Field(stat)
	return f, f.Additive()
}

// LoadDefaultTables parses the embedded tables.
func LoadDefaultTables() (*Tables, error) {
	return LoadTables("")
}

// LoadTables loads the tables from dir. Files missing from dir fall back to
// the embedded defaults; an empty dir means defaults only.
func LoadTables(dir string) (*Tables, error) {
	t := &Tables{}

	var heroes struct {
		Heroes   map[string]*HeroTemplate `yaml:"heroes"`
		Fallback string                   `yaml:"fallback"`
	}
	if err := decodeTable(dir, HeroesFile, &heroes); err != nil {
		return nil, err
	}
	t.Heroes = heroes.Heroes
	t.FallbackHero = heroes.Fallback

	var artifacts struct {
		Artifacts map[string]*ArtifactDef `yaml:"artifacts"`
	}
	if err := decodeTable(dir, ArtifactsFile, &artifacts); err != nil {
		return nil, err
	}
	t.Artifacts = artifacts.Artifacts

	var tiers struct {
		Tiers []UpgradeTier `yaml:"tiers"`
	}
	if err := decodeTable(dir, UpgradeTiersFile, &tiers); err != nil {
		return nil, err
	}
	t.Tiers = tiers.Tiers

	var rewards struct {
		Default KillReward            `yaml:"default"`
		Rewards map[string]KillReward `yaml:"rewards"`
	}
	if err := decodeTable(dir, RewardsFile, &rewards); err != nil {
		return nil, err
	}
	t.Rewards = rewards.Rewards
	t.DefaultReward = rewards.Default

	if err := t.index(); err != nil {
		return nil, err
	}

	slog.Info("loaded config tables",
		"heroes", len(t.Heroes),
		"artifacts", len(t.Artifacts),
		"tiers", len(t.Tiers),
		"rewards", len(t.Rewards))
	return t, nil
}

func decodeTable(dir, name string, out any) error {
	raw, err := readTable(dir, name)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing table %s: %w", name, err)
	}
	return nil
}

func readTable(dir, name string) ([]byte, error) {
	if dir != "" {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading table %s: %w", path, err)
		}
	}
	raw, err := defaultFS.ReadFile("defaults/" + name)
	if err != nil {
		return nil, fmt.Errorf("reading embedded table %s: %w", name, err)
	}
	return raw, nil
}

// index validates the decoded tables and fills derived lookups.
func (t *Tables) index() error {
	if len(t.Heroes) == 0 {
		return errors.New("heroes table is empty")
	}
	for name, h := range t.Heroes {
		h.Name = name
		if !h.MainStat.Valid() {
			return fmt.Errorf("hero %s: invalid main_stat %q", name, h.MainStat)
		}
		if h.CritDamage == 0 {
			h.CritDamage = model.DefaultCritDamage
		}
	}
	if t.FallbackHero != "" {
		if _, ok := t.Heroes[t.FallbackHero]; !ok {
			return fmt.Errorf("fallback hero %s is not defined", t.FallbackHero)
		}
	}

	for id, a := range t.Artifacts {
		a.ItemID = id
		c, ok := model.ParseSlotCategory(a.Slot)
		if !ok {
			return fmt.Errorf("artifact %s: unknown slot %q", id, a.Slot)
		}
		if a.Tier < 0 || a.Tier > model.MaxArtifactTier {
			return fmt.Errorf("artifact %s: tier %d out of range", id, a.Tier)
		}
		a.Category = c
		t.byCategory[c][a.Tier] = a
	}

	for i := range t.Tiers {
		tier := &t.Tiers[i]
		if tier.Tier != i+1 {
			return fmt.Errorf("upgrade tiers must be consecutive from 1, got %d at position %d", tier.Tier, i)
		}
		if len(tier.Slots) != model.SlotsPerTier {
			return fmt.Errorf("upgrade tier %d: want %d slots, got %d", tier.Tier, model.SlotsPerTier, len(tier.Slots))
		}
		for j := range tier.Slots {
			s := &tier.Slots[j]
			f, ok := ShopStatField(s.Stat)
			if !ok {
				return fmt.Errorf("upgrade tier %d slot %d: unknown stat %q", tier.Tier, j, s.Stat)
			}
			s.Field = f
		}
	}

	for victim, r := range t.Rewards {
		if r.Artifact == nil {
			continue
		}
		c, ok := model.ParseSlotCategory(r.Artifact.Slot)
		if !ok {
			return fmt.Errorf("reward %s: unknown artifact slot %q", victim, r.Artifact.Slot)
		}
		r.Artifact.Category = c
	}
	return nil
}

// Hero returns the template for a character type, falling back to the
// configured fallback hero for unknown types.
func (t *Tables) Hero(characterType string) (*HeroTemplate, bool) {
	if h, ok := t.Heroes[characterType]; ok {
		return h, true
	}
	if h, ok := t.Heroes[t.FallbackHero]; ok {
		return h, true
	}
	return nil, false
}

// Artifact returns an artifact definition by item id.
func (t *Tables) Artifact(itemID string) (*ArtifactDef, bool) {
	a, ok := t.Artifacts[itemID]
	return a, ok
}

// ArtifactFor returns the artifact of a category at a given tier.
func (t *Tables) ArtifactFor(c model.SlotCategory, tier int) (*ArtifactDef, bool) {
	if !c.Valid() || tier < 0 || tier > model.MaxArtifactTier {
		return nil, false
	}
	a := t.byCategory[c][tier]
	return a, a != nil
}

// Tier returns the shop tier config (1-based).
func (t *Tables) Tier(n int) (*UpgradeTier, bool) {
	if n < 1 || n > len(t.Tiers) {
		return nil, false
	}
	return &t.Tiers[n-1], true
}

// Reward returns the kill reward of a victim type, or the default one.
func (t *Tables) Reward(victimType string) KillReward {
	if r, ok := t.Rewards[victimType]; ok {
		return r
	}
	return t.DefaultReward
}
