// Package balance holds every gameplay tuning constant in one
// immutable snapshot. Engines receive it as a parameter and never
// reach for globals, so tests can rebalance freely.
package balance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml files can use "15m" notation.
type Duration time.Duration

// UnmarshalYAML parses Go duration strings ("90s", "4h").
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full balance sheet. Zero values are never valid;
// start from Default() and override via yaml if a path is given.
type Config struct {
	Progression Progression `yaml:"progression"`
	Click       Click       `yaml:"click"`
	PvP         PvP         `yaml:"pvp"`
	Dungeon     Dungeon     `yaml:"dungeon"`
	WorldBoss   WorldBoss   `yaml:"world_boss"`
	Market      Market      `yaml:"market"`
	Events      Events      `yaml:"events"`
	Prestige    Prestige    `yaml:"prestige"`
}

// Progression tunes idle accrual and the level curve.
type Progression struct {
	LevelXPBase       float64  `yaml:"level_xp_base"`       // XP needed at level 1
	LevelXPMultiplier float64  `yaml:"level_xp_multiplier"` // exponential curve base
	MaxIdle           Duration `yaml:"max_idle"`            // offline earnings cap
}

// Click tunes the active-clicking loop.
type Click struct {
	Cooldown Duration `yaml:"cooldown"`
	XP       int64    `yaml:"xp"` // flat XP per click
}

// PvP tunes player-versus-player combat.
type PvP struct {
	RandomFactor         float64  `yaml:"random_factor"` // ± roll perturbation
	GoldStealPercent     float64  `yaml:"gold_steal_percent"`
	GoldStealCap         float64  `yaml:"gold_steal_cap"`
	LoserGoldLossPercent float64  `yaml:"loser_gold_loss_percent"`
	AttackCooldown       Duration `yaml:"attack_cooldown"`
	ShieldDuration       Duration `yaml:"shield_duration"` // defender shield after being attacked
	MinLevel             int      `yaml:"min_level"`
	PowerRange           float64  `yaml:"power_range"` // target-finding band around power score
}

// Dungeon tunes floor encounters.
type Dungeon struct {
	BaseHP            float64 `yaml:"base_hp"`
	HPScaling         float64 `yaml:"hp_scaling"`
	BossInterval      int     `yaml:"boss_interval"` // every Nth floor is a boss
	BossHPMultiplier  float64 `yaml:"boss_hp_multiplier"`
	BaseEnergyCost    int     `yaml:"base_energy_cost"`
	DefaultMaxEnergy  int     `yaml:"default_max_energy"`
	EnergyRegenPerMin float64 `yaml:"energy_regen_per_min"`
	GemBaseChance     float64 `yaml:"gem_base_chance"`
	GemChancePerTen   float64 `yaml:"gem_chance_per_ten"` // added per 10 floors
}

// WorldBoss tunes the shared boss fight.
type WorldBoss struct {
	BaseHP              float64  `yaml:"base_hp"`
	PlayerScaling       float64  `yaml:"player_scaling"` // HP growth per active player
	Duration            Duration `yaml:"duration"`       // active window before expiry
	SpawnInterval       Duration `yaml:"spawn_interval"`
	AttackCooldown      Duration `yaml:"attack_cooldown"`
	BaseGold            float64  `yaml:"base_gold"`
	BaseGems            float64  `yaml:"base_gems"`
	TopDamageMultiplier float64  `yaml:"top_damage_multiplier"`
	TopDamageCount      int      `yaml:"top_damage_count"`
}

// Market tunes the gold/gem exchange.
type Market struct {
	FeePercent   float64 `yaml:"fee_percent"`
	MinOrderSize float64 `yaml:"min_order_size"`
}

// Events tunes randomized global events.
type Events struct {
	SpawnChance   float64  `yaml:"spawn_chance"` // Bernoulli p per check
	Duration      Duration `yaml:"duration"`
	CheckInterval Duration `yaml:"check_interval"`
}

// Prestige tunes the reset-for-multiplier loop.
type Prestige struct {
	MinLevel      int     `yaml:"min_level"`
	BonusPerLevel float64 `yaml:"bonus_per_level"` // multiplier gained per prestige
}

// Default returns the shipped balance sheet.
func Default() Config {
	return Config{
		Progression: Progression{
			LevelXPBase:       100,
			LevelXPMultiplier: 1.5,
			MaxIdle:           Duration(8 * time.Hour),
		},
		Click: Click{
			Cooldown: Duration(time.Second),
			XP:       1,
		},
		PvP: PvP{
			RandomFactor:         0.2,
			GoldStealPercent:     0.10,
			GoldStealCap:         1000,
			LoserGoldLossPercent: 0.05,
			AttackCooldown:       Duration(5 * time.Minute),
			ShieldDuration:       Duration(30 * time.Minute),
			MinLevel:             3,
			PowerRange:           0.5,
		},
		Dungeon: Dungeon{
			BaseHP:            20,
			HPScaling:         0.1,
			BossInterval:      10,
			BossHPMultiplier:  3,
			BaseEnergyCost:    10,
			DefaultMaxEnergy:  100,
			EnergyRegenPerMin: 1,
			GemBaseChance:     0.10,
			GemChancePerTen:   0.05,
		},
		WorldBoss: WorldBoss{
			BaseHP:              100000,
			PlayerScaling:       0.5,
			Duration:            Duration(time.Hour),
			SpawnInterval:       Duration(4 * time.Hour),
			AttackCooldown:      Duration(time.Minute),
			BaseGold:            10000,
			BaseGems:            100,
			TopDamageMultiplier: 2,
			TopDamageCount:      3,
		},
		Market: Market{
			FeePercent:   0.05,
			MinOrderSize: 1,
		},
		Events: Events{
			SpawnChance:   0.3,
			Duration:      Duration(15 * time.Minute),
			CheckInterval: Duration(5 * time.Minute),
		},
		Prestige: Prestige{
			MinLevel:      50,
			BonusPerLevel: 0.1,
		},
	}
}

// Load reads a yaml override file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("balance.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("balance.yaml: %w", err)
	}
	return cfg, nil
}

// Validate rejects values that would break engine invariants.
func (c Config) Validate() error {
	if c.Progression.LevelXPBase <= 0 {
		return fmt.Errorf("level_xp_base must be positive, got %v", c.Progression.LevelXPBase)
	}
	if c.Progression.LevelXPMultiplier <= 1 {
		return fmt.Errorf("level_xp_multiplier must exceed 1, got %v", c.Progression.LevelXPMultiplier)
	}
	if c.Dungeon.BossInterval < 1 {
		return fmt.Errorf("boss_interval must be at least 1, got %d", c.Dungeon.BossInterval)
	}
	if c.Market.FeePercent < 0 || c.Market.FeePercent >= 1 {
		return fmt.Errorf("fee_percent must be in [0,1), got %v", c.Market.FeePercent)
	}
	if c.Market.MinOrderSize <= 0 {
		return fmt.Errorf("min_order_size must be positive, got %v", c.Market.MinOrderSize)
	}
	if c.Events.SpawnChance < 0 || c.Events.SpawnChance > 1 {
		return fmt.Errorf("spawn_chance must be in [0,1], got %v", c.Events.SpawnChance)
	}
	if c.WorldBoss.TopDamageCount < 0 {
		return fmt.Errorf("top_damage_count must be non-negative, got %d", c.WorldBoss.TopDamageCount)
	}
	return nil
}
