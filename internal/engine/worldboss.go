// World boss: population-scaled generation, per-attack damage, and
// damage-share reward splits.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/balance"
	"github.com/talgya/idle-arena/internal/entropy"
)

// BossStatus is the lifecycle state of a world boss.
type BossStatus string

const (
	BossActive   BossStatus = "active"
	BossDefeated BossStatus = "defeated"
	BossExpired  BossStatus = "expired"
)

// WorldBoss is a shared boss fought by every agent at once. Only
// CurrentHP mutates after creation: it decrements under attacks, and
// the status flips to defeated at the zero crossing or to expired
// when the active window lapses first.
type WorldBoss struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	MaxHP     float64    `json:"max_hp" db:"max_hp"`
	CurrentHP float64    `json:"current_hp" db:"current_hp"`
	Status    BossStatus `json:"status" db:"status"`
	SpawnedAt time.Time  `json:"spawned_at" db:"spawned_at"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
}

var worldBossNames = []string{
	"Chronos, the Time Eater",
	"Nexus Prime",
	"The Void Architect",
	"Omega Protocol",
	"Entropy Colossus",
	"Neural Leviathan",
	"Quantum Hydra",
	"The Singularity",
}

// GenerateBoss creates a fresh boss with HP scaled to the active
// player population.
func GenerateBoss(activePlayers int, cfg balance.WorldBoss, src entropy.Source, now time.Time) WorldBoss {
	if activePlayers < 0 {
		panic(fmt.Sprintf("engine: GenerateBoss called with %d active players", activePlayers))
	}

	hp := math.Floor(cfg.BaseHP * (1 + float64(activePlayers)*cfg.PlayerScaling))
	return WorldBoss{
		ID:        uuid.New(),
		Name:      worldBossNames[entropy.Pick(src, len(worldBossNames))],
		MaxHP:     hp,
		CurrentHP: hp,
		Status:    BossActive,
		SpawnedAt: now,
		ExpiresAt: now.Add(cfg.Duration.Std()),
	}
}

// BossAttackDamage rolls one attack against the boss:
// floor((attack + click×0.5) × prestige × uniform(0.8, 1.2)).
func BossAttackDamage(a *agents.Agent, src entropy.Source) float64 {
	if a.AttackPower < 0 || a.ClickPower < 0 {
		panic(fmt.Sprintf("engine: negative power for agent %s", a.ID))
	}

	base := a.AttackPower + a.ClickPower*0.5
	prestige := a.PrestigeMultiplier
	if prestige == 0 {
		prestige = 1
	}
	return math.Floor(base * prestige * entropy.Uniform(src, 0.8, 1.2))
}

// BossRewards is one contributor's cut of the boss loot pool.
type BossRewards struct {
	Gold  int64   `json:"gold"`
	Gems  int64   `json:"gems"`
	Share float64 `json:"share"` // this contributor's fraction of total damage
}

// CalculateBossRewards splits the loot pool by damage share. A zero
// totalDamage yields a defined zero share instead of NaN. Gems floor
// at 1 so every contributor gets something. The top-damage multiplier
// applies only when the caller's ranking marks this contributor top-N.
func CalculateBossRewards(totalDamage, agentDamage float64, isTopDamage bool, cfg balance.WorldBoss) BossRewards {
	if totalDamage < 0 || agentDamage < 0 {
		panic(fmt.Sprintf("engine: negative damage (%v of %v)", agentDamage, totalDamage))
	}

	share := 0.0
	if totalDamage > 0 {
		share = agentDamage / totalDamage
	}

	mult := 1.0
	if isTopDamage {
		mult = cfg.TopDamageMultiplier
	}

	gems := int64(math.Floor(cfg.BaseGems * share * mult))
	if gems < 1 {
		gems = 1
	}

	return BossRewards{
		Gold:  int64(math.Floor(cfg.BaseGold * share * mult)),
		Gems:  gems,
		Share: share,
	}
}
