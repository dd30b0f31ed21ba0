// Package agents provides the agent data model shared by every engine.
// Agents are transient value snapshots: the persistence layer owns the
// records, engines only read the copy they are handed.
package agents

import (
	"time"

	"github.com/google/uuid"
)

// Agent is a snapshot of one player's persistent state at call time.
// All currency and power fields are non-negative; karma and the
// prestige multiplier are >= 0. Engines panic on violations since a
// malformed snapshot means the caller broke the contract.
type Agent struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`

	Level int   `json:"level" db:"level"`
	XP    int64 `json:"xp" db:"xp"`

	Gold float64 `json:"gold" db:"gold"`
	Gems float64 `json:"gems" db:"gems"`

	ClickPower   float64 `json:"click_power" db:"click_power"`
	IdleRate     float64 `json:"idle_rate" db:"idle_rate"`
	AttackPower  float64 `json:"attack_power" db:"attack_power"`
	DefensePower float64 `json:"defense_power" db:"defense_power"`
	PowerScore   float64 `json:"power_score" db:"power_score"`

	// Karma multiplies currency earnings, roughly 0.5–1.5.
	Karma float64 `json:"karma" db:"karma"`

	PrestigeLevel      int     `json:"prestige_level" db:"prestige_level"`
	PrestigeMultiplier float64 `json:"prestige_multiplier" db:"prestige_multiplier"`

	Energy       int `json:"energy" db:"energy"`
	MaxEnergy    int `json:"max_energy" db:"max_energy"`
	HighestFloor int `json:"highest_floor" db:"highest_floor"`
	SkillPoints  int `json:"skill_points" db:"skill_points"`

	AllianceID *uuid.UUID `json:"alliance_id,omitempty" db:"alliance_id"`

	LastClickAt      time.Time `json:"last_click_at" db:"last_click_at"`
	LastAttackAt     time.Time `json:"last_attack_at" db:"last_attack_at"`
	LastTickAt       time.Time `json:"last_tick_at" db:"last_tick_at"`
	LastEnergyTickAt time.Time `json:"last_energy_tick_at" db:"last_energy_tick_at"`
	ShieldUntil      time.Time `json:"shield_until" db:"shield_until"`

	TotalClicks     int64   `json:"total_clicks" db:"total_clicks"`
	TotalGoldEarned float64 `json:"total_gold_earned" db:"total_gold_earned"`
	TotalPvPWins    int64   `json:"total_pvp_wins" db:"total_pvp_wins"`
	TotalPvPLosses  int64   `json:"total_pvp_losses" db:"total_pvp_losses"`
}

// SameAlliance reports whether both agents belong to one alliance.
func (a *Agent) SameAlliance(b *Agent) bool {
	return a.AllianceID != nil && b.AllianceID != nil && *a.AllianceID == *b.AllianceID
}

// Shielded reports whether the agent's PvP shield covers the instant.
func (a *Agent) Shielded(now time.Time) bool {
	return now.Before(a.ShieldUntil)
}

// SkillEffects maps effect keys to additive numeric modifiers. The key
// set is data-driven and expected to grow, so this stays a plain map
// rather than a struct.
type SkillEffects map[string]float64

// Effect keys currently produced by the skill tree.
const (
	EffectDungeonDamage = "dungeon_damage"
	EffectDungeonLoot   = "dungeon_loot_bonus"
	EffectBossReward    = "boss_reward_bonus"
	EffectGemFind       = "gem_find_bonus"
)

// Get returns the modifier for key, or 0 when absent (nil-safe).
func (e SkillEffects) Get(key string) float64 {
	if e == nil {
		return 0
	}
	return e[key]
}

// Monster is a dungeon encounter opponent. Generated fresh per entry
// and never persisted.
type Monster struct {
	Name    string  `json:"name"`
	HP      float64 `json:"hp"`
	Attack  float64 `json:"attack"`
	Defense float64 `json:"defense"`
	IsBoss  bool    `json:"is_boss"`
	Floor   int     `json:"floor"`
}
