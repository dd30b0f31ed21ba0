// Package engine contains the pure simulation computations: idle
// progression, PvP combat, dungeon encounters, the world boss, global
// events, and the market matcher. Every function consumes explicit
// snapshots plus the balance config (and an entropy source where it
// rolls dice) and returns a result value; applying results is the
// caller's job.
package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/balance"
)

// IdleEarnings returns the gold accrued since the agent's last tick.
// Elapsed time below one second yields 0; elapsed time is capped at
// the configured offline maximum. Result is idleRate × seconds × karma.
func IdleEarnings(a *agents.Agent, cfg balance.Progression, now time.Time) float64 {
	if a.IdleRate < 0 || a.Karma < 0 {
		panic(fmt.Sprintf("engine: negative idle rate or karma for agent %s", a.ID))
	}

	elapsed := now.Sub(a.LastTickAt).Seconds()
	if elapsed < 1 {
		return 0
	}
	if limit := cfg.MaxIdle.Std().Seconds(); elapsed > limit {
		elapsed = limit
	}
	return a.IdleRate * elapsed * a.Karma
}

// XPForLevel returns the XP threshold to advance past the given level:
// base × multiplier^(level−1), floored.
func XPForLevel(cfg balance.Progression, level int) int64 {
	if level < 1 {
		panic(fmt.Sprintf("engine: XPForLevel called with level %d", level))
	}
	return int64(cfg.LevelXPBase * math.Pow(cfg.LevelXPMultiplier, float64(level-1)))
}

// ApplyLevelUps consumes XP against successive level thresholds and
// returns the new level, the XP left over, and whether any level was
// gained. The loop terminates because thresholds grow monotonically.
func ApplyLevelUps(cfg balance.Progression, level int, xp int64) (newLevel int, remaining int64, leveledUp bool) {
	if level < 1 || xp < 0 {
		panic(fmt.Sprintf("engine: ApplyLevelUps called with level %d, xp %d", level, xp))
	}

	newLevel, remaining = level, xp
	for {
		needed := XPForLevel(cfg, newLevel)
		if remaining < needed {
			break
		}
		remaining -= needed
		newLevel++
	}
	return newLevel, remaining, newLevel > level
}

// CanClick reports whether the click cooldown has elapsed.
func CanClick(a *agents.Agent, cfg balance.Click, now time.Time) bool {
	return now.Sub(a.LastClickAt) >= cfg.Cooldown.Std()
}

// ClickGold returns the gold earned by one click: clickPower × karma.
func ClickGold(a *agents.Agent) float64 {
	if a.ClickPower < 0 || a.Karma < 0 {
		panic(fmt.Sprintf("engine: negative click power or karma for agent %s", a.ID))
	}
	return a.ClickPower * a.Karma
}

// RegenerateEnergy returns the agent's energy after applying regen for
// the minutes elapsed since the last energy tick, clamped to max.
func RegenerateEnergy(a *agents.Agent, cfg balance.Dungeon, now time.Time) (current, gained int) {
	maxEnergy := a.MaxEnergy
	if maxEnergy <= 0 {
		maxEnergy = cfg.DefaultMaxEnergy
	}

	minutes := now.Sub(a.LastEnergyTickAt).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	gained = int(minutes * cfg.EnergyRegenPerMin)

	current = a.Energy + gained
	if current > maxEnergy {
		current = maxEnergy
	}
	return current, gained
}

// PrestigeMultiplier returns the permanent earnings multiplier for a
// prestige level: 1 + level × bonus.
func PrestigeMultiplier(cfg balance.Prestige, prestigeLevel int) float64 {
	if prestigeLevel < 0 {
		panic(fmt.Sprintf("engine: negative prestige level %d", prestigeLevel))
	}
	return 1 + float64(prestigeLevel)*cfg.BonusPerLevel
}

// CanPrestige reports whether the agent meets the prestige level gate.
func CanPrestige(a *agents.Agent, cfg balance.Prestige) bool {
	return a.Level >= cfg.MinLevel
}
