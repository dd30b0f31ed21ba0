package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/engine"
)

// ClickResult is one resolved click.
type ClickResult struct {
	Gold      float64 `json:"gold"`
	XP        int64   `json:"xp"`
	Level     int     `json:"level"`
	LeveledUp bool    `json:"leveled_up"`
}

// Click resolves one active click: gold by click power, flat XP, and
// any level-ups the XP triggers. An active click_multiplier event
// scales the gold.
func (g *Game) Click(agentID uuid.UUID, now time.Time) (*ClickResult, error) {
	a, err := g.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	if !engine.CanClick(a, g.cfg.Click, now) {
		return nil, fmt.Errorf("click by %s: %w", agentID, ErrOnCooldown)
	}

	effects, err := g.activeEffects(now)
	if err != nil {
		return nil, err
	}

	gold := engine.ClickGold(a) * effectOr(effects, engine.EffectClickMultiplier, 1)
	xp := g.cfg.Click.XP

	a.TotalGoldEarned += gold
	a.TotalClicks++
	a.LastClickAt = now
	newLevel, remaining, leveledUp := engine.ApplyLevelUps(g.cfg.Progression, a.Level, a.XP+xp)
	if leveledUp {
		a.SkillPoints += newLevel - a.Level
	}
	a.Level = newLevel
	a.XP = remaining

	if err := g.store.UpdateAgent(a); err != nil {
		return nil, fmt.Errorf("click by %s: %w", agentID, err)
	}
	// Balance deltas go through the atomic credits, never the row write.
	if gold > 0 {
		if err := g.store.AddGold(agentID.String(), gold); err != nil {
			return nil, fmt.Errorf("click by %s: %w", agentID, err)
		}
	}
	return &ClickResult{Gold: gold, XP: xp, Level: a.Level, LeveledUp: leveledUp}, nil
}

// TickResult is one idle-earnings collection.
type TickResult struct {
	Gold          float64 `json:"gold"`
	EnergyGained  int     `json:"energy_gained"`
	CurrentEnergy int     `json:"current_energy"`
}

// IdleTick collects offline earnings since the last tick and
// regenerates energy. An active idle_multiplier event scales the
// gold. Safe to call at any frequency; sub-second elapsed time earns
// nothing.
func (g *Game) IdleTick(agentID uuid.UUID, now time.Time) (*TickResult, error) {
	a, err := g.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	effects, err := g.activeEffects(now)
	if err != nil {
		return nil, err
	}

	gold := engine.IdleEarnings(a, g.cfg.Progression, now) * effectOr(effects, engine.EffectIdleMultiplier, 1)
	current, gained := engine.RegenerateEnergy(a, g.cfg.Dungeon, now)

	a.TotalGoldEarned += gold
	a.Energy = current
	if gained > 0 {
		a.LastEnergyTickAt = now
	}
	a.LastTickAt = now

	if err := g.store.UpdateAgent(a); err != nil {
		return nil, fmt.Errorf("idle tick for %s: %w", agentID, err)
	}
	if gold > 0 {
		if err := g.store.AddGold(agentID.String(), gold); err != nil {
			return nil, fmt.Errorf("idle tick for %s: %w", agentID, err)
		}
	}
	return &TickResult{Gold: gold, EnergyGained: gained, CurrentEnergy: current}, nil
}

// PrestigeResult is one completed prestige reset.
type PrestigeResult struct {
	PrestigeLevel int     `json:"prestige_level"`
	Multiplier    float64 `json:"multiplier"`
}

// Prestige resets level, XP, gold, and dungeon progress in exchange
// for a permanent earnings multiplier. Gems and skill points survive
// the reset.
func (g *Game) Prestige(agentID uuid.UUID, now time.Time) (*PrestigeResult, error) {
	a, err := g.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	if !engine.CanPrestige(a, g.cfg.Prestige) {
		return nil, fmt.Errorf("prestige for %s at level %d: %w", agentID, a.Level, ErrPrestigeLocked)
	}

	a.PrestigeLevel++
	a.PrestigeMultiplier = engine.PrestigeMultiplier(g.cfg.Prestige, a.PrestigeLevel)
	a.Level = 1
	a.XP = 0
	a.HighestFloor = 0
	a.Energy = a.MaxEnergy
	a.LastTickAt = now

	if err := g.store.UpdateAgent(a); err != nil {
		return nil, fmt.Errorf("prestige for %s: %w", agentID, err)
	}
	if err := g.store.ZeroGold(agentID.String()); err != nil {
		return nil, fmt.Errorf("prestige for %s: %w", agentID, err)
	}
	g.log.Info("agent prestiged", "agent", agentID, "prestige_level", a.PrestigeLevel)
	return &PrestigeResult{PrestigeLevel: a.PrestigeLevel, Multiplier: a.PrestigeMultiplier}, nil
}
