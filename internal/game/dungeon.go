package game

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/engine"
)

// DungeonResult is one completed floor attempt.
type DungeonResult struct {
	Floor      int                   `json:"floor"`
	Monster    agents.Monster        `json:"monster"`
	Outcome    engine.DungeonOutcome `json:"outcome"`
	Rewards    engine.DungeonRewards `json:"rewards"`
	EnergyCost int                   `json:"energy_cost"`
	Energy     int                   `json:"energy"`
	Level      int                   `json:"level"`
	LeveledUp  bool                  `json:"leveled_up"`
}

// RunDungeon attempts one dungeon floor. Floors unlock sequentially:
// any floor up to highest+1 is playable, nothing beyond. Energy
// regenerates first, then the floor's cost is spent win or lose.
// The effects loadout comes from the caller's skill build.
func (g *Game) RunDungeon(agentID uuid.UUID, floor int, effects agents.SkillEffects, now time.Time) (*DungeonResult, error) {
	if floor < 1 {
		return nil, fmt.Errorf("dungeon floor %d: %w", floor, ErrFloorLocked)
	}

	a, err := g.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}
	if floor > a.HighestFloor+1 {
		return nil, fmt.Errorf("dungeon floor %d with highest %d: %w", floor, a.HighestFloor, ErrFloorLocked)
	}

	current, gained := engine.RegenerateEnergy(a, g.cfg.Dungeon, now)
	a.Energy = current
	if gained > 0 {
		a.LastEnergyTickAt = now
	}

	cost := engine.EnergyCost(floor, g.cfg.Dungeon)
	if a.Energy < cost {
		return nil, fmt.Errorf("dungeon floor %d needs %d energy, have %d: %w",
			floor, cost, a.Energy, ErrNotEnoughEnergy)
	}
	a.Energy -= cost

	monster := engine.GenerateMonster(floor, g.cfg.Dungeon, g.src)
	outcome := engine.ResolveDungeonCombat(a, monster, effects)
	rewards := engine.RollDungeonRewards(floor, monster.IsBoss, outcome.Success, effects, g.cfg.Dungeon, g.src)

	leveledUp := false
	if outcome.Success {
		a.TotalGoldEarned += float64(rewards.Gold)
		if floor > a.HighestFloor {
			a.HighestFloor = floor
		}
	}
	newLevel, remaining, up := engine.ApplyLevelUps(g.cfg.Progression, a.Level, a.XP+rewards.XP)
	if up {
		a.SkillPoints += newLevel - a.Level
		leveledUp = true
	}
	a.Level = newLevel
	a.XP = remaining

	if err := g.store.UpdateAgent(a); err != nil {
		return nil, fmt.Errorf("dungeon floor %d for %s: %w", floor, agentID, err)
	}
	if outcome.Success {
		if rewards.Gold > 0 {
			if err := g.store.AddGold(agentID.String(), float64(rewards.Gold)); err != nil {
				return nil, fmt.Errorf("dungeon reward: %w", err)
			}
		}
		if rewards.Gems > 0 {
			if err := g.store.AddGems(agentID.String(), float64(rewards.Gems)); err != nil {
				return nil, fmt.Errorf("dungeon reward: %w", err)
			}
		}
	}
	if err := g.store.LogDungeon(agentID, floor, outcome.Success, monster, rewards, now); err != nil {
		return nil, fmt.Errorf("dungeon log: %w", err)
	}

	g.log.Info("dungeon run",
		"agent", agentID, "floor", floor, "monster", monster.Name,
		"success", outcome.Success, "gold", rewards.Gold, "gems", rewards.Gems)
	return &DungeonResult{
		Floor:      floor,
		Monster:    monster,
		Outcome:    outcome,
		Rewards:    rewards,
		EnergyCost: cost,
		Energy:     a.Energy,
		Level:      a.Level,
		LeveledUp:  leveledUp,
	}, nil
}
