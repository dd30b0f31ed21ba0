// Dungeon encounters: monster generation, closed-form floor combat,
// and reward rolls.
package engine

import (
	"fmt"
	"math"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/balance"
	"github.com/talgya/idle-arena/internal/entropy"
)

var bossNames = []string{
	"Dragon Lord", "Shadow King", "Void Titan", "Chaos Overlord", "Ancient Wyrm",
}

var monsterNames = []string{
	"Goblin", "Skeleton", "Dark Slime", "Corrupted Bot",
	"Phantom", "Cave Troll", "Shadow Imp", "Iron Golem",
}

// GenerateMonster creates the opponent for a floor. Every Nth floor
// (BossInterval) is a boss with amplified HP and stats; base HP grows
// superlinearly with floor.
func GenerateMonster(floor int, cfg balance.Dungeon, src entropy.Source) agents.Monster {
	if floor < 1 {
		panic(fmt.Sprintf("engine: GenerateMonster called with floor %d", floor))
	}

	isBoss := floor%cfg.BossInterval == 0
	hp := cfg.BaseHP * float64(floor) * (1 + float64(floor)*cfg.HPScaling)
	if isBoss {
		hp *= cfg.BossHPMultiplier
	}

	statMult := 1.0
	if isBoss {
		statMult = 2.0
	}

	names := monsterNames
	if isBoss {
		names = bossNames
	}

	return agents.Monster{
		Name:    names[entropy.Pick(src, len(names))],
		HP:      math.Floor(hp),
		Attack:  math.Floor(5 + float64(floor)*3*statMult),
		Defense: math.Floor(3 + float64(floor)*2*statMult),
		IsBoss:  isBoss,
		Floor:   floor,
	}
}

// DungeonOutcome is the closed-form result of a floor attempt.
type DungeonOutcome struct {
	Success       bool    `json:"success"`
	AgentDamage   float64 `json:"agent_damage"`   // damage per round, floored
	MonsterDamage float64 `json:"monster_damage"` // damage per round, floored
	Rounds        int     `json:"rounds"`         // rounds until the fight ends
	MonsterHP     float64 `json:"monster_hp"`
}

// ResolveDungeonCombat computes a round estimate in closed form: each
// side's per-round damage, then ceiling-division rounds-to-kill. The
// agent succeeds iff it kills at least as fast as the monster (ties
// favor the agent). No round-by-round simulation happens here.
func ResolveDungeonCombat(a *agents.Agent, m agents.Monster, effects agents.SkillEffects) DungeonOutcome {
	if a.AttackPower < 0 || a.DefensePower < 0 {
		panic(fmt.Sprintf("engine: negative combat power for agent %s", a.ID))
	}

	agentAttack := a.AttackPower * (1 + effects.Get(agents.EffectDungeonDamage))
	prestige := a.PrestigeMultiplier
	if prestige == 0 {
		prestige = 1
	}

	agentDamage := math.Max(1, agentAttack*prestige-m.Defense*0.3)
	monsterDamage := math.Max(1, m.Attack-a.DefensePower*0.3)

	roundsToKillMonster := int(math.Ceil(m.HP / agentDamage))
	agentEffectiveHP := a.DefensePower*10 + float64(a.Level)*5
	roundsToKillAgent := int(math.Ceil(agentEffectiveHP / monsterDamage))

	return DungeonOutcome{
		Success:       roundsToKillMonster <= roundsToKillAgent,
		AgentDamage:   math.Floor(agentDamage),
		MonsterDamage: math.Floor(monsterDamage),
		Rounds:        min(roundsToKillMonster, roundsToKillAgent),
		MonsterHP:     m.HP,
	}
}

// DungeonRewards is the loot from one floor attempt.
type DungeonRewards struct {
	Gold int64 `json:"gold"`
	XP   int64 `json:"xp"`
	Gems int64 `json:"gems"`
}

// RollDungeonRewards computes loot for a floor attempt. Failure pays
// a small XP consolation only. Success scales gold and XP with floor
// and boss multipliers; gems are guaranteed on boss floors and
// probabilistic elsewhere (one draw from src).
func RollDungeonRewards(floor int, isBoss, success bool, effects agents.SkillEffects, cfg balance.Dungeon, src entropy.Source) DungeonRewards {
	if floor < 1 {
		panic(fmt.Sprintf("engine: RollDungeonRewards called with floor %d", floor))
	}

	if !success {
		return DungeonRewards{XP: int64(floor * 2)}
	}

	lootBonus := 1 + effects.Get(agents.EffectDungeonLoot)
	goldMult, xpMult := 1.0, 1.0
	if isBoss {
		goldMult, xpMult = 5, 3
	}

	gold := int64(math.Floor((50 + float64(floor)*20) * goldMult * lootBonus))
	xp := int64(math.Floor((5 + float64(floor)*2) * xpMult))

	var gems int64
	if isBoss {
		bossBonus := 1 + effects.Get(agents.EffectBossReward)
		gems = int64(math.Floor(math.Ceil(float64(floor)/5) * bossBonus))
	} else {
		chance := cfg.GemBaseChance + float64(floor/10)*cfg.GemChancePerTen + effects.Get(agents.EffectGemFind)
		if src.Float() < chance {
			gems = int64(math.Ceil(float64(floor) / 10))
		}
	}

	return DungeonRewards{Gold: gold, XP: xp, Gems: gems}
}

// EnergyCost returns the energy price of attempting a floor,
// monotonically non-decreasing in floor.
func EnergyCost(floor int, cfg balance.Dungeon) int {
	if floor < 1 {
		panic(fmt.Sprintf("engine: EnergyCost called with floor %d", floor))
	}
	return cfg.BaseEnergyCost + floor/10
}
