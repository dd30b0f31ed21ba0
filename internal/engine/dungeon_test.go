package engine

import (
	"math"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/balance"
)

func TestGenerateMonster(t *testing.T) {
	cfg := balance.Default().Dungeon // base hp 20, scaling 0.1, interval 10, boss mult 3

	m := GenerateMonster(7, cfg, script(0))
	if m.IsBoss {
		t.Error("floor 7 should not be a boss")
	}
	// 20 × 7 × (1 + 7×0.1) = 238
	if m.HP != 238 {
		t.Errorf("floor 7 HP = %v, want 238", m.HP)
	}
	if m.Attack != 5+7*3 {
		t.Errorf("floor 7 attack = %v, want 26", m.Attack)
	}
	if m.Defense != 3+7*2 {
		t.Errorf("floor 7 defense = %v, want 17", m.Defense)
	}
	if !slices.Contains(monsterNames, m.Name) {
		t.Errorf("monster name %q not in the normal pool", m.Name)
	}
}

func TestGenerateMonsterBossFloor(t *testing.T) {
	cfg := balance.Default().Dungeon

	m := GenerateMonster(10, cfg, script(0.99))
	if !m.IsBoss {
		t.Fatal("floor 10 should be a boss (interval 10)")
	}
	// 20 × 10 × (1 + 10×0.1) × 3 = 1200
	if m.HP != 1200 {
		t.Errorf("boss HP = %v, want 1200", m.HP)
	}
	if m.Attack != 5+10*3*2 {
		t.Errorf("boss attack = %v, want 65", m.Attack)
	}
	if !slices.Contains(bossNames, m.Name) {
		t.Errorf("boss name %q not in the boss pool", m.Name)
	}
}

func TestResolveDungeonCombat(t *testing.T) {
	strong := &agents.Agent{ID: uuid.New(), Level: 20, AttackPower: 500, DefensePower: 100, PrestigeMultiplier: 1}
	weak := &agents.Agent{ID: uuid.New(), Level: 1, AttackPower: 1, DefensePower: 1, PrestigeMultiplier: 1}
	monster := agents.Monster{HP: 300, Attack: 30, Defense: 20}

	win := ResolveDungeonCombat(strong, monster, nil)
	if !win.Success {
		t.Error("strong agent should clear the floor")
	}
	// 500×1 − 20×0.3 = 494 per round
	if win.AgentDamage != 494 {
		t.Errorf("agent damage = %v, want 494", win.AgentDamage)
	}

	loss := ResolveDungeonCombat(weak, monster, nil)
	if loss.Success {
		t.Error("weak agent should fail the floor")
	}
	if loss.AgentDamage < 1 || loss.MonsterDamage < 1 {
		t.Error("per-round damage must floor at 1")
	}
}

func TestResolveDungeonCombatSkillAndPrestige(t *testing.T) {
	a := &agents.Agent{ID: uuid.New(), Level: 5, AttackPower: 100, DefensePower: 50, PrestigeMultiplier: 2}
	monster := agents.Monster{HP: 1000, Attack: 10, Defense: 0}

	plain := ResolveDungeonCombat(a, monster, nil)
	boosted := ResolveDungeonCombat(a, monster, agents.SkillEffects{agents.EffectDungeonDamage: 0.5})

	if plain.AgentDamage != 200 { // 100 × 2
		t.Errorf("plain damage = %v, want 200", plain.AgentDamage)
	}
	if boosted.AgentDamage != 300 { // 100 × 1.5 × 2
		t.Errorf("boosted damage = %v, want 300", boosted.AgentDamage)
	}
}

func TestResolveDungeonCombatZeroPrestigeDefaultsToOne(t *testing.T) {
	a := &agents.Agent{ID: uuid.New(), Level: 1, AttackPower: 50, DefensePower: 10}
	monster := agents.Monster{HP: 100, Attack: 5, Defense: 0}

	out := ResolveDungeonCombat(a, monster, nil)
	if out.AgentDamage != 50 {
		t.Errorf("agent damage = %v, want 50 (unset prestige treated as ×1)", out.AgentDamage)
	}
}

func TestRollDungeonRewardsFailure(t *testing.T) {
	cfg := balance.Default().Dungeon

	r := RollDungeonRewards(15, false, false, nil, cfg, script(0))
	if r.Gold != 0 || r.Gems != 0 {
		t.Errorf("failure paid gold=%d gems=%d, want consolation XP only", r.Gold, r.Gems)
	}
	if r.XP != 30 { // floor × 2
		t.Errorf("consolation XP = %d, want 30", r.XP)
	}
}

func TestRollDungeonRewardsBossFloor(t *testing.T) {
	cfg := balance.Default().Dungeon

	r := RollDungeonRewards(10, true, true, nil, cfg, script(0.99))
	if r.Gold != (50+10*20)*5 {
		t.Errorf("boss gold = %d, want 1250", r.Gold)
	}
	if r.XP != (5+10*2)*3 {
		t.Errorf("boss XP = %d, want 75", r.XP)
	}
	if r.Gems != 2 { // ceil(10/5), no bonus
		t.Errorf("boss gems = %d, want 2", r.Gems)
	}
}

func TestRollDungeonRewardsBossBonus(t *testing.T) {
	cfg := balance.Default().Dungeon
	effects := agents.SkillEffects{agents.EffectBossReward: 0.5}

	r := RollDungeonRewards(20, true, true, effects, cfg, script(0.99))
	if r.Gems != 6 { // floor(ceil(20/5) × 1.5)
		t.Errorf("bonus boss gems = %d, want 6", r.Gems)
	}
}

func TestRollDungeonRewardsGemChance(t *testing.T) {
	cfg := balance.Default().Dungeon

	// Draw below the chance threshold: gems drop.
	hit := RollDungeonRewards(25, false, true, nil, cfg, script(0.0))
	if hit.Gems != 3 { // ceil(25/10)
		t.Errorf("gem hit = %d, want 3", hit.Gems)
	}

	// Draw above the threshold: no gems.
	miss := RollDungeonRewards(25, false, true, nil, cfg, script(0.99))
	if miss.Gems != 0 {
		t.Errorf("gem miss = %d, want 0", miss.Gems)
	}
}

func TestRollDungeonRewardsLootBonus(t *testing.T) {
	cfg := balance.Default().Dungeon
	effects := agents.SkillEffects{agents.EffectDungeonLoot: 0.25}

	r := RollDungeonRewards(10, false, true, effects, cfg, script(0.99))
	want := int64(math.Floor((50 + 10*20) * 1.25))
	if r.Gold != want {
		t.Errorf("loot-boosted gold = %d, want %d", r.Gold, want)
	}
}

func TestEnergyCost(t *testing.T) {
	cfg := balance.Default().Dungeon // base 10

	tests := []struct {
		floor int
		want  int
	}{
		{1, 10},
		{9, 10},
		{10, 11},
		{25, 12},
		{100, 20},
	}
	for _, tt := range tests {
		if got := EnergyCost(tt.floor, cfg); got != tt.want {
			t.Errorf("EnergyCost(%d) = %d, want %d", tt.floor, got, tt.want)
		}
	}

	// Monotonic in floor.
	prev := 0
	for floor := 1; floor <= 200; floor++ {
		c := EnergyCost(floor, cfg)
		if c < prev {
			t.Fatalf("cost decreased at floor %d: %d < %d", floor, c, prev)
		}
		prev = c
	}
}
