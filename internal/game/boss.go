package game

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/engine"
	"github.com/talgya/idle-arena/internal/persistence"
)

// activePlayerWindow bounds the population count that scales boss HP.
const activePlayerWindow = 24 * time.Hour

// CurrentBoss returns the active boss after expiring any lapsed one.
func (g *Game) CurrentBoss(now time.Time) (*engine.WorldBoss, error) {
	g.bossMu.Lock()
	defer g.bossMu.Unlock()

	if _, err := g.store.ExpireBosses(now); err != nil {
		return nil, err
	}
	boss, err := g.store.ActiveBoss()
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("current boss: %w", ErrNoActiveBoss)
	}
	return boss, err
}

// SpawnBossIfDue spawns a new boss when none is active and the spawn
// interval has passed since the last one. Returns nil when nothing
// spawned.
func (g *Game) SpawnBossIfDue(now time.Time) (*engine.WorldBoss, error) {
	g.bossMu.Lock()
	defer g.bossMu.Unlock()

	if _, err := g.store.ExpireBosses(now); err != nil {
		return nil, err
	}
	if _, err := g.store.ActiveBoss(); err == nil {
		return nil, nil
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}

	last, err := g.store.LatestBossSpawn()
	if err != nil {
		return nil, err
	}
	if !last.IsZero() && now.Sub(last) < g.cfg.WorldBoss.SpawnInterval.Std() {
		return nil, nil
	}
	return g.spawnBossLocked(now)
}

// SpawnBoss spawns a boss immediately, replacing nothing: it fails
// while a boss is still active. Admin use.
func (g *Game) SpawnBoss(now time.Time) (*engine.WorldBoss, error) {
	g.bossMu.Lock()
	defer g.bossMu.Unlock()

	if _, err := g.store.ExpireBosses(now); err != nil {
		return nil, err
	}
	if _, err := g.store.ActiveBoss(); err == nil {
		return nil, fmt.Errorf("spawn boss: one is already active")
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return nil, err
	}
	return g.spawnBossLocked(now)
}

func (g *Game) spawnBossLocked(now time.Time) (*engine.WorldBoss, error) {
	players, err := g.store.ActiveAgentCount(now.Add(-activePlayerWindow))
	if err != nil {
		return nil, err
	}

	boss := engine.GenerateBoss(players, g.cfg.WorldBoss, g.src, now)
	if err := g.store.InsertBoss(&boss); err != nil {
		return nil, err
	}
	g.log.Info("world boss spawned",
		"boss", boss.ID, "name", boss.Name, "hp", boss.MaxHP, "active_players", players)
	return &boss, nil
}

// BossAttackResult is one attack against the world boss.
type BossAttackResult struct {
	BossID   uuid.UUID `json:"boss_id"`
	Damage   float64   `json:"damage"`
	BossHP   float64   `json:"boss_hp"`
	Defeated bool      `json:"defeated"`
}

// AttackBoss rolls one attack against the active boss. The attack
// whose damage crosses zero HP triggers the reward distribution, and
// only that one: the store's status transition makes the defeat
// observation exactly-once.
func (g *Game) AttackBoss(agentID uuid.UUID, now time.Time) (*BossAttackResult, error) {
	a, err := g.store.GetAgent(agentID)
	if err != nil {
		return nil, err
	}

	g.bossMu.Lock()
	defer g.bossMu.Unlock()

	if _, err := g.store.ExpireBosses(now); err != nil {
		return nil, err
	}
	boss, err := g.store.ActiveBoss()
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("boss attack by %s: %w", agentID, ErrNoActiveBoss)
	}
	if err != nil {
		return nil, err
	}

	last, err := g.store.LastBossAttack(boss.ID, agentID)
	if err != nil {
		return nil, err
	}
	if !last.IsZero() && now.Sub(last) < g.cfg.WorldBoss.AttackCooldown.Std() {
		return nil, fmt.Errorf("boss attack by %s: %w", agentID, ErrOnCooldown)
	}

	damage := engine.BossAttackDamage(a, g.src)
	newHP, defeated, err := g.store.ApplyBossDamage(boss.ID, damage)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("boss attack by %s: %w", agentID, ErrNoActiveBoss)
	}
	if err != nil {
		return nil, err
	}
	if err := g.store.RecordBossAttack(boss.ID, agentID, damage, now); err != nil {
		return nil, err
	}

	if defeated {
		if err := g.distributeBossRewards(boss.ID, now); err != nil {
			return nil, fmt.Errorf("boss reward distribution: %w", err)
		}
		g.log.Info("world boss defeated", "boss", boss.ID, "name", boss.Name, "final_blow", agentID)
	}
	return &BossAttackResult{BossID: boss.ID, Damage: damage, BossHP: newHP, Defeated: defeated}, nil
}

// distributeBossRewards writes one payout row per contributor, split
// by damage share, with the top-N bonus applied by ranking.
func (g *Game) distributeBossRewards(bossID uuid.UUID, now time.Time) error {
	attacks, err := g.store.BossAttacks(bossID)
	if err != nil {
		return err
	}

	var total float64
	for _, atk := range attacks {
		total += atk.DamageDealt
	}

	rewards := make([]persistence.BossReward, 0, len(attacks))
	for rank, atk := range attacks {
		isTop := rank < g.cfg.WorldBoss.TopDamageCount
		r := engine.CalculateBossRewards(total, atk.DamageDealt, isTop, g.cfg.WorldBoss)
		rewards = append(rewards, persistence.BossReward{
			BossID:      bossID,
			AgentID:     atk.AgentID,
			GoldReward:  r.Gold,
			GemReward:   r.Gems,
			IsTopDamage: isTop,
			CreatedAt:   now,
		})
	}
	return g.store.InsertBossRewards(rewards)
}

// ClaimSummary is the payout of one claim sweep.
type ClaimSummary struct {
	Claimed int     `json:"claimed"`
	Gold    float64 `json:"gold"`
	Gems    float64 `json:"gems"`
}

// ClaimBossRewards pays out every unclaimed reward the agent holds.
// A boss_reward_bonus skill effect scales the gold at claim time.
func (g *Game) ClaimBossRewards(agentID uuid.UUID, effects agents.SkillEffects, now time.Time) (*ClaimSummary, error) {
	pending, err := g.store.UnclaimedRewards(agentID)
	if err != nil {
		return nil, err
	}

	bonus := 1 + effects.Get(agents.EffectBossReward)
	summary := &ClaimSummary{}
	for _, r := range pending {
		if err := g.store.ClaimReward(r.ID, agentID); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, err
		}
		// Each row is paid right after its claim flip.
		gold := math.Floor(float64(r.GoldReward) * bonus)
		if gold > 0 {
			if err := g.store.AddGold(agentID.String(), gold); err != nil {
				return nil, fmt.Errorf("reward %d payout: %w", r.ID, err)
			}
		}
		if r.GemReward > 0 {
			if err := g.store.AddGems(agentID.String(), float64(r.GemReward)); err != nil {
				return nil, fmt.Errorf("reward %d payout: %w", r.ID, err)
			}
		}
		summary.Claimed++
		summary.Gold += gold
		summary.Gems += float64(r.GemReward)
	}
	return summary, nil
}
