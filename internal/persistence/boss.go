package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/engine"
)

type bossRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	MaxHP     float64 `db:"max_hp"`
	CurrentHP float64 `db:"current_hp"`
	Status    string  `db:"status"`
	SpawnedAt int64   `db:"spawned_at"`
	ExpiresAt int64   `db:"expires_at"`
}

func (r *bossRow) toBoss() (*engine.WorldBoss, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("boss id %q: %w", r.ID, err)
	}
	return &engine.WorldBoss{
		ID:        id,
		Name:      r.Name,
		MaxHP:     r.MaxHP,
		CurrentHP: r.CurrentHP,
		Status:    engine.BossStatus(r.Status),
		SpawnedAt: fromMillis(r.SpawnedAt),
		ExpiresAt: fromMillis(r.ExpiresAt),
	}, nil
}

// BossAttack is one agent's accumulated damage against a boss.
type BossAttack struct {
	BossID       uuid.UUID
	AgentID      uuid.UUID
	DamageDealt  float64
	LastAttackAt time.Time
}

// BossReward is one agent's payout row from a defeated boss.
type BossReward struct {
	ID          int64
	BossID      uuid.UUID
	AgentID     uuid.UUID
	GoldReward  int64
	GemReward   int64
	IsTopDamage bool
	Claimed     bool
	CreatedAt   time.Time
}

type bossAttackRow struct {
	BossID       string  `db:"boss_id"`
	AgentID      string  `db:"agent_id"`
	DamageDealt  float64 `db:"damage_dealt"`
	LastAttackAt int64   `db:"last_attack_at"`
}

type bossRewardRow struct {
	ID          int64  `db:"id"`
	BossID      string `db:"boss_id"`
	AgentID     string `db:"agent_id"`
	GoldReward  int64  `db:"gold_reward"`
	GemReward   int64  `db:"gem_reward"`
	IsTopDamage bool   `db:"is_top_damage"`
	Claimed     bool   `db:"claimed"`
	CreatedAt   int64  `db:"created_at"`
}

// InsertBoss persists a freshly generated boss.
func (db *DB) InsertBoss(b *engine.WorldBoss) error {
	_, err := db.conn.Exec(`INSERT INTO world_bosses
		(id, name, max_hp, current_hp, status, spawned_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.Name, b.MaxHP, b.CurrentHP, string(b.Status),
		millis(b.SpawnedAt), millis(b.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert boss: %w", err)
	}
	return nil
}

// ActiveBoss returns the current active boss, or ErrNotFound when
// none is up.
func (db *DB) ActiveBoss() (*engine.WorldBoss, error) {
	var row bossRow
	err := db.conn.Get(&row,
		"SELECT * FROM world_bosses WHERE status = 'active' ORDER BY spawned_at DESC LIMIT 1")
	if isNoRows(err) {
		return nil, fmt.Errorf("active boss: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("active boss: %w", err)
	}
	return row.toBoss()
}

// GetBoss loads one boss by id.
func (db *DB) GetBoss(id uuid.UUID) (*engine.WorldBoss, error) {
	var row bossRow
	err := db.conn.Get(&row, "SELECT * FROM world_bosses WHERE id = ?", id.String())
	if isNoRows(err) {
		return nil, fmt.Errorf("boss %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get boss: %w", err)
	}
	return row.toBoss()
}

// LatestBossSpawn returns the most recent spawn time across all
// bosses. Zero time when no boss has ever spawned.
func (db *DB) LatestBossSpawn() (time.Time, error) {
	var ms sql.NullInt64
	err := db.conn.Get(&ms, "SELECT MAX(spawned_at) FROM world_bosses")
	if err != nil {
		return time.Time{}, fmt.Errorf("latest boss spawn: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return fromMillis(ms.Int64), nil
}

// ApplyBossDamage subtracts damage from an active boss and reports
// the new HP. The status flips to defeated exactly once: only the
// call whose guarded update crosses zero sees defeated=true, so the
// caller owning that call distributes rewards.
func (db *DB) ApplyBossDamage(bossID uuid.UUID, damage float64) (newHP float64, defeated bool, err error) {
	if damage <= 0 {
		return 0, false, fmt.Errorf("apply boss damage: non-positive damage %v", damage)
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return 0, false, fmt.Errorf("apply boss damage: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE world_bosses
		SET current_hp = MAX(0, current_hp - ?),
		    status = CASE WHEN current_hp - ? <= 0 THEN 'defeated' ELSE status END
		WHERE id = ? AND status = 'active'`,
		damage, damage, bossID.String())
	if err != nil {
		return 0, false, fmt.Errorf("apply boss damage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, false, fmt.Errorf("boss %s not active: %w", bossID, ErrNotFound)
	}

	var row struct {
		CurrentHP float64 `db:"current_hp"`
		Status    string  `db:"status"`
	}
	if err := tx.Get(&row,
		"SELECT current_hp, status FROM world_bosses WHERE id = ?", bossID.String()); err != nil {
		return 0, false, fmt.Errorf("apply boss damage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("apply boss damage: %w", err)
	}
	return row.CurrentHP, row.Status == string(engine.BossDefeated), nil
}

// ExpireBosses flips active bosses whose window has lapsed to
// expired. Returns how many were expired.
func (db *DB) ExpireBosses(now time.Time) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE world_bosses SET status = 'expired' WHERE status = 'active' AND expires_at <= ?",
		millis(now))
	if err != nil {
		return 0, fmt.Errorf("expire bosses: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecordBossAttack accumulates an agent's damage against a boss and
// stamps the attack time.
func (db *DB) RecordBossAttack(bossID, agentID uuid.UUID, damage float64, now time.Time) error {
	_, err := db.conn.Exec(`INSERT INTO boss_attacks
		(boss_id, agent_id, damage_dealt, last_attack_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(boss_id, agent_id) DO UPDATE SET
			damage_dealt = damage_dealt + excluded.damage_dealt,
			last_attack_at = excluded.last_attack_at`,
		bossID.String(), agentID.String(), damage, millis(now))
	if err != nil {
		return fmt.Errorf("record boss attack: %w", err)
	}
	return nil
}

// LastBossAttack returns when the agent last hit the boss. Zero time
// when the agent has not attacked it yet.
func (db *DB) LastBossAttack(bossID, agentID uuid.UUID) (time.Time, error) {
	var ms int64
	err := db.conn.Get(&ms,
		"SELECT last_attack_at FROM boss_attacks WHERE boss_id = ? AND agent_id = ?",
		bossID.String(), agentID.String())
	if isNoRows(err) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("last boss attack: %w", err)
	}
	return fromMillis(ms), nil
}

// BossAttacks lists every attacker's accumulated damage, highest
// first. The reward split and the top-damage bonus both read this.
func (db *DB) BossAttacks(bossID uuid.UUID) ([]BossAttack, error) {
	var rows []bossAttackRow
	err := db.conn.Select(&rows,
		"SELECT * FROM boss_attacks WHERE boss_id = ? ORDER BY damage_dealt DESC, agent_id",
		bossID.String())
	if err != nil {
		return nil, fmt.Errorf("boss attacks: %w", err)
	}

	out := make([]BossAttack, 0, len(rows))
	for _, r := range rows {
		bid, err := uuid.Parse(r.BossID)
		if err != nil {
			return nil, fmt.Errorf("boss id %q: %w", r.BossID, err)
		}
		aid, err := uuid.Parse(r.AgentID)
		if err != nil {
			return nil, fmt.Errorf("agent id %q: %w", r.AgentID, err)
		}
		out = append(out, BossAttack{
			BossID:       bid,
			AgentID:      aid,
			DamageDealt:  r.DamageDealt,
			LastAttackAt: fromMillis(r.LastAttackAt),
		})
	}
	return out, nil
}

// InsertBossRewards writes the full payout set for a defeated boss in
// one transaction.
func (db *DB) InsertBossRewards(rewards []BossReward) error {
	if len(rewards) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("insert boss rewards: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rewards {
		_, err := tx.Exec(`INSERT INTO boss_rewards
			(boss_id, agent_id, gold_reward, gem_reward, is_top_damage, claimed, created_at)
			VALUES (?, ?, ?, ?, ?, 0, ?)`,
			r.BossID.String(), r.AgentID.String(), r.GoldReward, r.GemReward,
			r.IsTopDamage, millis(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert boss rewards: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert boss rewards: %w", err)
	}
	return nil
}

// UnclaimedRewards lists an agent's unclaimed boss rewards, oldest
// first.
func (db *DB) UnclaimedRewards(agentID uuid.UUID) ([]BossReward, error) {
	var rows []bossRewardRow
	err := db.conn.Select(&rows,
		"SELECT * FROM boss_rewards WHERE agent_id = ? AND claimed = 0 ORDER BY created_at, id",
		agentID.String())
	if err != nil {
		return nil, fmt.Errorf("unclaimed rewards: %w", err)
	}

	out := make([]BossReward, 0, len(rows))
	for _, r := range rows {
		bid, err := uuid.Parse(r.BossID)
		if err != nil {
			return nil, fmt.Errorf("boss id %q: %w", r.BossID, err)
		}
		aid, err := uuid.Parse(r.AgentID)
		if err != nil {
			return nil, fmt.Errorf("agent id %q: %w", r.AgentID, err)
		}
		out = append(out, BossReward{
			ID:          r.ID,
			BossID:      bid,
			AgentID:     aid,
			GoldReward:  r.GoldReward,
			GemReward:   r.GemReward,
			IsTopDamage: r.IsTopDamage,
			Claimed:     r.Claimed,
			CreatedAt:   fromMillis(r.CreatedAt),
		})
	}
	return out, nil
}

// ClaimReward flips one reward to claimed. The guard makes double
// claims fail with ErrNotFound instead of paying twice.
func (db *DB) ClaimReward(rewardID int64, agentID uuid.UUID) error {
	res, err := db.conn.Exec(
		"UPDATE boss_rewards SET claimed = 1 WHERE id = ? AND agent_id = ? AND claimed = 0",
		rewardID, agentID.String())
	if err != nil {
		return fmt.Errorf("claim reward: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reward %d for agent %s: %w", rewardID, agentID, ErrNotFound)
	}
	return nil
}
