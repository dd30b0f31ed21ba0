package persistence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
)

// agentRow mirrors the agents table; timestamps are unix millis and
// uuids are text.
type agentRow struct {
	ID                 string  `db:"id"`
	Name               string  `db:"name"`
	Level              int     `db:"level"`
	XP                 int64   `db:"xp"`
	Gold               float64 `db:"gold"`
	Gems               float64 `db:"gems"`
	ClickPower         float64 `db:"click_power"`
	IdleRate           float64 `db:"idle_rate"`
	AttackPower        float64 `db:"attack_power"`
	DefensePower       float64 `db:"defense_power"`
	PowerScore         float64 `db:"power_score"`
	Karma              float64 `db:"karma"`
	PrestigeLevel      int     `db:"prestige_level"`
	PrestigeMultiplier float64 `db:"prestige_multiplier"`
	Energy             int     `db:"energy"`
	MaxEnergy          int     `db:"max_energy"`
	HighestFloor       int     `db:"highest_floor"`
	SkillPoints        int     `db:"skill_points"`
	AllianceID         *string `db:"alliance_id"`
	LastClickAt        int64   `db:"last_click_at"`
	LastAttackAt       int64   `db:"last_attack_at"`
	LastTickAt         int64   `db:"last_tick_at"`
	LastEnergyTickAt   int64   `db:"last_energy_tick_at"`
	ShieldUntil        int64   `db:"shield_until"`
	TotalClicks        int64   `db:"total_clicks"`
	TotalGoldEarned    float64 `db:"total_gold_earned"`
	TotalPvPWins       int64   `db:"total_pvp_wins"`
	TotalPvPLosses     int64   `db:"total_pvp_losses"`
}

func (r *agentRow) toAgent() (*agents.Agent, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("agent id %q: %w", r.ID, err)
	}

	a := &agents.Agent{
		ID:                 id,
		Name:               r.Name,
		Level:              r.Level,
		XP:                 r.XP,
		Gold:               r.Gold,
		Gems:               r.Gems,
		ClickPower:         r.ClickPower,
		IdleRate:           r.IdleRate,
		AttackPower:        r.AttackPower,
		DefensePower:       r.DefensePower,
		PowerScore:         r.PowerScore,
		Karma:              r.Karma,
		PrestigeLevel:      r.PrestigeLevel,
		PrestigeMultiplier: r.PrestigeMultiplier,
		Energy:             r.Energy,
		MaxEnergy:          r.MaxEnergy,
		HighestFloor:       r.HighestFloor,
		SkillPoints:        r.SkillPoints,
		LastClickAt:        fromMillis(r.LastClickAt),
		LastAttackAt:       fromMillis(r.LastAttackAt),
		LastTickAt:         fromMillis(r.LastTickAt),
		LastEnergyTickAt:   fromMillis(r.LastEnergyTickAt),
		ShieldUntil:        fromMillis(r.ShieldUntil),
		TotalClicks:        r.TotalClicks,
		TotalGoldEarned:    r.TotalGoldEarned,
		TotalPvPWins:       r.TotalPvPWins,
		TotalPvPLosses:     r.TotalPvPLosses,
	}

	if r.AllianceID != nil {
		allianceID, err := uuid.Parse(*r.AllianceID)
		if err != nil {
			return nil, fmt.Errorf("alliance id %q: %w", *r.AllianceID, err)
		}
		a.AllianceID = &allianceID
	}
	return a, nil
}

func fromAgent(a *agents.Agent) *agentRow {
	r := &agentRow{
		ID:                 a.ID.String(),
		Name:               a.Name,
		Level:              a.Level,
		XP:                 a.XP,
		Gold:               a.Gold,
		Gems:               a.Gems,
		ClickPower:         a.ClickPower,
		IdleRate:           a.IdleRate,
		AttackPower:        a.AttackPower,
		DefensePower:       a.DefensePower,
		PowerScore:         a.PowerScore,
		Karma:              a.Karma,
		PrestigeLevel:      a.PrestigeLevel,
		PrestigeMultiplier: a.PrestigeMultiplier,
		Energy:             a.Energy,
		MaxEnergy:          a.MaxEnergy,
		HighestFloor:       a.HighestFloor,
		SkillPoints:        a.SkillPoints,
		LastClickAt:        millis(a.LastClickAt),
		LastAttackAt:       millis(a.LastAttackAt),
		LastTickAt:         millis(a.LastTickAt),
		LastEnergyTickAt:   millis(a.LastEnergyTickAt),
		ShieldUntil:        millis(a.ShieldUntil),
		TotalClicks:        a.TotalClicks,
		TotalGoldEarned:    a.TotalGoldEarned,
		TotalPvPWins:       a.TotalPvPWins,
		TotalPvPLosses:     a.TotalPvPLosses,
	}
	if a.AllianceID != nil {
		s := a.AllianceID.String()
		r.AllianceID = &s
	}
	return r
}

// CreateAgent inserts a new agent record.
func (db *DB) CreateAgent(a *agents.Agent) error {
	_, err := db.conn.NamedExec(`INSERT INTO agents
		(id, name, level, xp, gold, gems, click_power, idle_rate, attack_power,
		 defense_power, power_score, karma, prestige_level, prestige_multiplier,
		 energy, max_energy, highest_floor, skill_points, alliance_id,
		 last_click_at, last_attack_at, last_tick_at, last_energy_tick_at,
		 shield_until, total_clicks, total_gold_earned, total_pvp_wins, total_pvp_losses)
		VALUES
		(:id, :name, :level, :xp, :gold, :gems, :click_power, :idle_rate, :attack_power,
		 :defense_power, :power_score, :karma, :prestige_level, :prestige_multiplier,
		 :energy, :max_energy, :highest_floor, :skill_points, :alliance_id,
		 :last_click_at, :last_attack_at, :last_tick_at, :last_energy_tick_at,
		 :shield_until, :total_clicks, :total_gold_earned, :total_pvp_wins, :total_pvp_losses)`,
		fromAgent(a))
	if isUniqueViolation(err) {
		return fmt.Errorf("agent %q: %w", a.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

// GetAgent loads one agent by id.
func (db *DB) GetAgent(id uuid.UUID) (*agents.Agent, error) {
	var row agentRow
	err := db.conn.Get(&row, "SELECT * FROM agents WHERE id = ?", id.String())
	if isNoRows(err) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return row.toAgent()
}

// GetAgentByName loads one agent by its unique name.
func (db *DB) GetAgentByName(name string) (*agents.Agent, error) {
	var row agentRow
	err := db.conn.Get(&row, "SELECT * FROM agents WHERE name = ?", name)
	if isNoRows(err) {
		return nil, fmt.Errorf("agent %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent by name: %w", err)
	}
	return row.toAgent()
}

// UpdateAgent writes the agent's non-currency fields back. Gold and
// gems are deliberately not written: a full-row write would clobber
// any credit that landed between the caller's read and this write, so
// every balance change goes through the atomic Add/Deduct methods.
func (db *DB) UpdateAgent(a *agents.Agent) error {
	res, err := db.conn.NamedExec(`UPDATE agents SET
		name = :name, level = :level, xp = :xp,
		click_power = :click_power, idle_rate = :idle_rate,
		attack_power = :attack_power, defense_power = :defense_power,
		power_score = :power_score, karma = :karma,
		prestige_level = :prestige_level, prestige_multiplier = :prestige_multiplier,
		energy = :energy, max_energy = :max_energy,
		highest_floor = :highest_floor, skill_points = :skill_points,
		alliance_id = :alliance_id,
		last_click_at = :last_click_at, last_attack_at = :last_attack_at,
		last_tick_at = :last_tick_at, last_energy_tick_at = :last_energy_tick_at,
		shield_until = :shield_until,
		total_clicks = :total_clicks, total_gold_earned = :total_gold_earned,
		total_pvp_wins = :total_pvp_wins, total_pvp_losses = :total_pvp_losses
		WHERE id = :id`, fromAgent(a))
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

// ZeroGold clears an agent's gold balance. Prestige resets route
// through this rather than UpdateAgent, which leaves balances alone.
func (db *DB) ZeroGold(agentID string) error {
	res, err := db.conn.Exec("UPDATE agents SET gold = 0 WHERE id = ?", agentID)
	if err != nil {
		return fmt.Errorf("zero gold: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("zero gold for agent %s: %w", agentID, ErrNotFound)
	}
	return nil
}

// ActiveAgentCount counts agents ticked since the cutoff, the
// population figure world-boss HP scales with.
func (db *DB) ActiveAgentCount(since time.Time) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM agents WHERE last_tick_at > ?", millis(since))
	if err != nil {
		return 0, fmt.Errorf("active agent count: %w", err)
	}
	return n, nil
}

// FindTargets lists attackable agents within the power band around
// score, excluding the searcher, shielded agents, and (when set) the
// searcher's alliance.
func (db *DB) FindTargets(searcher *agents.Agent, minPower, maxPower float64, minLevel int, now time.Time, limit int) ([]*agents.Agent, error) {
	query := `SELECT * FROM agents
		WHERE id != ? AND level >= ? AND power_score BETWEEN ? AND ? AND shield_until < ?`
	args := []any{searcher.ID.String(), minLevel, minPower, maxPower, millis(now)}

	if searcher.AllianceID != nil {
		query += " AND (alliance_id IS NULL OR alliance_id != ?)"
		args = append(args, searcher.AllianceID.String())
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []agentRow
	if err := db.conn.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("find targets: %w", err)
	}

	out := make([]*agents.Agent, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toAgent()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
