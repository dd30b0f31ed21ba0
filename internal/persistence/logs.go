package persistence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/engine"
)

// PvPRecord is one resolved attack, as logged.
type PvPRecord struct {
	AttackerID      string  `db:"attacker_id" json:"attacker_id"`
	DefenderID      string  `db:"defender_id" json:"defender_id"`
	WinnerID        string  `db:"winner_id" json:"winner_id"`
	AttackerRoll    float64 `db:"attacker_roll" json:"attacker_roll"`
	DefenderRoll    float64 `db:"defender_roll" json:"defender_roll"`
	GoldTransferred float64 `db:"gold_transferred" json:"gold_transferred"`
	GoldLost        float64 `db:"gold_lost" json:"gold_lost"`
	CreatedAt       int64   `db:"created_at" json:"created_at"`
}

// DungeonRecord is one dungeon run, as logged.
type DungeonRecord struct {
	AgentID     string `db:"agent_id" json:"agent_id"`
	Floor       int    `db:"floor" json:"floor"`
	Success     bool   `db:"success" json:"success"`
	MonsterName string `db:"monster_name" json:"monster_name"`
	IsBoss      bool   `db:"is_boss" json:"is_boss"`
	Gold        int64  `db:"gold" json:"gold"`
	XP          int64  `db:"xp" json:"xp"`
	Gems        int64  `db:"gems" json:"gems"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// TradeRecord is one executed fill, as logged.
type TradeRecord struct {
	BuyOrderID  string  `db:"buy_order_id" json:"buy_order_id"`
	SellOrderID string  `db:"sell_order_id" json:"sell_order_id"`
	BuyerID     string  `db:"buyer_id" json:"buyer_id"`
	SellerID    string  `db:"seller_id" json:"seller_id"`
	Price       float64 `db:"price" json:"price"`
	Quantity    float64 `db:"quantity" json:"quantity"`
	Fee         float64 `db:"fee" json:"fee"`
	CreatedAt   int64   `db:"created_at" json:"created_at"`
}

// LogPvP records one resolved attack.
func (db *DB) LogPvP(attackerID, defenderID uuid.UUID, result engine.CombatResult, now time.Time) error {
	_, err := db.conn.Exec(`INSERT INTO pvp_log
		(attacker_id, defender_id, winner_id, attacker_roll, defender_roll,
		 gold_transferred, gold_lost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attackerID.String(), defenderID.String(), result.WinnerID.String(),
		result.AttackerRoll, result.DefenderRoll,
		result.GoldTransferred, result.GoldLost, millis(now))
	if err != nil {
		return fmt.Errorf("log pvp: %w", err)
	}
	return nil
}

// LogDungeon records one dungeon run.
func (db *DB) LogDungeon(agentID uuid.UUID, floor int, success bool, m agents.Monster, rewards engine.DungeonRewards, now time.Time) error {
	_, err := db.conn.Exec(`INSERT INTO dungeon_log
		(agent_id, floor, success, monster_name, is_boss, gold, xp, gems, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agentID.String(), floor, success, m.Name, m.IsBoss,
		rewards.Gold, rewards.XP, rewards.Gems, millis(now))
	if err != nil {
		return fmt.Errorf("log dungeon: %w", err)
	}
	return nil
}

// LogTrade records one executed fill.
func (db *DB) LogTrade(buyOrderID, sellOrderID, buyerID, sellerID uuid.UUID, price, quantity, fee float64, now time.Time) error {
	_, err := db.conn.Exec(`INSERT INTO trade_log
		(buy_order_id, sell_order_id, buyer_id, seller_id, price, quantity, fee, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		buyOrderID.String(), sellOrderID.String(), buyerID.String(), sellerID.String(),
		price, quantity, fee, millis(now))
	if err != nil {
		return fmt.Errorf("log trade: %w", err)
	}
	return nil
}

// RecentPvP lists the latest attacks involving the agent, newest
// first.
func (db *DB) RecentPvP(agentID uuid.UUID, limit int) ([]PvPRecord, error) {
	var rows []PvPRecord
	err := db.conn.Select(&rows, `SELECT attacker_id, defender_id, winner_id,
		attacker_roll, defender_roll, gold_transferred, gold_lost, created_at
		FROM pvp_log WHERE attacker_id = ? OR defender_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		agentID.String(), agentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("recent pvp: %w", err)
	}
	return rows, nil
}

// RecentDungeonRuns lists the agent's latest runs, newest first.
func (db *DB) RecentDungeonRuns(agentID uuid.UUID, limit int) ([]DungeonRecord, error) {
	var rows []DungeonRecord
	err := db.conn.Select(&rows, `SELECT agent_id, floor, success, monster_name,
		is_boss, gold, xp, gems, created_at
		FROM dungeon_log WHERE agent_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		agentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("recent dungeon runs: %w", err)
	}
	return rows, nil
}

// RecentTrades lists the latest fills across the whole market, newest
// first.
func (db *DB) RecentTrades(limit int) ([]TradeRecord, error) {
	var rows []TradeRecord
	err := db.conn.Select(&rows, `SELECT buy_order_id, sell_order_id, buyer_id,
		seller_id, price, quantity, fee, created_at
		FROM trade_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	return rows, nil
}
