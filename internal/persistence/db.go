// Package persistence provides SQLite-based game state storage: agent
// records with atomic currency mutation, the order book, world bosses
// with exactly-once defeat detection, events with one response per
// agent, and append-only activity logs.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Sentinel errors surfaced to the game layer. A failed conditional
// deduction is an expected game condition, not a storage fault.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicate         = errors.New("duplicate record")
)

// DB wraps a SQLite connection for game state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path. The
// _pragma form is the one modernc.org/sqlite actually honors; it
// applies WAL and the busy timeout on every pooled connection.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		level INTEGER NOT NULL,
		xp INTEGER NOT NULL,
		gold REAL NOT NULL,
		gems REAL NOT NULL,
		click_power REAL NOT NULL,
		idle_rate REAL NOT NULL,
		attack_power REAL NOT NULL,
		defense_power REAL NOT NULL,
		power_score REAL NOT NULL,
		karma REAL NOT NULL,
		prestige_level INTEGER NOT NULL,
		prestige_multiplier REAL NOT NULL,
		energy INTEGER NOT NULL,
		max_energy INTEGER NOT NULL,
		highest_floor INTEGER NOT NULL,
		skill_points INTEGER NOT NULL,
		alliance_id TEXT,
		last_click_at INTEGER NOT NULL,
		last_attack_at INTEGER NOT NULL,
		last_tick_at INTEGER NOT NULL,
		last_energy_tick_at INTEGER NOT NULL,
		shield_until INTEGER NOT NULL,
		total_clicks INTEGER NOT NULL,
		total_gold_earned REAL NOT NULL,
		total_pvp_wins INTEGER NOT NULL,
		total_pvp_losses INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_orders (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		side TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		filled REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_bosses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		max_hp REAL NOT NULL,
		current_hp REAL NOT NULL,
		status TEXT NOT NULL,
		spawned_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS boss_attacks (
		boss_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		damage_dealt REAL NOT NULL,
		last_attack_at INTEGER NOT NULL,
		PRIMARY KEY (boss_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS boss_rewards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		boss_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		gold_reward INTEGER NOT NULL,
		gem_reward INTEGER NOT NULL,
		is_top_damage INTEGER NOT NULL,
		claimed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		effect_json TEXT NOT NULL,
		requires_response INTEGER NOT NULL,
		choices_json TEXT NOT NULL,
		starts_at INTEGER NOT NULL,
		ends_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_responses (
		event_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		choice TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (event_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS pvp_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attacker_id TEXT NOT NULL,
		defender_id TEXT NOT NULL,
		winner_id TEXT NOT NULL,
		attacker_roll REAL NOT NULL,
		defender_roll REAL NOT NULL,
		gold_transferred REAL NOT NULL,
		gold_lost REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dungeon_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id TEXT NOT NULL,
		floor INTEGER NOT NULL,
		success INTEGER NOT NULL,
		monster_name TEXT NOT NULL,
		is_boss INTEGER NOT NULL,
		gold INTEGER NOT NULL,
		xp INTEGER NOT NULL,
		gems INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		buy_order_id TEXT NOT NULL,
		sell_order_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		fee REAL NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_book ON market_orders(side, status, price);
	CREATE INDEX IF NOT EXISTS idx_bosses_status ON world_bosses(status);
	CREATE INDEX IF NOT EXISTS idx_events_window ON events(ends_at);
	CREATE INDEX IF NOT EXISTS idx_rewards_agent ON boss_rewards(agent_id, claimed);
	CREATE INDEX IF NOT EXISTS idx_dungeon_agent ON dungeon_log(agent_id);
	CREATE INDEX IF NOT EXISTS idx_pvp_attacker ON pvp_log(attacker_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// AddGold atomically credits gold to an agent.
func (db *DB) AddGold(agentID string, amount float64) error {
	return db.addCurrency("gold", agentID, amount)
}

// AddGems atomically credits gems to an agent.
func (db *DB) AddGems(agentID string, amount float64) error {
	return db.addCurrency("gems", agentID, amount)
}

// DeductGoldIfSufficient atomically debits gold, failing with
// ErrInsufficientFunds when the balance cannot cover the amount.
func (db *DB) DeductGoldIfSufficient(agentID string, amount float64) error {
	return db.deductCurrency("gold", agentID, amount)
}

// DeductGemsIfSufficient atomically debits gems, failing with
// ErrInsufficientFunds when the balance cannot cover the amount.
func (db *DB) DeductGemsIfSufficient(agentID string, amount float64) error {
	return db.deductCurrency("gems", agentID, amount)
}

func (db *DB) addCurrency(column, agentID string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("add %s: negative amount %v", column, amount)
	}
	res, err := db.conn.Exec(
		fmt.Sprintf("UPDATE agents SET %s = %s + ? WHERE id = ?", column, column),
		amount, agentID,
	)
	if err != nil {
		return fmt.Errorf("add %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("add %s for agent %s: %w", column, agentID, ErrNotFound)
	}
	return nil
}

// deductCurrency debits only when the balance covers the amount; the
// guard in the WHERE clause makes check-and-debit a single atomic
// statement.
func (db *DB) deductCurrency(column, agentID string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("deduct %s: negative amount %v", column, amount)
	}
	res, err := db.conn.Exec(
		fmt.Sprintf("UPDATE agents SET %s = %s - ? WHERE id = ? AND %s >= ?", column, column, column),
		amount, agentID, amount,
	)
	if err != nil {
		return fmt.Errorf("deduct %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deduct %s for agent %s: %w", column, agentID, ErrInsufficientFunds)
	}
	return nil
}

// millis converts a time to the unix-millisecond representation every
// timestamp column uses.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// isNoRows normalizes sql.ErrNoRows into ErrNotFound.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation detects SQLite unique-constraint failures, which
// modernc/sqlite reports only through the error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
