package persistence

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/engine"
)

type orderRow struct {
	ID        string  `db:"id"`
	AgentID   string  `db:"agent_id"`
	Side      string  `db:"side"`
	Price     float64 `db:"price"`
	Quantity  float64 `db:"quantity"`
	Filled    float64 `db:"filled"`
	Status    string  `db:"status"`
	CreatedAt int64   `db:"created_at"`
}

func (r *orderRow) toOrder() (*engine.Order, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("order id %q: %w", r.ID, err)
	}
	agentID, err := uuid.Parse(r.AgentID)
	if err != nil {
		return nil, fmt.Errorf("order agent id %q: %w", r.AgentID, err)
	}
	return &engine.Order{
		ID:        id,
		AgentID:   agentID,
		Side:      engine.Side(r.Side),
		Price:     r.Price,
		Quantity:  r.Quantity,
		Filled:    r.Filled,
		Status:    engine.OrderStatus(r.Status),
		CreatedAt: fromMillis(r.CreatedAt),
	}, nil
}

// InsertOrder persists a new order.
func (db *DB) InsertOrder(o *engine.Order) error {
	_, err := db.conn.Exec(`INSERT INTO market_orders
		(id, agent_id, side, price, quantity, filled, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID.String(), o.AgentID.String(), string(o.Side),
		o.Price, o.Quantity, o.Filled, string(o.Status), millis(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetOrder loads one order by id.
func (db *DB) GetOrder(id uuid.UUID) (*engine.Order, error) {
	var row orderRow
	err := db.conn.Get(&row, "SELECT * FROM market_orders WHERE id = ?", id.String())
	if isNoRows(err) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return row.toOrder()
}

// OpenOrdersBySide lists the open orders on one side in creation
// order. The matcher's stable sort relies on that ordering for
// equal-price time priority.
func (db *DB) OpenOrdersBySide(side engine.Side) ([]*engine.Order, error) {
	var rows []orderRow
	err := db.conn.Select(&rows,
		"SELECT * FROM market_orders WHERE side = ? AND status = ? ORDER BY created_at, id",
		string(side), string(engine.OrderOpen))
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}

	out := make([]*engine.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// OpenOrdersByAgent lists an agent's open orders in creation order.
func (db *DB) OpenOrdersByAgent(agentID uuid.UUID) ([]*engine.Order, error) {
	var rows []orderRow
	err := db.conn.Select(&rows,
		"SELECT * FROM market_orders WHERE agent_id = ? AND status = ? ORDER BY created_at, id",
		agentID.String(), string(engine.OrderOpen))
	if err != nil {
		return nil, fmt.Errorf("agent orders: %w", err)
	}

	out := make([]*engine.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// ApplyFill adds a fill to an order and flips its status to filled
// when fully consumed. The guard keeps filled within quantity even
// under concurrent settlement.
func (db *DB) ApplyFill(orderID uuid.UUID, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("apply fill: non-positive quantity %v", quantity)
	}
	res, err := db.conn.Exec(`UPDATE market_orders
		SET filled = filled + ?,
		    status = CASE WHEN filled + ? >= quantity THEN 'filled' ELSE status END
		WHERE id = ? AND status = 'open' AND filled + ? <= quantity + 0.000001`,
		quantity, quantity, orderID.String(), quantity)
	if err != nil {
		return fmt.Errorf("apply fill: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("apply fill on order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// CancelOrder flips an open order to cancelled. Returns ErrNotFound
// when the order is missing or already terminal.
func (db *DB) CancelOrder(orderID uuid.UUID) error {
	res, err := db.conn.Exec(
		"UPDATE market_orders SET status = 'cancelled' WHERE id = ? AND status = 'open'",
		orderID.String())
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cancel order %s: %w", orderID, ErrNotFound)
	}
	return nil
}
