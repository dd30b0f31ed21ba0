package game

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/engine"
	"github.com/talgya/idle-arena/internal/persistence"
)

// ErrInsufficientFunds re-exports the store sentinel so API callers
// only need this package's errors.
var ErrInsufficientFunds = persistence.ErrInsufficientFunds

// SubmitResult is one accepted order with its immediate fills.
type SubmitResult struct {
	Order   *engine.Order  `json:"order"`
	Matches []engine.Match `json:"matches"`
}

// SubmitOrder escrows the taker's funds, crosses the order against
// the opposite book, settles every fill at the maker price, and rests
// whatever is left. The market mutex serializes the whole cycle so
// two orders never consume the same resting liquidity.
func (g *Game) SubmitOrder(agentID uuid.UUID, side engine.Side, price, quantity float64, now time.Time) (*SubmitResult, error) {
	if price <= 0 {
		return nil, fmt.Errorf("order price %v must be positive", price)
	}
	if quantity < g.cfg.Market.MinOrderSize {
		return nil, fmt.Errorf("order quantity %v below minimum %v: %w",
			quantity, g.cfg.Market.MinOrderSize, ErrOrderTooSmall)
	}

	effects, err := g.activeEffects(now)
	if err != nil {
		return nil, err
	}
	cfg := g.cfg.Market
	cfg.FeePercent = effectOr(effects, engine.EffectMarketFeeOverride, cfg.FeePercent)

	// Escrow up front. A buy locks gold at the limit price, a sell
	// locks the gems themselves.
	switch side {
	case engine.SideBuy:
		if err := g.store.DeductGoldIfSufficient(agentID.String(), round2(price*quantity)); err != nil {
			return nil, fmt.Errorf("order escrow: %w", err)
		}
	case engine.SideSell:
		if err := g.store.DeductGemsIfSufficient(agentID.String(), quantity); err != nil {
			return nil, fmt.Errorf("order escrow: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown order side %q", side)
	}

	order := &engine.Order{
		ID:        uuid.New(),
		AgentID:   agentID,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Status:    engine.OrderOpen,
		CreatedAt: now,
	}

	g.marketMu.Lock()
	defer g.marketMu.Unlock()

	resting, err := g.store.OpenOrdersBySide(side.Opposite())
	if err != nil {
		g.refundEscrow(agentID, side, price, quantity)
		return nil, err
	}
	result := engine.MatchOrder(order, resting, cfg)

	// Rest the order before settling: every fill must land on a real
	// order row.
	if err := g.store.InsertOrder(order); err != nil {
		g.refundEscrow(agentID, side, price, quantity)
		return nil, err
	}

	var settled float64
	for _, m := range result.Matches {
		if err := g.settleMatch(order, m, now); err != nil {
			g.abortSubmit(order, settled)
			return nil, fmt.Errorf("settle match on order %s: %w", m.OrderID, err)
		}
		settled += m.Quantity
	}

	order.Filled = round2(order.Quantity - result.RemainingQuantity)
	if result.RemainingQuantity <= 0 {
		order.Status = engine.OrderFilled
	}

	g.log.Info("order submitted",
		"order", order.ID, "agent", agentID, "side", side,
		"price", price, "quantity", quantity, "matches", len(result.Matches))
	return &SubmitResult{Order: order, Matches: result.Matches}, nil
}

// settleMatch moves the currencies for one fill. The fee comes out of
// the seller's gold proceeds. A taker buy filling below its limit
// gets the price difference back out of escrow.
func (g *Game) settleMatch(taker *engine.Order, m engine.Match, now time.Time) error {
	var buyOrderID, sellOrderID, buyerID, sellerID uuid.UUID
	if taker.Side == engine.SideBuy {
		buyOrderID, sellOrderID = taker.ID, m.OrderID
		buyerID, sellerID = taker.AgentID, m.AgentID
	} else {
		buyOrderID, sellOrderID = m.OrderID, taker.ID
		buyerID, sellerID = m.AgentID, taker.AgentID
	}

	proceeds := round2(m.Quantity*m.Price - m.Fee)
	if err := g.store.AddGold(sellerID.String(), proceeds); err != nil {
		return err
	}
	if err := g.store.AddGems(buyerID.String(), m.Quantity); err != nil {
		return err
	}

	if taker.Side == engine.SideBuy && taker.Price > m.Price {
		refund := round2(m.Quantity * (taker.Price - m.Price))
		if refund > 0 {
			if err := g.store.AddGold(taker.AgentID.String(), refund); err != nil {
				return err
			}
		}
	}

	if err := g.store.ApplyFill(m.OrderID, m.Quantity); err != nil {
		return err
	}
	if err := g.store.ApplyFill(taker.ID, m.Quantity); err != nil {
		return err
	}
	return g.store.LogTrade(buyOrderID, sellOrderID, buyerID, sellerID, m.Price, m.Quantity, m.Fee, now)
}

// refundEscrow returns funds locked for the given unfilled quantity.
// Refund failures are logged rather than returned; the submit error
// that triggered the refund is the one the caller needs to see.
func (g *Game) refundEscrow(agentID uuid.UUID, side engine.Side, price, quantity float64) {
	if quantity <= 0 {
		return
	}
	var err error
	switch side {
	case engine.SideBuy:
		err = g.store.AddGold(agentID.String(), round2(quantity*price))
	case engine.SideSell:
		err = g.store.AddGems(agentID.String(), quantity)
	}
	if err != nil {
		g.log.Error("escrow refund failed",
			"agent", agentID, "side", side, "quantity", quantity, "error", err)
	}
}

// abortSubmit unwinds a submit cycle that failed mid-settlement: the
// rested order is cancelled and the escrow behind the unsettled
// quantity goes back to the taker. Fills settled before the failure
// stand.
func (g *Game) abortSubmit(order *engine.Order, settled float64) {
	if err := g.store.CancelOrder(order.ID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		g.log.Error("order cancel on failed submit", "order", order.ID, "error", err)
	}
	g.refundEscrow(order.AgentID, order.Side, order.Price, round2(order.Quantity-settled))
}

// CancelOrder cancels an open order the agent owns and refunds the
// unfilled escrow.
func (g *Game) CancelOrder(agentID, orderID uuid.UUID, now time.Time) (*engine.Order, error) {
	g.marketMu.Lock()
	defer g.marketMu.Unlock()

	order, err := g.store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order.AgentID != agentID {
		return nil, fmt.Errorf("order %s not owned by %s: %w", orderID, agentID, persistence.ErrNotFound)
	}
	if err := g.store.CancelOrder(orderID); err != nil {
		return nil, err
	}

	remaining := order.Remaining()
	if remaining > 0 {
		switch order.Side {
		case engine.SideBuy:
			if err := g.store.AddGold(agentID.String(), round2(remaining*order.Price)); err != nil {
				return nil, fmt.Errorf("cancel refund: %w", err)
			}
		case engine.SideSell:
			if err := g.store.AddGems(agentID.String(), remaining); err != nil {
				return nil, fmt.Errorf("cancel refund: %w", err)
			}
		}
	}

	order.Status = engine.OrderCancelled
	g.log.Info("order cancelled", "order", orderID, "agent", agentID, "refunded_quantity", remaining)
	return order, nil
}

// OrderBook is a snapshot of both open sides.
type OrderBook struct {
	Buys  []*engine.Order `json:"buys"`
	Sells []*engine.Order `json:"sells"`
}

// Book returns the current open order book.
func (g *Game) Book() (*OrderBook, error) {
	buys, err := g.store.OpenOrdersBySide(engine.SideBuy)
	if err != nil {
		return nil, err
	}
	sells, err := g.store.OpenOrdersBySide(engine.SideSell)
	if err != nil {
		return nil, err
	}
	return &OrderBook{Buys: buys, Sells: sells}, nil
}

// RecentTrades lists the latest executed fills.
func (g *Game) RecentTrades(limit int) ([]persistence.TradeRecord, error) {
	return g.store.RecentTrades(limit)
}

// OpenOrders lists an agent's open orders.
func (g *Game) OpenOrders(agentID uuid.UUID) ([]*engine.Order, error) {
	return g.store.OpenOrdersByAgent(agentID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
