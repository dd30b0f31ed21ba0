// Market matching: a greedy single-pass crossing of one incoming order
// against the resting opposite side, with price-time priority and
// partial fills. Resting orders never cross each other by construction
// (each was matched against the book at insertion time), so no
// resting-vs-resting re-matching happens here.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/balance"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"  // pay gold, receive gems
	SideSell Side = "sell" // pay gems, receive gold
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderStatus is the lifecycle state of an order. A partially filled
// order stays open; filled and cancelled are terminal.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is one gold/gem exchange order. Price and Quantity are
// strictly positive; Filled stays within [0, Quantity].
type Order struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	AgentID   uuid.UUID   `json:"agent_id" db:"agent_id"`
	Side      Side        `json:"side" db:"side"`
	Price     float64     `json:"price" db:"price"`       // gold per gem
	Quantity  float64     `json:"quantity" db:"quantity"` // gems
	Filled    float64     `json:"filled" db:"filled"`
	Status    OrderStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() float64 {
	return o.Quantity - o.Filled
}

// Match is one fill against a resting order, executed at the resting
// order's price (the maker price; the taker never does worse than
// its own limit).
type Match struct {
	OrderID  uuid.UUID `json:"order_id"` // resting order
	AgentID  uuid.UUID `json:"agent_id"` // resting order's owner
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Fee      float64   `json:"fee"`
}

// MatchResult is the outcome of crossing one incoming order.
// sum(Matches[i].Quantity) + RemainingQuantity equals the incoming
// order's unfilled quantity (at currency precision).
type MatchResult struct {
	Matches           []Match `json:"matches"`
	RemainingQuantity float64 `json:"remaining_quantity"`
}

// MatchOrder crosses newOrder against the resting opposite-side
// orders. Resting orders are sorted by price (best for the taker
// first); the sort is stable, so equal-price time priority holds as
// long as the caller supplies resting orders in creation order. Fully
// filled and price-incompatible resting orders are skipped; the
// compatibility check, not the sort, decides eligibility. The fee is
// computed per match from the fill price.
func MatchOrder(newOrder *Order, resting []*Order, cfg balance.Market) MatchResult {
	validateOrder(newOrder)
	for _, o := range resting {
		validateOrder(o)
		if o.Side != newOrder.Side.Opposite() {
			panic(fmt.Sprintf("engine: resting order %s is on side %q, want %q", o.ID, o.Side, newOrder.Side.Opposite()))
		}
	}

	remaining := newOrder.Remaining()

	sorted := make([]*Order, len(resting))
	copy(sorted, resting)
	sort.SliceStable(sorted, func(i, j int) bool {
		if newOrder.Side == SideBuy {
			return sorted[i].Price < sorted[j].Price // cheapest sell first
		}
		return sorted[i].Price > sorted[j].Price // highest bid first
	})

	var matches []Match
	for _, o := range sorted {
		if remaining <= 0 {
			break
		}
		if o.Remaining() <= 0 {
			continue
		}
		// Price compatibility: a buy cannot lift a sell above its
		// limit, a sell cannot hit a bid below its limit.
		if newOrder.Side == SideBuy && o.Price > newOrder.Price {
			continue
		}
		if newOrder.Side == SideSell && o.Price < newOrder.Price {
			continue
		}

		fill := remaining
		if r := o.Remaining(); r < fill {
			fill = r
		}

		matches = append(matches, Match{
			OrderID:  o.ID,
			AgentID:  o.AgentID,
			Quantity: round2(fill),
			Price:    o.Price,
			Fee:      round4(fill * o.Price * cfg.FeePercent),
		})
		remaining -= fill
	}

	if remaining < 0 {
		remaining = 0
	}
	return MatchResult{Matches: matches, RemainingQuantity: round2(remaining)}
}

func validateOrder(o *Order) {
	if o == nil {
		panic("engine: nil order")
	}
	if o.Price <= 0 || o.Quantity <= 0 {
		panic(fmt.Sprintf("engine: order %s has non-positive price or quantity", o.ID))
	}
	if o.Filled < 0 || o.Filled > o.Quantity {
		panic(fmt.Sprintf("engine: order %s has filled %v outside [0, %v]", o.ID, o.Filled, o.Quantity))
	}
}
