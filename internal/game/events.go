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

// ErrAlreadyResponded re-exports the store's duplicate sentinel under
// a domain name.
var ErrAlreadyResponded = persistence.ErrDuplicate

// ActiveEvents lists the currently live events.
func (g *Game) ActiveEvents(now time.Time) ([]*engine.Event, error) {
	return g.store.ActiveEvents(now)
}

// CheckEventSpawn makes one spawn roll if the check interval has
// passed since the last event. Returns nil when nothing spawned.
func (g *Game) CheckEventSpawn(now time.Time) (*engine.Event, error) {
	g.eventMu.Lock()
	defer g.eventMu.Unlock()

	last, err := g.store.LatestEventStart()
	if err != nil {
		return nil, err
	}
	if !last.IsZero() && now.Sub(last) < g.cfg.Events.CheckInterval.Std() {
		return nil, nil
	}

	ev := engine.RollEvent(g.cfg.Events, g.src, now)
	if ev == nil {
		return nil, nil
	}
	if err := g.store.InsertEvent(ev); err != nil {
		return nil, err
	}
	g.log.Info("event spawned", "event", ev.ID, "type", ev.Type, "ends_at", ev.EndsAt)
	return ev, nil
}

// SpawnEvent force-spawns the named event template. Admin use.
func (g *Game) SpawnEvent(typ string, now time.Time) (*engine.Event, error) {
	g.eventMu.Lock()
	defer g.eventMu.Unlock()

	ev := engine.EventByType(typ, g.cfg.Events, now)
	if ev == nil {
		return nil, fmt.Errorf("spawn event: unknown type %q", typ)
	}
	if err := g.store.InsertEvent(ev); err != nil {
		return nil, err
	}
	g.log.Info("event spawned", "event", ev.ID, "type", ev.Type, "forced", true)
	return ev, nil
}

// RespondResult is one accepted event response.
type RespondResult struct {
	Choice *engine.Choice `json:"choice"`
	Gold   float64        `json:"gold"` // net gold change
	Gems   float64        `json:"gems"` // net gem change
}

// RespondToEvent records an agent's choice on a live response event
// and applies its cost and reward. The cost is paid first; if the
// response row then turns out to be a duplicate, the payment comes
// back, so a failed attempt never consumes the one-per-event slot.
func (g *Game) RespondToEvent(agentID, eventID uuid.UUID, choiceID string, now time.Time) (*RespondResult, error) {
	ev, err := g.store.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if !ev.Active(now) {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrEventClosed)
	}

	choice := engine.ProcessChoice(ev, choiceID)
	if choice == nil {
		return nil, fmt.Errorf("event %s choice %q: %w", eventID, choiceID, ErrBadChoice)
	}

	if choice.Cost.Gold > 0 {
		if err := g.store.DeductGoldIfSufficient(agentID.String(), choice.Cost.Gold); err != nil {
			return nil, fmt.Errorf("event cost: %w", err)
		}
	}
	if choice.Cost.Gems > 0 {
		if err := g.store.DeductGemsIfSufficient(agentID.String(), choice.Cost.Gems); err != nil {
			g.refundEventCost(agentID, choice.Cost.Gold, 0)
			return nil, fmt.Errorf("event cost: %w", err)
		}
	}

	if err := g.store.InsertEventResponse(eventID, agentID, choiceID, now); err != nil {
		g.refundEventCost(agentID, choice.Cost.Gold, choice.Cost.Gems)
		if errors.Is(err, ErrAlreadyResponded) {
			return nil, fmt.Errorf("event %s: %w", eventID, ErrAlreadyResponded)
		}
		return nil, err
	}

	if choice.Reward.Gold > 0 {
		if err := g.store.AddGold(agentID.String(), choice.Reward.Gold); err != nil {
			return nil, fmt.Errorf("event reward: %w", err)
		}
	}
	if choice.Reward.Gems > 0 {
		if err := g.store.AddGems(agentID.String(), choice.Reward.Gems); err != nil {
			return nil, fmt.Errorf("event reward: %w", err)
		}
	}

	g.log.Info("event response", "event", eventID, "agent", agentID, "choice", choiceID)
	return &RespondResult{
		Choice: choice,
		Gold:   math.Round((choice.Reward.Gold-choice.Cost.Gold)*100) / 100,
		Gems:   choice.Reward.Gems - choice.Cost.Gems,
	}, nil
}

// refundEventCost returns an event cost that was taken before the
// response failed to record.
func (g *Game) refundEventCost(agentID uuid.UUID, gold, gems float64) {
	if gold > 0 {
		if err := g.store.AddGold(agentID.String(), gold); err != nil {
			g.log.Error("event cost refund failed", "agent", agentID, "gold", gold, "error", err)
		}
	}
	if gems > 0 {
		if err := g.store.AddGems(agentID.String(), gems); err != nil {
			g.log.Error("event cost refund failed", "agent", agentID, "gems", gems, "error", err)
		}
	}
}
