// Global events: a Bernoulli spawn roll over a fixed template catalog
// plus choice validation for response events. Each event carries its
// own effect payload and choice list, so nothing downstream needs
// event-type-specific logic.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/balance"
	"github.com/talgya/idle-arena/internal/entropy"
)

// Effect keys understood by the rest of the system. pvp_disabled is
// boolean-valued: any non-zero value means disabled.
const (
	EffectIdleMultiplier    = "idle_multiplier"
	EffectClickMultiplier   = "click_multiplier"
	EffectAttackMultiplier  = "attack_multiplier"
	EffectMarketFeeOverride = "market_fee_override"
	EffectPvPDisabled       = "pvp_disabled"
)

// Bundle is a currency amount attached to an event choice.
type Bundle struct {
	Gold float64 `json:"gold,omitempty" yaml:"gold"`
	Gems float64 `json:"gems,omitempty" yaml:"gems"`
}

// Choice is one selectable response to an event.
type Choice struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Cost   Bundle `json:"cost"`
	Reward Bundle `json:"reward"`
}

// Event is a timed global modifier. Immutable once created; agents
// attach at most one response each (enforced by the store).
type Event struct {
	ID               uuid.UUID          `json:"id"`
	Type             string             `json:"type"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Effect           map[string]float64 `json:"effect"`
	RequiresResponse bool               `json:"requires_response"`
	Choices          []Choice           `json:"choices,omitempty"`
	StartsAt         time.Time          `json:"starts_at"`
	EndsAt           time.Time          `json:"ends_at"`
}

// Active reports whether the event window covers the instant.
func (e *Event) Active(now time.Time) bool {
	return !now.Before(e.StartsAt) && now.Before(e.EndsAt)
}

// eventCatalog holds every spawnable template. Effects are applied by
// whoever reads the active event list; choices only exist on events
// that require a response.
var eventCatalog = []Event{
	{
		Type:        "gold_rush",
		Title:       "Gold Rush",
		Description: "A gold vein has been discovered! All idle rates doubled for 15 minutes.",
		Effect:      map[string]float64{EffectIdleMultiplier: 2.0},
	},
	{
		Type:        "industrial_revolution",
		Title:       "Industrial Revolution",
		Description: "New technology! Click power +50% for 15 minutes.",
		Effect:      map[string]float64{EffectClickMultiplier: 1.5},
	},
	{
		Type:        "plague",
		Title:       "Plague",
		Description: "A mysterious plague! Idle rates halved for 15 minutes.",
		Effect:      map[string]float64{EffectIdleMultiplier: 0.5},
	},
	{
		Type:             "merchant",
		Title:            "Wandering Merchant",
		Description:      "A merchant offers a deal. Choose wisely!",
		Effect:           map[string]float64{},
		RequiresResponse: true,
		Choices: []Choice{
			{ID: "buy", Label: "Buy rare goods (-500 gold, +50 gems)", Cost: Bundle{Gold: 500}, Reward: Bundle{Gems: 50}},
			{ID: "sell", Label: "Sell resources (+1000 gold)", Reward: Bundle{Gold: 1000}},
			{ID: "ignore", Label: "Ignore the merchant"},
		},
	},
	{
		Type:        "war_drums",
		Title:       "War Drums",
		Description: "Battle fever! Attack power +30% for 15 minutes.",
		Effect:      map[string]float64{EffectAttackMultiplier: 1.3},
	},
	{
		Type:        "market_crash",
		Title:       "Market Crash",
		Description: "The market is in turmoil! All market fees reduced to 0% for 15 minutes.",
		Effect:      map[string]float64{EffectMarketFeeOverride: 0},
	},
	{
		Type:        "peace_treaty",
		Title:       "Peace Treaty",
		Description: "A ceasefire has been declared. No PvP attacks for 15 minutes.",
		Effect:      map[string]float64{EffectPvPDisabled: 1},
	},
}

// RollEvent makes one Bernoulli draw against the spawn chance and, on
// success, instantiates a uniformly chosen template with fresh id and
// timestamps. Returns nil when nothing spawns.
func RollEvent(cfg balance.Events, src entropy.Source, now time.Time) *Event {
	if src.Float() > cfg.SpawnChance {
		return nil
	}

	ev := eventCatalog[entropy.Pick(src, len(eventCatalog))]
	ev.ID = uuid.New()
	ev.StartsAt = now
	ev.EndsAt = now.Add(cfg.Duration.Std())
	return &ev
}

// EventByType instantiates the named template regardless of the
// spawn roll. Returns nil for unknown types.
func EventByType(typ string, cfg balance.Events, now time.Time) *Event {
	for i := range eventCatalog {
		if eventCatalog[i].Type == typ {
			ev := eventCatalog[i]
			ev.ID = uuid.New()
			ev.StartsAt = now
			ev.EndsAt = now.Add(cfg.Duration.Std())
			return &ev
		}
	}
	return nil
}

// ProcessChoice resolves a choice id against the event's choice list.
// Returns nil for events without choices or unknown ids; this is the
// validation gate for agent responses.
func ProcessChoice(ev *Event, choiceID string) *Choice {
	for i := range ev.Choices {
		if ev.Choices[i].ID == choiceID {
			return &ev.Choices[i]
		}
	}
	return nil
}
