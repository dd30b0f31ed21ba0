// Game applies engine results to persistent state: it owns the rules
// around cooldowns, escrow, reward distribution, and event effects,
// while the engine package stays pure and the persistence package
// stays dumb.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idle-arena/internal/agents"
	"github.com/talgya/idle-arena/internal/balance"
	"github.com/talgya/idle-arena/internal/entropy"
	"github.com/talgya/idle-arena/internal/persistence"
)

// Expected game conditions, distinguished from real failures so the
// API layer can map them to 4xx responses.
var (
	ErrOnCooldown      = errors.New("action on cooldown")
	ErrAttackBlocked   = errors.New("attack not allowed")
	ErrPvPDisabled     = errors.New("pvp disabled by active event")
	ErrNoActiveBoss    = errors.New("no active world boss")
	ErrFloorLocked     = errors.New("dungeon floor not yet unlocked")
	ErrNotEnoughEnergy = errors.New("not enough energy")
	ErrOrderTooSmall   = errors.New("order below minimum size")
	ErrEventClosed     = errors.New("event is not active")
	ErrBadChoice       = errors.New("unknown event choice")
	ErrPrestigeLocked  = errors.New("prestige level requirement not met")
)

// Game is the service layer. One instance per process; the mutexes
// serialize the critical sections SQLite's row guards cannot cover on
// their own (a full match cycle, a boss reward distribution).
type Game struct {
	store *persistence.DB
	cfg   balance.Config
	src   entropy.Source
	log   *slog.Logger

	marketMu sync.Mutex
	bossMu   sync.Mutex
	eventMu  sync.Mutex
}

// New wires a Game from its collaborators.
func New(store *persistence.DB, cfg balance.Config, src entropy.Source, log *slog.Logger) *Game {
	if log == nil {
		log = slog.Default()
	}
	return &Game{store: store, cfg: cfg, src: src, log: log}
}

// CreateAgent registers a fresh level-1 agent with starting stats.
func (g *Game) CreateAgent(name string, now time.Time) (*agents.Agent, error) {
	a := &agents.Agent{
		ID:                 uuid.New(),
		Name:               name,
		Level:              1,
		Gold:               0,
		Gems:               0,
		ClickPower:         1,
		IdleRate:           1,
		AttackPower:        10,
		DefensePower:       10,
		PowerScore:         20,
		Karma:              1,
		PrestigeMultiplier: 1,
		Energy:             g.cfg.Dungeon.DefaultMaxEnergy,
		MaxEnergy:          g.cfg.Dungeon.DefaultMaxEnergy,
		LastTickAt:         now,
		LastEnergyTickAt:   now,
	}
	if err := g.store.CreateAgent(a); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	g.log.Info("agent created", "agent", a.ID, "name", name)
	return a, nil
}

// Agent loads one agent by id.
func (g *Game) Agent(id uuid.UUID) (*agents.Agent, error) {
	return g.store.GetAgent(id)
}

// AgentByName loads one agent by name.
func (g *Game) AgentByName(name string) (*agents.Agent, error) {
	return g.store.GetAgentByName(name)
}

// activeEffects merges the effect maps of every live event. Later
// events win on key collisions, matching their spawn order.
func (g *Game) activeEffects(now time.Time) (map[string]float64, error) {
	events, err := g.store.ActiveEvents(now)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]float64)
	for _, ev := range events {
		for k, v := range ev.Effect {
			merged[k] = v
		}
	}
	return merged, nil
}

func effectOr(effects map[string]float64, key string, fallback float64) float64 {
	if v, ok := effects[key]; ok {
		return v
	}
	return fallback
}
